package ws

import (
	"hash/maphash"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const hubShards = 32

// Entry: живое соединение в реестре.
type Entry struct {
	ConnID uuid.UUID
	Token  string
	UserID domain.UserID
	Outbox *Outbox
}

type binding struct {
	chatID domain.ChatID
	connID uuid.UUID
}

type memberKey struct {
	chatID domain.ChatID
	userID domain.UserID
}

type shard struct {
	mu    sync.RWMutex
	chats map[domain.ChatID][]Entry
	// сколько раз пара (chat, user) выселялась; Attach сверяет значение, прочитанное до проверки членства
	epochs map[memberKey]uint64
}

// Hub это реестр соединений, chat_id -> соединения и token -> chat_id.
// Под локами только работа с памятью, никакого I/O.
type Hub struct {
	seed   maphash.Seed
	shards [hubShards]shard

	tokMu  sync.Mutex
	tokens map[string]binding
}

func NewHub() *Hub {
	h := &Hub{
		seed:   maphash.MakeSeed(),
		tokens: make(map[string]binding),
	}
	for i := range h.shards {
		h.shards[i].chats = make(map[domain.ChatID][]Entry)
		h.shards[i].epochs = make(map[memberKey]uint64)
	}
	return h
}

func (h *Hub) shardFor(chatID domain.ChatID) *shard {
	return &h.shards[maphash.Comparable(h.seed, chatID)%hubShards]
}

func (h *Hub) Register(chatID domain.ChatID, e Entry) {
	sh := h.shardFor(chatID)
	sh.mu.Lock()
	sh.chats[chatID] = append(sh.chats[chatID], e)
	sh.mu.Unlock()
}

// Unregister удаляет все записи пары (chat_id, user_id) и возвращает их. Идемпотентен.
func (h *Hub) Unregister(chatID domain.ChatID, userID domain.UserID) []Entry {
	return h.removeWhere(chatID, func(e Entry) bool { return e.UserID == userID })
}

func (h *Hub) removeWhere(chatID domain.ChatID, match func(Entry) bool) []Entry {
	sh := h.shardFor(chatID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return sh.removeLocked(chatID, match)
}

func (sh *shard) removeLocked(chatID domain.ChatID, match func(Entry) bool) []Entry {
	entries, ok := sh.chats[chatID]
	if !ok {
		return nil
	}
	removed := lo.Filter(entries, func(e Entry, _ int) bool { return match(e) })
	if len(removed) == 0 {
		return nil
	}
	// новый слайс: снапшоты, отданные раньше, не должны меняться
	kept := lo.Reject(entries, func(e Entry, _ int) bool { return match(e) })
	if len(kept) == 0 {
		delete(sh.chats, chatID)
	} else {
		sh.chats[chatID] = kept
	}
	return removed
}

// Targets: снапшот соединений чата; может устареть к моменту использования.
func (h *Hub) Targets(chatID domain.ChatID) []Entry {
	sh := h.shardFor(chatID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	entries := sh.chats[chatID]
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// BindToken: false, если токен уже привязан к живому соединению.
func (h *Hub) BindToken(token string, chatID domain.ChatID, connID uuid.UUID) bool {
	h.tokMu.Lock()
	defer h.tokMu.Unlock()

	if _, busy := h.tokens[token]; busy {
		return false
	}
	h.tokens[token] = binding{chatID: chatID, connID: connID}
	return true
}

func (h *Hub) UnbindToken(token string) {
	h.tokMu.Lock()
	delete(h.tokens, token)
	h.tokMu.Unlock()
}

func (h *Hub) ChatForToken(token string) (domain.ChatID, bool) {
	h.tokMu.Lock()
	defer h.tokMu.Unlock()

	b, ok := h.tokens[token]
	return b.chatID, ok
}

// Epoch читается до проверки членства и передаётся в Attach.
func (h *Hub) Epoch(chatID domain.ChatID, userID domain.UserID) uint64 {
	sh := h.shardFor(chatID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.epochs[memberKey{chatID, userID}]
}

// Attach = BindToken + Register. Если после чтения epoch пользователя выселили из чата,
// соединение не регистрируется (ErrEvicted): проверка членства уже устарела.
func (h *Hub) Attach(chatID domain.ChatID, e Entry, epoch uint64) error {
	if !h.BindToken(e.Token, chatID, e.ConnID) {
		return domain.ErrTokenBound
	}

	sh := h.shardFor(chatID)
	sh.mu.Lock()
	if sh.epochs[memberKey{chatID, e.UserID}] != epoch {
		sh.mu.Unlock()
		h.unbindOwned(e.Token, e.ConnID)
		return domain.ErrEvicted
	}
	sh.chats[chatID] = append(sh.chats[chatID], e)
	sh.mu.Unlock()
	return nil
}

func (h *Hub) unbindOwned(token string, connID uuid.UUID) {
	h.tokMu.Lock()
	if b, ok := h.tokens[token]; ok && b.connID == connID {
		delete(h.tokens, token)
	}
	h.tokMu.Unlock()
}

// Detach снимает ровно одно соединение; привязку токена убирает, только если она его.
func (h *Hub) Detach(chatID domain.ChatID, connID uuid.UUID, token string) {
	h.removeWhere(chatID, func(e Entry) bool { return e.ConnID == connID })
	h.unbindOwned(token, connID)
}

// Evict удаляет пользователя из чата вместе с привязками его токенов
// и сдвигает epoch, чтобы незавершённый Init этого пользователя не зарегистрировался.
func (h *Hub) Evict(chatID domain.ChatID, userID domain.UserID) []Entry {
	sh := h.shardFor(chatID)
	sh.mu.Lock()
	sh.epochs[memberKey{chatID, userID}]++
	removed := sh.removeLocked(chatID, func(e Entry) bool { return e.UserID == userID })
	sh.mu.Unlock()
	if len(removed) == 0 {
		return nil
	}

	h.tokMu.Lock()
	for _, e := range removed {
		if b, ok := h.tokens[e.Token]; ok && b.connID == e.ConnID {
			delete(h.tokens, e.Token)
		}
	}
	h.tokMu.Unlock()
	return removed
}

// Stats: число чатов с живыми соединениями и самих соединений.
func (h *Hub) Stats() (chats, conns int) {
	for i := range h.shards {
		sh := &h.shards[i]
		sh.mu.RLock()
		chats += len(sh.chats)
		for _, entries := range sh.chats {
			conns += len(entries)
		}
		sh.mu.RUnlock()
	}
	return chats, conns
}
