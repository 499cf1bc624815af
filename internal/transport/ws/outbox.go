package ws

import "sync"

// Outbox: очередь исходящих фреймов одного соединения.
// Пишут в неё читатель своего соединения и чужие Broadcast'ы, читает только writeLoop.
// Push никогда не блокируется: при переполнении фрейм отбрасывается.
type Outbox struct {
	mu      sync.Mutex
	queue   [][]byte
	limit   int
	closed  bool
	dropped int

	ready chan struct{}
	done  chan struct{}
}

func NewOutbox(limit int) *Outbox {
	return &Outbox{
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push ставит фрейм в очередь. false: outbox закрыт или переполнен.
func (o *Outbox) Push(frame []byte) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if o.limit > 0 && len(o.queue) >= o.limit {
		o.dropped++
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, frame)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain забирает всё накопленное. Работает и после Close, чтобы дописать хвост.
func (o *Outbox) Drain() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.queue
	o.queue = nil
	return out
}

func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.done)
}

func (o *Outbox) Ready() <-chan struct{} { return o.ready }
func (o *Outbox) Done() <-chan struct{}  { return o.done }

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Outbox) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
