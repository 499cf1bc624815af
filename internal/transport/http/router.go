package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Handler        *Handler
	Sessions       httpmw.SessionValidator
	WS             http.HandlerFunc
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.WithRequestLogger)
	r.Use(httpmw.RequestLogger)
	r.Use(middlewareChi.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS endpoint: токен приходит в init-фрейме, не в заголовке
	if d.WS != nil {
		r.Get("/ws/chat", d.WS)
	}

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.BearerAuth(d.Sessions))
		pr.Use(middlewareChi.Timeout(timeout))

		pr.Route("/chats", func(rc chi.Router) {
			rc.Get("/", d.Handler.ListChats)
			rc.Post("/direct", d.Handler.CreateDirectChat)
			rc.Post("/group", d.Handler.CreateGroupChat)

			rc.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", d.Handler.GetChat)
				rr.Get("/messages", d.Handler.GetChatHistory)
				rr.Post("/members", d.Handler.UpdateMember)
			})
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
