package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"inksink-backend/internal/handlers"
	"inksink-backend/internal/middleware"
	"inksink-backend/internal/websocket"
)

type Handlers struct {
	Chat    *handlers.ChatHandler
	Title   *handlers.TitleHandler
	Chats   *handlers.ChatsHandler
	Credits *handlers.CreditsHandler
}

func New(
	jwtAuth *middleware.JWTAuth,
	h Handlers,
	wsHub *websocket.Hub,
	frontendURL string,
	development bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Model calls are the expensive part: 20 runs per minute per user.
	chatLimiter := middleware.NewRateLimiter(20, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if development {
			r.With(chatLimiter.Middleware).Post("/stream", h.Chat.StreamPublic)
		}

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(chatLimiter.Middleware)
				r.Post("/chat", h.Chat.Stream)
				r.Post("/chat-title", h.Title.Generate)
			})

			r.Get("/credits", h.Credits.Get)

			r.Route("/documents/{documentID}/chats", func(r chi.Router) {
				r.Get("/", h.Chats.List)
				r.Get("/latest", h.Chats.Latest)
			})

			r.Route("/chats", func(r chi.Router) {
				r.Post("/", h.Chats.Create)
				r.Get("/{id}", h.Chats.Get)
				r.Put("/{id}", h.Chats.Update)
				r.Delete("/{id}", h.Chats.Delete)
			})
		})

		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
