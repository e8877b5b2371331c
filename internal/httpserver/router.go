package httpserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"homehub/internal/config"
	"homehub/internal/domain"
	"homehub/internal/security"
	"homehub/internal/service"
	"homehub/internal/store/postgres"
	"homehub/internal/store/sqlite"
)

// Repositories groups the storage implementations behind the domain
// interfaces so the router does not care which driver backs them.
type Repositories struct {
	Groups        domain.GroupRepository
	Conversations domain.ConversationRepository
	Participants  domain.ParticipantRepository
	Messages      domain.MessageRepository
}

// NewSQLiteRepositories builds the repository set on the SQLite store.
func NewSQLiteRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Groups:        sqlite.NewGroupRepo(db),
		Conversations: sqlite.NewConversationRepo(db),
		Participants:  sqlite.NewParticipantRepo(db),
		Messages:      sqlite.NewMessageRepo(db),
	}
}

// NewPostgresRepositories builds the repository set on the PostgreSQL store.
func NewPostgresRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Groups:        postgres.NewGroupRepo(db),
		Conversations: postgres.NewConversationRepo(db),
		Participants:  postgres.NewParticipantRepo(db),
		Messages:      postgres.NewMessageRepo(db),
	}
}

// NewRouter constructs the main HTTP router and wires routes, services,
// and middleware.
func NewRouter(cfg *config.Config, repos *Repositories, tokenSvc *security.TokenService) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	guard := service.NewAccessGuard(repos.Conversations, repos.Participants)
	convSvc := service.NewConversationService(repos.Conversations, repos.Participants, repos.Messages, guard)
	msgSvc := service.NewMessageService(repos.Messages, guard)
	groupSvc := service.NewGroupService(repos.Groups, repos.Conversations, repos.Participants)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "HomeHub API",
			"version": "1.0.0",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes; everything requires a decoded identity.
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(tokenSvc))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", handleListConversations(convSvc))
			r.Post("/dm", handleCreateDirectMessage(convSvc))
			r.Post("/group", handleCreateGroupChat(convSvc))
			r.Post("/participants/add", handleAddParticipant(convSvc))
			r.Delete("/participants/remove", handleRemoveParticipant(convSvc))
			r.Get("/{conversationID}", handleGetConversation(convSvc))
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/send", handleSendMessage(msgSvc))
			r.Get("/conversation/{conversationID}", handleListMessages(msgSvc))
			r.Patch("/read", handleMarkRead(msgSvc))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", handleCreateGroup(groupSvc))
			r.Put("/{groupID}/membership", handleUpdateMembership(groupSvc))
			r.Delete("/{groupID}", handleDeleteGroup(groupSvc))
		})
	})

	return r
}
