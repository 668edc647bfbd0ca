package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"client-manager-bot/internal/flow"
	"client-manager-bot/internal/infra/metrics"
	"client-manager-bot/internal/usecase"
)

// Server is the admin panel backend. It always operates with an unrestricted
// owner scope; the panel is owner-facing and gated by the login password.
type Server struct {
	clients  usecase.ClientUseCase
	stats    usecase.StatsUseCase
	enc      flow.Encryptor
	auth     *AuthManager
	password string
	ownerID  int64
	log      *zerolog.Logger
}

func NewServer(
	clients usecase.ClientUseCase,
	stats usecase.StatsUseCase,
	enc flow.Encryptor,
	auth *AuthManager,
	password string,
	ownerID int64,
	logger *zerolog.Logger,
) *Server {
	compLog := logger.With().Str("component", "AdminServer").Logger()
	return &Server{
		clients:  clients,
		stats:    stats,
		enc:      enc,
		auth:     auth,
		password: password,
		ownerID:  ownerID,
		log:      &compLog,
	}
}

// Router builds the chi mux with all admin routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.guard)

		r.Get("/stats", s.handleStats)

		r.Get("/clients", s.handleClientsList)
		r.Post("/clients", s.handleClientCreate)
		r.Get("/clients/{id}", s.handleClientGet)
		r.Patch("/clients/{id}", s.handleClientUpdate)
		r.Delete("/clients/{id}", s.handleClientDelete)
		r.Post("/clients/{id}/products", s.handleProductAdd)

		r.Patch("/products/{id}", s.handleProductUpdate)
		r.Delete("/products/{id}", s.handleProductDelete)
		r.Post("/products/{id}/renew", s.handleProductRenew)

		r.Get("/backup", s.handleBackupExport)
	})

	return r
}

// guard rejects requests without a valid session token.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.password == "" {
			s.log.Error().Msg("admin password is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) passwordMatches(candidate string) bool {
	if s.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.password)) == 1
}
