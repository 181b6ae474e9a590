package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/innovation-portal/internal/audit"
	"github.com/frahmantamala/innovation-portal/internal/auth"
	"github.com/frahmantamala/innovation-portal/internal/initiative"
	"github.com/frahmantamala/innovation-portal/internal/obs"
	"github.com/frahmantamala/innovation-portal/internal/permission"
	"github.com/frahmantamala/innovation-portal/internal/role"
	"github.com/frahmantamala/innovation-portal/internal/submission"
	"github.com/frahmantamala/innovation-portal/internal/transport/middleware"
	"github.com/frahmantamala/innovation-portal/internal/transport/swagger"
	"github.com/frahmantamala/innovation-portal/internal/user"
	"github.com/go-chi/chi"
)

// Handlers groups everything the router mounts. Nil handlers leave their routes out.
type Handlers struct {
	Health     *HealthHandler
	Auth       *auth.Handler
	RBAC       *auth.RBACAuthorization
	User       *user.Handler
	Submission *submission.Handler
	Initiative *initiative.Handler
	Role       *role.Handler
	Audit      *audit.Handler
	OpenAPI    *swagger.Document
}

type RouterOptions struct {
	AllowedOrigins string
	MetricsPath    string
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts RouterOptions, logger *slog.Logger) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientInfo)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(obs.Instrument)
	router.Use(middleware.LoggingMiddleware(logger))

	if opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, obs.Handler())
	}

	if h.OpenAPI != nil {
		router.Get(swagger.DocumentURL, h.OpenAPI.ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if h.Health != nil {
			h.Health.WriteError(w, http.StatusNotFound, "Route not found")
			return
		}
		http.NotFound(w, r)
	})

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/otp/request", h.Auth.RequestOTP)
			sr.Post("/otp/verify", h.Auth.VerifyOTP)
			sr.Get("/session", h.Auth.Session)
			sr.With(h.Auth.AuthMiddleware).Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				pr.Post("/users/me/profile", h.User.CompleteProfile)
			}

			// Submission handlers check scoped permissions themselves.
			if h.Submission != nil {
				pr.Route("/submissions", func(sr chi.Router) {
					sr.Get("/", h.Submission.ListSubmissions)
					sr.Post("/", h.Submission.CreateSubmission)
					sr.Get("/{id}", h.Submission.GetSubmission)
					sr.Patch("/{id}", h.Submission.UpdateSubmission)
					sr.Get("/{id}/transitions", h.Submission.GetTransitions)
					sr.Post("/{id}/transitions", h.Submission.PostTransition)
					sr.Get("/{id}/comments", h.Submission.ListComments)
					sr.Post("/{id}/comments", h.Submission.AddComment)
				})
			}

			if h.RBAC == nil {
				return
			}

			if h.Initiative != nil {
				pr.Group(func(ir chi.Router) {
					ir.Use(h.RBAC.Middleware(permission.InitiativesCreate))
					ir.Get("/initiatives", h.Initiative.ListInitiatives)
					ir.Get("/initiatives/{id}", h.Initiative.GetInitiative)
				})
			}

			if h.Role != nil {
				pr.Group(func(rr chi.Router) {
					rr.Use(h.RBAC.Middleware(permission.RolesManage))
					rr.Get("/roles", h.Role.ListRoles)
					rr.Post("/users/{id}/roles/{role}", h.Role.AssignRole)
					rr.Delete("/users/{id}/roles/{role}", h.Role.RevokeRole)
				})
			}

			if h.Audit != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(h.RBAC.Middleware(permission.AuditRead))
					ar.Get("/audit", h.Audit.ListEntries)
				})
			}
		})
	})
}
