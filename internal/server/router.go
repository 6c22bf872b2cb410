package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"planora-backend/internal/config"
	"planora-backend/internal/domain"
	"planora-backend/internal/handler"
	"planora-backend/internal/observability/metrics"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Health        handler.HealthHandler
	Docs          handler.DocsHandler
	Auth          handler.AuthHandler
	Businesses    handler.BusinessHandler
	Clients       handler.ClientHandler
	Employees     handler.EmployeeHandler
	Classes       handler.ClassHandler
	Sessions      handler.SessionHandler
	Notifications handler.NotificationHandler
}

// NewRouter wires HTTP routes and middleware.
func NewRouter(cfg config.Config, logger *slog.Logger, resolver IdentityResolver, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", BusinessHeader},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, 1*time.Minute))
	r.Use(metrics.HTTPMetricsMiddleware)

	h.Health.RegisterRoutes(r)
	h.Auth.RegisterRoutes(r)
	h.Docs.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(resolver, logger))

		pr.Group(func(ar chi.Router) {
			ar.Use(RequireRole())
			h.Auth.RegisterProtectedRoutes(ar)
		})
		// platform operators
		pr.Group(func(sr chi.Router) {
			sr.Use(RequireRole(domain.RoleSuperAdmin))
			h.Businesses.RegisterAdminRoutes(sr)
		})
		// business owners
		pr.Group(func(or chi.Router) {
			or.Use(RequireRole(domain.RoleSuperAdmin, domain.RoleAdmin))
			h.Businesses.RegisterOwnerRoutes(or)
			h.Clients.RegisterStaffRoutes(or)
			h.Notifications.RegisterRoutes(or)
			h.Employees.RegisterRoutes(or)
			h.Classes.RegisterAdminRoutes(or)
			h.Sessions.RegisterAdminRoutes(or)
		})
		// staff
		pr.Group(func(er chi.Router) {
			er.Use(RequireRole(domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleEmployee))
			h.Classes.RegisterStaffRoutes(er)
			h.Sessions.RegisterStaffRoutes(er)
		})
		// staff and clients; the session service decides who may act for which client
		pr.Group(func(rr chi.Router) {
			rr.Use(RequireRole(domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleEmployee, domain.RoleClient))
			h.Sessions.RegisterRosterRoutes(rr)
		})
		pr.Group(func(cr chi.Router) {
			cr.Use(RequireRole(domain.RoleClient))
			h.Clients.RegisterMemberRoutes(cr)
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
