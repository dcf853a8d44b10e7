package http

import (
	"log/slog"

	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/http/handlers"
	"github.com/geocoder89/userapi/internal/http/middlewares"
	"github.com/geocoder89/userapi/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Env          string
	ServiceName  string
	CORSOrigins  []string
	MaxBodyBytes int64

	Auth   handlers.AuthService
	Users  handlers.UserService
	Authn  middlewares.Authenticator
	Checks map[string]handlers.Pinger

	// Prom and Gatherer may be nil; /metrics is only mounted with a Gatherer.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, d Deps) *gin.Engine {
	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.ServiceName == "" {
		d.ServiceName = "userapi"
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}

	handlers.RegisterValidators()

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(d.Env))
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	am := middlewares.NewAuthMiddleware(d.Authn, d.Prom, log)
	authHandler := handlers.NewAuthHandler(d.Auth, log)
	usersHandler := handlers.NewUsersHandler(d.Users, log)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/profile", am.RequireAuth(), authHandler.Profile)

	users := api.Group("/users", am.RequireAuth())
	users.GET("", am.RequireRoles(user.RoleAdmin), usersHandler.List)
	users.POST("", am.RequireRoles(user.RoleAdmin), usersHandler.Create)
	users.GET("/:id", am.RequireRoles(user.RoleAdmin), usersHandler.Get)
	users.PUT("/:id", am.RequireSelfOrRoles("id", user.RoleAdmin), usersHandler.Update)
	users.DELETE("/:id", am.RequireRoles(user.RoleAdmin), usersHandler.Delete)

	return r
}
