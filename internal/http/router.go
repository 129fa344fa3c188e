package http

import (
	"context"

	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/config"
	"github.com/geocoder89/absencehub/internal/http/handlers"
	"github.com/geocoder89/absencehub/internal/http/middlewares"
	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Env         string
	CORSOrigins []string

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Auth     handlers.AuthWorkflow
	Users    handlers.UserManager
	Absences handlers.AbsenceManager
	Verifier middlewares.TokenVerifier
	Rights   auth.RoleRights

	// AuthLimiter guards /v1/auth; nil disables it.
	AuthLimiter *middlewares.RateLimiter

	Ping        func(ctx context.Context) error
	Mail        handlers.MailStatus
	MailMetrics *observability.MailMetrics
}

// SetMode maps the app environment onto gin's mode, which also decides how
// much of an error reaches the client.
func SetMode(env string) {
	switch env {
	case config.EnvDev:
		gin.SetMode(gin.DebugMode)
	case config.EnvTest:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}

const docsPath = "/v1/docs"

func NewRouter(d Deps) *gin.Engine {
	SetMode(d.Env)

	r := gin.New()

	docsPrefix := ""
	if d.Env == config.EnvDev {
		docsPrefix = docsPath
	}

	// middleware
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(handlers.ErrorBoundary(d.Prom))
	r.Use(handlers.Recover())
	r.Use(middlewares.SecurityHeaders(docsPrefix))
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	r.NoRoute(handlers.NotFound)

	// health
	h := handlers.NewHealthHandler(d.Ping, d.Mail, d.MailMetrics)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")

	if docsPrefix != "" {
		r.GET(docsPath, handlers.SwaggerUI)
		r.GET(docsPath+"/openapi.yaml", handlers.OpenAPISpec)
	}

	authMW := middlewares.NewAuthMiddleware(d.Verifier, d.Users)
	requireAuth := authMW.RequireAuth()

	// auth
	authHandler := handlers.NewAuthHandler(d.Auth)
	authGroup := v1.Group("/auth")
	if d.AuthLimiter != nil {
		authGroup.Use(d.AuthLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	}
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.POST("/refresh-tokens", authHandler.RefreshTokens)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/reset-password", authHandler.ResetPassword)
	authGroup.POST("/send-verification-email", requireAuth, authHandler.SendVerificationEmail)
	authGroup.POST("/verify-email", authHandler.VerifyEmail)

	// users
	usersHandler := handlers.NewUsersHandler(d.Users)
	users := v1.Group("/users", requireAuth)
	users.POST("", middlewares.Authorize(d.Rights, "", auth.PermManageUsers), usersHandler.CreateUser)
	users.GET("", middlewares.Authorize(d.Rights, "", auth.PermGetUsers), usersHandler.ListUsers)
	users.GET("/:userId", middlewares.Authorize(d.Rights, "userId", auth.PermGetUsers), usersHandler.GetUser)
	users.PATCH("/:userId", middlewares.Authorize(d.Rights, "userId", auth.PermManageUsers), usersHandler.UpdateUser)
	users.DELETE("/:userId", middlewares.Authorize(d.Rights, "userId", auth.PermManageUsers), usersHandler.DeleteUser)

	// absences; ownership is checked per entry by the service
	absencesHandler := handlers.NewAbsencesHandler(d.Absences)
	absences := v1.Group("/absences", requireAuth)
	absences.POST("", absencesHandler.CreateAbsence)
	absences.GET("", absencesHandler.ListAbsences)
	absences.GET("/:absenceId", absencesHandler.GetAbsence)
	absences.PATCH("/:absenceId", absencesHandler.UpdateAbsence)
	absences.DELETE("/:absenceId", absencesHandler.DeleteAbsence)

	return r
}
