package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"StudentPortal/internal/auth"
	"StudentPortal/internal/config"
	"StudentPortal/internal/logging"
	"StudentPortal/internal/metrics"
	"StudentPortal/internal/notification"
	"StudentPortal/internal/observability"
	"StudentPortal/internal/otp"
	"StudentPortal/internal/recovery"
	"StudentPortal/internal/token"
	"StudentPortal/pkg/middleware"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// EchoModules wires the portal: configuration, storage, the credential
// lifecycle services and the HTTP server.
var EchoModules = fx.Module("echo",
	fx.Provide(config.Load),
	fx.Provide(NewLogger),
	fx.Provide(config.NewMongoDatabase),
	fx.Provide(NewTokenService),
	fx.Provide(NewGate),
	fx.Provide(
		fx.Annotate(auth.NewUserRepository, fx.As(new(auth.Repository))),
		NewUserService,
		NewAuthHandler,
	),
	fx.Provide(
		fx.Annotate(otp.NewMongoRepository, fx.As(new(otp.Repository))),
		NewLedger,
		NewSweeper,
	),
	fx.Provide(
		fx.Annotate(notification.NewDeliveryRepository, fx.As(new(notification.Repository))),
		NewNotifier,
		notification.NewHandler,
	),
	fx.Provide(
		fx.Annotate(recovery.NewMongoSessionStore, fx.As(new(recovery.SessionStore))),
		NewMachine,
		NewRecoveryHandler,
	),
	fx.Provide(NewEchoServer),
	fx.Invoke(InitSentry),
	fx.Invoke(EnsureDefaultAdmin),
	fx.Invoke(StartSweeper),
	fx.Invoke(RegisterRoutes),
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.Env)
}

func NewTokenService(cfg *config.Config) (*token.Service, error) {
	return token.NewService(cfg.JWTSecret)
}

func NewGate(cfg *config.Config, tokens *token.Service) *middleware.Gate {
	return middleware.NewGate(tokens, cfg.CookieSecure)
}

func NewUserService(repo auth.Repository, tokens *token.Service, log *zap.Logger) *auth.UserService {
	return auth.NewUserService(repo, tokens, log)
}

func NewAuthHandler(users *auth.UserService, gate *middleware.Gate, ledger *otp.Ledger) *auth.AuthHandler {
	return auth.NewAuthHandler(users, gate, ledger)
}

func NewLedger(cfg *config.Config, repo otp.Repository, log *zap.Logger) *otp.Ledger {
	return otp.NewLedger(repo, cfg.OTPTTL, log)
}

func NewSweeper(cfg *config.Config, ledger *otp.Ledger, log *zap.Logger) *otp.Sweeper {
	return otp.NewSweeper(ledger, cfg.OTPSweepInterval, log)
}

// NewNotifier returns the configured transport with delivery recording.
func NewNotifier(cfg *config.Config, deliveries notification.Repository, log *zap.Logger) (notification.Notifier, error) {
	transport, err := notification.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return notification.NewRecording(transport, deliveries, cfg.MailProvider, log), nil
}

func NewMachine(cfg *config.Config, users *auth.UserService, ledger *otp.Ledger, notifier notification.Notifier, sessions recovery.SessionStore, log *zap.Logger) *recovery.Machine {
	return recovery.NewMachine(users, ledger, notifier, sessions, cfg.RecoverySessionTTL, log)
}

func NewRecoveryHandler(cfg *config.Config, machine *recovery.Machine, log *zap.Logger) *recovery.Handler {
	return recovery.NewHandler(machine, cfg.CookieSecure, log)
}

func InitSentry(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		return err
	}
	if cfg.SentryDSN != "" {
		log.Info("sentry enabled")
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			flush()
			return nil
		},
	})
	return nil
}

// EnsureDefaultAdmin creates the default admin before the server accepts
// requests. A generated password is logged this once.
func EnsureDefaultAdmin(lc fx.Lifecycle, cfg *config.Config, users *auth.UserService, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			created, generated, err := users.EnsureDefaultAdmin(ctx, cfg.DefaultAdminPassword)
			if err != nil {
				return err
			}
			switch {
			case created && generated != "":
				log.Warn("created default admin with a generated password; change it after first login",
					zap.String("username", auth.DefaultAdminUsername),
					zap.String("password", generated))
			case created:
				log.Info("created default admin", zap.String("username", auth.DefaultAdminUsername))
			}
			return nil
		},
	})
}

func StartSweeper(lc fx.Lifecycle, s *otp.Sweeper) {
	s.Start(lc)
}

func NewEchoServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *echo.Echo {
	e := echo.New()
	middleware.SetupMiddleware(e, log, cfg.CORSOrigins)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("failed to start the server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

type Handlers struct {
	fx.In

	Gate       *middleware.Gate
	Auth       *auth.AuthHandler
	Recovery   *recovery.Handler
	Deliveries *notification.Handler
	DB         *mongo.Database
}

func RegisterRoutes(e *echo.Echo, h Handlers) {
	guest := h.Gate.RedirectIfAuthenticated
	authenticated := h.Gate.RequireAuthentication

	e.GET("/healthz", healthz(h.DB))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.GET("/", h.Auth.Home, authenticated)
	e.GET("/login", h.Auth.LoginPage, guest)
	e.POST("/login", h.Auth.Login, guest)
	e.GET("/logout", h.Auth.Logout)

	e.POST("/forgot-password", h.Recovery.ForgotPassword, guest)
	e.GET("/forgot-password/status", h.Recovery.Status, guest)
	e.POST("/forgot-password/cancel", h.Recovery.Cancel)
	e.POST("/verify-otp", h.Recovery.VerifyCode, guest)
	e.POST("/reset-password", h.Recovery.ResetPassword, guest)

	student := e.Group("/student", authenticated, middleware.RequireRole(string(auth.RoleStudent)))
	student.GET("/profile", h.Auth.Profile)

	admin := e.Group("/admin", authenticated, middleware.RequireRole(string(auth.RoleAdmin)))
	admin.GET("/dashboard", h.Auth.Dashboard)
	admin.GET("/stats", h.Auth.Stats)
	admin.POST("/students", h.Auth.CreateStudent)
	admin.GET("/students/:id", h.Auth.GetStudent)
	admin.POST("/students/:id", h.Auth.UpdateStudent)
	admin.POST("/students/:id/delete", h.Auth.DeleteStudent)
	admin.GET("/courses/:course", h.Auth.CourseStudents)
	admin.GET("/deliveries", h.Deliveries.ListDeliveries)
}

func healthz(db *mongo.Database) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
