package cmd

import (
	"database/sql"
	"net"

	"github.com/vibast-solutions/ms-go-accounts/app/controller"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server for the user account service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	userRepo := repository.NewUserRepository(db)
	sessionCodec := token.NewCodec(cfg.SecretKey, cfg.AccessTokenTTL, token.PurposeSession)
	actionCodec := token.NewCodec(cfg.SecretKey, cfg.ActionTokenTTL, token.PurposeAction)
	dispatcher := mailer.NewAsyncDispatcher(mailer.NewSMTPMailer(cfg))
	userService := service.NewUserService(userRepo, dispatcher, actionCodec, cfg)

	startHTTPServer(cfg, userRepo, userService, sessionCodec, actionCodec)
}

func startHTTPServer(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	userService *service.UserService,
	sessionCodec, actionCodec *token.Codec,
) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authController := controller.NewAuthController(userService, sessionCodec, actionCodec)
	userController := controller.NewUserController(userService)
	authMiddleware := middleware.NewAuthMiddleware(sessionCodec, userRepo)

	auth := e.Group("/auth")
	auth.POST("/token", authController.Login)
	auth.GET("/generate-password", authController.GeneratePassword)
	auth.POST("/users/register", authController.Register)
	auth.GET("/users/verify", authController.VerifyUser)
	auth.POST("/users/:email/password-recovery", authController.RecoverPassword)
	auth.POST("/users/reset_password", authController.ResetPassword)

	authenticated := auth.Group("", authMiddleware.RequireAuth, authMiddleware.RequireActive)
	authenticated.GET("/users/me/", userController.Me)
	authenticated.PATCH("/users/:id", userController.UpdateUser)
	authenticated.DELETE("/users/:id", userController.DeleteUser)

	admin := auth.Group("", authMiddleware.RequireAuth, authMiddleware.RequireActive, authMiddleware.RequireAdmin)
	admin.GET("/users", userController.ListUsers)
	admin.GET("/users/:id", userController.GetUser)
	admin.POST("/users", userController.CreateUser)

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}
