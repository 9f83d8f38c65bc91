package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	database "barlive/Database"
	"barlive/configs"
	"barlive/internal/account"
	"barlive/internal/agora"
	"barlive/internal/livestream"
	"barlive/internal/presence"
	"barlive/internal/security"
	utils "barlive/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
)

func main() {
	_ = godotenv.Load()
	utils.Init("info")

	appConfig, err := configs.LoadConfig()
	if err != nil {
		utils.Logger.Fatalf("Failed to load configuration: %v", err)
	}

	utils.Init(appConfig.Log.Level)
	utils.Logger.Info("Starting barlive livestream server...")

	if err := appConfig.Validate(); err != nil {
		utils.Logger.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize database
	postgresDB, err := database.GetPostgresDB(appConfig)
	if err != nil {
		utils.Logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer postgresDB.Close()

	// Initialize stores
	livestreamStore := livestream.NewLivestreamStore(postgresDB)
	accountStore := account.NewAccountStore(postgresDB)

	// Initialize the credential issuer
	tokenService, err := agora.NewTokenService(appConfig.Agora.AppID, appConfig.Agora.AppCertificate, appConfig.Agora.TokenTTL)
	if err != nil {
		utils.Logger.Fatalf("Failed to initialize token service: %v", err)
	}

	// Presence registry and lifecycle service reference each other through
	// narrow callbacks, so wire the registry first with a late-bound closure.
	var service *livestream.LivestreamService
	registry, err := presence.NewRegistry(
		appConfig.Presence.JoinBatchSize,
		appConfig.Presence.JoinBatchDebounce,
		func(channelName string) error {
			_, err := service.EndLivestreamByChannel(channelName)
			return err
		},
		accountStore.GetDisplayInfo,
	)
	if err != nil {
		utils.Logger.Fatalf("Failed to initialize presence registry: %v", err)
	}

	fanout := livestream.NewFollowerFanout(accountStore, accountStore, accountStore, registry)
	service = livestream.NewLivestreamService(livestreamStore, tokenService, accountStore, fanout)

	// Start the scheduled-activation poller
	scheduler := livestream.NewActivationScheduler(
		livestreamStore,
		service,
		appConfig.Scheduler.Interval,
		appConfig.Scheduler.InitialDelay,
		appConfig.Scheduler.ItemTimeout,
	)
	scheduler.Start()
	defer scheduler.Stop()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = utils.CustomHTTPErrorHandler
	e.Use(security.RequestLogger)

	livestreamHandler := livestream.NewHandler(service, scheduler)
	wsHandler := presence.NewWSHandler(registry)
	setupLivestreamRoutes(e, appConfig, livestreamHandler, wsHandler)

	// Start HTTP server
	go func() {
		address := appConfig.Server.Host + ":" + strconv.Itoa(appConfig.Server.Port)
		if err := e.Start(address); err != nil {
			utils.Logger.Infof("HTTP server stopped: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		utils.Logger.Errorf("Server shutdown failed: %v", err)
	}
}

func setupLivestreamRoutes(e *echo.Echo, appConfig *configs.Config, h *livestream.Handler, ws *presence.WSHandler) {
	auth := security.JWTMiddleware(appConfig.JWT.Secret)

	api := e.Group("/api")
	api.Use(auth)

	api.POST("/livestreams", h.StartLivestream)
	api.POST("/livestreams/scheduled", h.CreateScheduledLivestream)
	api.GET("/livestreams/scheduled", h.GetScheduledLivestreams)
	api.GET("/livestreams/scheduled/mine", h.GetMyScheduledLivestreams)
	api.POST("/livestreams/scheduled/:id/activate", h.ActivateScheduledLivestream)
	api.DELETE("/livestreams/scheduled/:id", h.CancelScheduledLivestream)
	api.POST("/livestreams/:id/end", h.EndLivestream)
	api.POST("/livestreams/:id/view", h.IncrementView)
	api.GET("/livestreams/active", h.GetActiveLivestreams)
	api.GET("/livestreams/channel/:channel", h.GetLivestreamByChannel)
	api.POST("/livestreams/channel/:channel/token", h.IssueViewerToken)
	api.GET("/livestreams/host/:hostId", h.GetLivestreamsByHost)
	api.POST("/scheduler/run", h.RunScheduler)

	e.GET("/ws/livestream", ws.HandleConnection, auth)

	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
}
