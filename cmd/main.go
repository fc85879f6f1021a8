package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pageflow/internal/infrastructure"
	httpiface "pageflow/internal/interfaces/http"
	"pageflow/internal/repository"
	"pageflow/internal/usecases"
	"pageflow/pkg/config"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	pgClient, err := infrastructure.NewPostgresClient(cfg.Database.URL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pgClient.Close()

	userRepo := repository.NewUserRepository(pgClient.Pool)
	pageRepo := repository.NewPageRepository(pgClient.Pool)
	subRepo := repository.NewSubscriberRepository(pgClient.Pool)
	convRepo := repository.NewConversationRepository(pgClient.Pool)
	msgRepo := repository.NewMessageRepository(pgClient.Pool)
	flowRepo := repository.NewFlowRepository(pgClient.Pool)
	statsRepo := repository.NewStatsRepository(pgClient.Pool)

	messenger := infrastructure.NewMessengerClient(cfg.Meta.GraphAPIBase, logger)
	pacer := infrastructure.NewSendPacer(5, 10)
	guard := infrastructure.NewExecutionGuard(2 * time.Second)

	executor := usecases.NewFlowExecutor(messenger, msgRepo, convRepo, subRepo, pacer, logger)
	dispatcher := usecases.NewWebhookDispatcher(
		pageRepo, subRepo, convRepo, msgRepo, flowRepo,
		messenger, executor, guard, logger,
	)
	authUsecase := usecases.NewAuthUsecase(userRepo, cfg.Auth.JWTSecret)
	dashboardUsecase := usecases.NewDashboardUsecase(statsRepo, pageRepo)

	authMiddleware := httpiface.NewMiddleware(cfg.Auth.JWTSecret)
	webhookHandler := httpiface.NewWebhookHandler(dispatcher, cfg.Meta.VerifyToken, cfg.Meta.AppSecret, logger)
	pageHandler := httpiface.NewPageHandler(pageRepo, subRepo, messenger, logger)
	flowHandler := httpiface.NewFlowHandler(flowRepo, pageRepo, logger)
	inboxHandler := httpiface.NewInboxHandler(convRepo, msgRepo, subRepo, pageRepo, messenger, logger)
	dashboardHandler := httpiface.NewDashboardHandler(dashboardUsecase, logger)

	r := gin.Default()
	httpiface.SetupRoutes(r, authUsecase, webhookHandler, pageHandler, flowHandler, inboxHandler, dashboardHandler, authMiddleware)

	logger.Info("server starting", zap.String("addr", cfg.Server.Addr))
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
