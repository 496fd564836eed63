package bootstrap

import (
	"context"
	"log"
	"time"

	"syllabus-calendar-be/internal/config"
	"syllabus-calendar-be/internal/controller"
	"syllabus-calendar-be/internal/handler"
	"syllabus-calendar-be/internal/pkg/logger"
	"syllabus-calendar-be/internal/repository/memory"
	"syllabus-calendar-be/internal/repository/unitofwork"
	"syllabus-calendar-be/internal/service"
	"syllabus-calendar-be/internal/websocket"
	"syllabus-calendar-be/pkg/extractor"
	pktNats "syllabus-calendar-be/pkg/nats"
	"syllabus-calendar-be/pkg/parser"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	EventController  controller.IEventController
	ImportController controller.IImportController

	// Background Services (Exposed for main.go to run)
	ProgressConsumer service.IProgressConsumerService

	// WebSockets & Progress Streaming
	ProgressHandler *handler.ProgressHandler
	WebSocketHub    *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus (in-process progress topic)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/progress.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Pipeline providers
	remoteTimeout := time.Duration(cfg.Import.RemoteTimeoutSecs) * time.Second

	var docExtractor extractor.Extractor
	if cfg.Import.ExtractorProvider == "ocr" {
		docExtractor = extractor.NewOCRClient(cfg.Import.OCRBaseURL, remoteTimeout)
		log.Printf("[INFO] Using Extractor Provider: OCR (%s)", cfg.Import.OCRBaseURL)
	} else {
		docExtractor = extractor.NewPopplerExtractor()
		log.Printf("[INFO] Using Extractor Provider: POPPLER")
	}

	parserClient := parser.NewClient(
		cfg.Parser.BaseURL,
		time.Duration(cfg.Parser.TimeoutSecs)*time.Second,
	)

	sessionRepo := memory.NewImportSessionRepository()

	// 4. Services
	progressPublisher := service.NewProgressPublisherService(pubSub, cfg.App.ProgressTopic, sysLogger)
	progressConsumer := service.NewProgressConsumerService(pubSub, cfg.App.ProgressTopic, wsHub)

	eventStoreService := service.NewEventStoreService(uowFactory, sysLogger, natsPub, remoteTimeout)
	importService := service.NewImportService(
		sessionRepo,
		docExtractor,
		parserClient,
		eventStoreService,
		progressPublisher,
		uowFactory,
		natsPub,
		sysLogger,
		cfg.Import,
	)

	// 5. Handlers & Controllers
	progressHandler := handler.NewProgressHandler(wsHub, wsLogger)

	return &Container{
		EventController:  controller.NewEventController(eventStoreService),
		ImportController: controller.NewImportController(importService, cfg.App),

		ProgressConsumer: progressConsumer,

		ProgressHandler: progressHandler,
		WebSocketHub:    wsHub,
	}
}
