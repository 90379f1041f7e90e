package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ai-editorial-be/internal/config"
	"ai-editorial-be/internal/controller"
	"ai-editorial-be/internal/handler"
	"ai-editorial-be/internal/pkg/logger"
	"ai-editorial-be/internal/repository/contract"
	"ai-editorial-be/internal/repository/implementation"
	"ai-editorial-be/internal/repository/memory"
	"ai-editorial-be/internal/service"
	"ai-editorial-be/internal/websocket"
	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/extract"
	pktNats "ai-editorial-be/pkg/nats"
	"ai-editorial-be/pkg/notify"
	"ai-editorial-be/pkg/revision"
	"ai-editorial-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	WorkflowController controller.IWorkflowController

	// Background Services (Exposed for main.go to run)
	DeliveryService service.IDeliveryService
	ActivityService service.IActivityService
	WorkflowService service.IWorkflowService

	// WebSockets
	WorkflowSocketHandler *handler.WorkflowSocketHandler
	WebSocketHub          *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires every dependency. db may be nil, which disables the
// revised document archive.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	deliveryLogger := logger.NewIsolatedLogger(cfg.App.DeliveryLogPath)
	c.Logger = sysLogger
	c.closers = append(c.closers, func() { _ = sysLogger.Sync(); _ = deliveryLogger.Sync() })

	catalog := editor.DefaultCatalog()
	if cfg.Workflow.CatalogPath != "" {
		loaded, err := editor.LoadCatalog(cfg.Workflow.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load editor catalog: %w", err)
		}
		catalog = loaded
	}
	sysLogger.Info("Bootstrap", "Editor catalog loaded", map[string]interface{}{"stages": catalog.Len()})

	// 2. Notification Bus
	pubSub := notify.NewPubSub(watermill.NewStdLogger(false, false))
	bus := notify.NewBus(pubSub)

	// 3. Infrastructure
	// Redis
	rdb, err := connectRedis(cfg, sysLogger)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
	} else {
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}

	// Session storage
	var sessionRepo contract.WorkflowSessionRepository
	if cfg.App.SessionBackend == "redis" {
		sessionRepo = implementation.NewWorkflowSessionRepositoryRedis(rdb, cfg.Workflow.SessionTTL)
	} else {
		sessionRepo = memory.NewSessionRepository(cfg.Workflow.SessionTTL)
	}
	sysLogger.Info("Bootstrap", "Session storage ready", map[string]interface{}{"backend": cfg.App.SessionBackend})

	var documentRepo contract.RevisedDocumentRepository
	if db != nil {
		documentRepo = implementation.NewRevisedDocumentRepository(db)
	} else {
		sysLogger.Warn("Bootstrap", "No database configured, final documents are not archived", nil)
	}

	// 4. Services
	revisionClient := revision.NewClient(cfg.Revision.BaseURL, cfg.Revision.APIToken, cfg.Revision.Timeout)
	extractor := extract.New(revisionClient, cfg.Workflow.AllowedExtensions, int64(cfg.Workflow.MaxUploadBytes))

	activityService := service.NewActivityService(natsSub, activityDurableName(), cfg.Workflow.SessionTTL, sysLogger)

	// Events go through NATS only when the feed can read them back. A nil
	// *Publisher must not end up inside the interface.
	var publisher service.IEventPublisher = activityService
	if natsPub != nil && natsSub != nil {
		publisher = natsPub
	}

	workflowService := service.NewWorkflowService(
		workflow.NewMachine(catalog),
		sessionRepo,
		documentRepo,
		revisionClient,
		extractor,
		bus,
		publisher,
		cfg.Workflow,
		sysLogger,
	)
	documentService := service.NewDocumentService(documentRepo)

	// 5. WebSocket delivery
	wsHub := websocket.NewHub(rdb, deliveryLogger)
	deliveryService := service.NewDeliveryService(bus, wsHub, deliveryLogger)
	c.closers = append(c.closers, func() { _ = bus.Close() })

	// 6. Controllers
	c.WorkflowController = controller.NewWorkflowController(workflowService, documentService, activityService, cfg.Auth.JWTSecret)
	c.WorkflowSocketHandler = handler.NewWorkflowSocketHandler(workflowService, wsHub, cfg.Auth.JWTSecret, deliveryLogger)
	c.WebSocketHub = wsHub
	c.DeliveryService = deliveryService
	c.ActivityService = activityService
	c.WorkflowService = workflowService

	return c, nil
}

// Close releases infrastructure in reverse order of creation.
func (c *Container) Close() {
	if c.WorkflowService != nil {
		_ = c.WorkflowService.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// connectRedis returns nil when Redis is optional and unreachable.
func connectRedis(cfg *config.Config, log logger.ILogger) (*redis.Client, error) {
	required := cfg.App.SessionBackend == "redis"
	if cfg.App.RedisURL == "" {
		if required {
			return nil, fmt.Errorf("SESSION_BACKEND=redis requires REDIS_URL")
		}
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		if required {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Warn("Bootstrap", "Failed to connect to Redis, running single-instance", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}
	return rdb, nil
}

// activityDurableName is unique per host since every instance keeps its own
// activity feed.
func activityDurableName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "workflow-activity-" + durableUnsafe.Replace(host)
}

var durableUnsafe = strings.NewReplacer(".", "-", "*", "-", ">", "-", " ", "-")
