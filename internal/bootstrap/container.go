package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docassist-be/internal/config"
	"docassist-be/internal/controller"
	"docassist-be/internal/pkg/logger"
	"docassist-be/internal/pkg/serverutils"
	"docassist-be/internal/repository/implementation"
	"docassist-be/internal/service"
	"docassist-be/pkg/database"
	"docassist-be/pkg/llm"
	"docassist-be/pkg/llm/factory"
	"docassist-be/pkg/lock"
	"docassist-be/pkg/rag"
	"docassist-be/pkg/vectorstore"
	vsFactory "docassist-be/pkg/vectorstore/factory"

	pktNats "docassist-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const bootModule = "BOOT"

type Container struct {
	Logger      logger.ILogger
	LLMProvider llm.Provider
	VectorStore vectorstore.Provider

	// Controllers
	ChatController  controller.IChatController
	AdminController controller.IAdminController

	// Background Services (Exposed for main.go to run). SyncService is nil when
	// synchronisation is disabled.
	SyncService        *service.SyncService
	IndexEventConsumer *service.IndexEventConsumer

	natsSub *pktNats.Subscriber
	closers []func() error
}

// NewContainer wires every dependency. Optional infrastructure (NATS, Redis) only
// logs a warning when unreachable; the AI provider, vector store and databases are
// required.
func NewContainer(ctx context.Context, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. AI Provider
	llmProvider, err := factory.NewLLMProvider(ctx, cfg.Ai)
	if err != nil {
		return nil, fmt.Errorf("init AI provider: %w", err)
	}
	c.LLMProvider = llmProvider
	sysLogger.Info(bootModule, "AI provider ready", map[string]interface{}{
		"provider":   llmProvider.Name(),
		"dimensions": llmProvider.EmbeddingDimensions(),
	})

	// 2. Vector Store
	var vectorDB *gorm.DB
	if cfg.VectorStore.Provider == config.VectorStorePgVector {
		vectorDB, err = database.NewGormDBFromDSN(cfg.Database.VectorConnection)
		if err != nil {
			return nil, fmt.Errorf("connect vector database: %w", err)
		}
		c.closers = append(c.closers, func() error { return database.Close(vectorDB) })
	}

	store, closeStore, err := vsFactory.NewVectorStore(ctx, cfg.VectorStore, vectorDB, llmProvider.EmbeddingDimensions())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	c.closers = append(c.closers, closeStore)
	c.VectorStore = store
	sysLogger.Info(bootModule, "Vector store ready", map[string]interface{}{"provider": store.Name()})

	// 3. Event Bus
	natsPub, natsSub := connectNats(cfg.App.NatsURL, sysLogger)
	if natsPub != nil {
		c.closers = append(c.closers, func() error { natsPub.Close(); return nil })
	}
	if natsSub != nil {
		c.natsSub = natsSub
		c.closers = append(c.closers, func() error { natsSub.Close(); return nil })
	}

	// 4. Sync
	var syncRequester controller.SyncRequester
	var reindexer service.Reindexer
	if cfg.Sync.Enabled {
		dmsDB, err := database.NewGormDBFromDSN(cfg.Database.DMSConnection)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect document database: %w", err)
		}
		c.closers = append(c.closers, func() error { return database.Close(dmsDB) })

		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NewStdLogger(false, false))
		c.closers = append(c.closers, pubSub.Close)

		opts := []service.SyncOption{service.WithSyncTrigger(pubSub, cfg.Sync.TriggerTopic)}
		if natsPub != nil {
			opts = append(opts, service.WithSyncPublisher(natsPub))
		}
		if locker := connectLocker(ctx, cfg.App.RedisURL, sysLogger, c); locker != nil {
			opts = append(opts, service.WithSyncLocker(locker))
		}

		c.SyncService = service.NewSyncService(
			implementation.NewDocumentRepository(dmsDB),
			llmProvider,
			store,
			sysLogger,
			cfg.Sync,
			opts...,
		)
		syncRequester = service.NewSyncTrigger(pubSub, cfg.Sync.TriggerTopic)
		reindexer = c.SyncService
	} else {
		sysLogger.Warn(bootModule, "Metadata synchronisation is disabled", nil)
	}
	c.IndexEventConsumer = service.NewIndexEventConsumer(store, reindexer, sysLogger)

	// 5. Query Pipeline
	orchestrator := rag.NewOrchestrator(llmProvider, store, sysLogger,
		rag.WithFallbackURL(cfg.Rag.FallbackURL),
		rag.WithTopK(cfg.Rag.TopK),
	)
	chatbotService := service.NewChatbotService(orchestrator, sysLogger)

	// 6. Controllers
	authMiddleware := serverutils.JwtMiddleware(serverutils.JWTConfig{
		Secret:   cfg.Auth.JwtSecret,
		Issuer:   cfg.Auth.JwtIssuer,
		Audience: cfg.Auth.JwtAudience,
	})
	c.ChatController = controller.NewChatController(chatbotService, authMiddleware)
	c.AdminController = controller.NewAdminController(syncRequester, authMiddleware)

	return c, nil
}

// StartConsumers subscribes the index event consumer when NATS is available.
func (c *Container) StartConsumers(ctx context.Context) {
	if c.natsSub == nil {
		c.Logger.Warn(bootModule, "NATS unavailable, index deletions rely on sync purge", nil)
		return
	}
	if err := c.IndexEventConsumer.Start(ctx, c.natsSub); err != nil {
		c.Logger.Warn(bootModule, "Failed to subscribe to document events", map[string]interface{}{"error": err.Error()})
	}
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func connectNats(url string, log logger.ILogger) (*pktNats.Publisher, *pktNats.Subscriber) {
	if url == "" {
		return nil, nil
	}
	pub, err := pktNats.NewPublisher(url)
	if err != nil {
		log.Warn(bootModule, "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
	}
	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		log.Warn(bootModule, "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
	}
	return pub, sub
}

func connectLocker(ctx context.Context, url string, log logger.ILogger, c *Container) lock.Locker {
	if url == "" {
		return nil
	}
	rdb := lock.NewRedisClient(url)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn(bootModule, "Failed to connect to Redis, sync runs without a cluster lock", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	c.closers = append(c.closers, rdb.Close)
	return lock.NewRedisLocker(rdb)
}
