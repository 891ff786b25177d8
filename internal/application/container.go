// Package application wires the dependency graph: configuration, local
// store, remote client, identity, and the sync and chat services built on
// top of them.
package application

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/monetalabs/moneta/internal/adapters/assistant/gemini"
	"github.com/monetalabs/moneta/internal/adapters/assistant/openrouter"
	"github.com/monetalabs/moneta/internal/adapters/identity"
	"github.com/monetalabs/moneta/internal/adapters/network"
	"github.com/monetalabs/moneta/internal/adapters/remote/firebridge"
	"github.com/monetalabs/moneta/internal/adapters/storage/sqlite"
	"github.com/monetalabs/moneta/internal/application/chat"
	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/application/scheduler"
	appsync "github.com/monetalabs/moneta/internal/application/sync"
	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/infrastructure/config"
	"github.com/monetalabs/moneta/internal/infrastructure/crypto"
	"github.com/monetalabs/moneta/internal/infrastructure/logging"
	"github.com/monetalabs/moneta/internal/infrastructure/tracing"
)

// Container holds all application dependencies and manages their lifecycle
// and initialization order.
type Container struct {
	config  *config.Config
	verbose bool // Force info-level logging regardless of config

	dbConn *sqlite.Connection
	db     *sql.DB

	categoryRepo    *sqlite.CategoryRepository
	transactionRepo *sqlite.TransactionRepository
	budgetRepo      *sqlite.BudgetRepository
	chatRepo        ports.ChatLogPort

	identity *identity.Manager
	network  *network.Monitor
	remote   ports.RemoteStorePort

	orchestrator *appsync.Orchestrator
	scheduler    *scheduler.Scheduler
	chatService  *chat.Service

	logger *logging.Logger
	tracer *tracing.Tracer
}

// NewContainer creates a container with every service initialized from the
// given configuration.
func NewContainer(cfg *config.Config, verbose bool) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	c := &Container{
		config:  cfg,
		verbose: verbose,
	}

	if err := c.initObservability(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if err := c.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	c.initRepositories()

	if err := c.initAdapters(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize adapters: %w", err)
	}

	if err := c.initServices(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return c, nil
}

// initObservability builds the logger and tracer before anything that logs.
func (c *Container) initObservability() error {
	logLevel := logging.Level(c.config.Logging.Level)
	if c.verbose {
		logLevel = logging.LevelDebug
	}
	logFormat := logging.FormatText
	if c.config.Logging.Format == "json" {
		logFormat = logging.FormatJSON
	}
	c.logger = logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
	})

	if c.config.Tracing.Enabled {
		tracer, err := tracing.New(context.Background(), tracing.Config{
			Enabled:      true,
			ExporterType: tracing.ExporterType(c.config.Tracing.ExporterType),
			OTLPEndpoint: c.config.Tracing.OTLPEndpoint,
			ServiceName:  c.config.Tracing.ServiceName,
			SampleRate:   c.config.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to create tracer: %w", err)
		}
		c.tracer = tracer
	} else {
		c.tracer = tracing.Default()
	}

	return nil
}

// initDatabase opens the SQLite ledger and runs migrations.
func (c *Container) initDatabase() error {
	conn, err := sqlite.NewConnection(c.config.Database.Path, c.config.Database.BusyTimeout)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := conn.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db, err := conn.DB()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	c.dbConn = conn
	c.db = db
	return nil
}

// initRepositories builds the storage repositories over the open handle.
func (c *Container) initRepositories() {
	c.categoryRepo = sqlite.NewCategoryRepository(c.db)
	c.transactionRepo = sqlite.NewTransactionRepository(c.db)
	c.budgetRepo = sqlite.NewBudgetRepository(c.db)
	c.chatRepo = sqlite.NewChatRepository(c.db)
}

// initAdapters builds the identity manager, connectivity monitor, and the
// remote store client.
func (c *Container) initAdapters() error {
	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return err
	}
	c.identity = identity.NewManager(configDir)
	if err := c.identity.Load(); err != nil {
		return fmt.Errorf("failed to load identity profile: %w", err)
	}

	c.network = network.NewMonitor(c.config.Remote.BaseURL)

	c.remote = firebridge.NewStore(firebridge.Config{
		BaseURL:        c.config.Remote.BaseURL,
		APIKey:         c.identity.APIKey(),
		Timeout:        c.config.Remote.Timeout,
		MaxRetries:     c.config.Remote.MaxRetries,
		RetryBaseDelay: c.config.Remote.RetryBaseDelay,
		Logger:         c.logger,
		Tracer:         c.tracer,
	})
	return nil
}

// initServices builds the orchestrator, scheduler and chat service.
func (c *Container) initServices() error {
	orch, err := appsync.NewOrchestrator(
		c.categoryRepo, c.transactionRepo, c.budgetRepo,
		c.remote, c.network, c.identity,
		c.logger, c.tracer,
		appsync.WithMarkQueueSize(c.config.Sync.MarkQueueSize),
	)
	if err != nil {
		return fmt.Errorf("failed to create sync orchestrator: %w", err)
	}
	c.orchestrator = orch

	// Every repository write fires a detached mark through the orchestrator's
	// queue; bind the repositories to the fresh orchestrator on each rebuild.
	c.categoryRepo.SetMarker(orch)
	c.transactionRepo.SetMarker(orch)
	c.budgetRepo.SetMarker(orch)

	c.scheduler = scheduler.NewScheduler(orch, c.network, scheduler.Config{
		Period:         c.config.Sync.Period,
		Flex:           c.config.Sync.Flex,
		InitialBackoff: c.config.Sync.InitialBackoff,
		MaxBackoff:     c.config.Sync.MaxBackoff,
	}, c.logger)

	primary := buildChatProvider(c.config.Chat.Primary)
	fallback := buildChatProvider(c.config.Chat.Fallback)
	if primary == nil {
		// Chat is optional; skip the service when no provider is enabled.
		if fallback == nil {
			return nil
		}
		primary, fallback = fallback, nil
	}

	chatService, err := chat.NewService(primary, fallback, c.chatRepo, c.identity, chat.Config{
		TripThreshold:    c.config.Chat.TripThreshold,
		RecoveryInterval: c.config.Chat.RecoveryInterval,
		HistoryLimit:     c.config.Chat.HistoryLimit,
	}, c.logger, c.tracer)
	if err != nil {
		return fmt.Errorf("failed to create chat service: %w", err)
	}
	c.chatService = chatService
	return nil
}

// buildChatProvider maps a provider config entry to a client, or nil when
// the entry is disabled, unknown, or has no usable credential.
func buildChatProvider(cfg config.ChatProviderConfig) ports.ChatProviderPort {
	if !cfg.Enabled {
		return nil
	}
	apiKey := resolveChatKey(cfg)
	if apiKey == "" {
		return nil
	}
	switch cfg.Name {
	case "gemini":
		return gemini.NewClient(gemini.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  apiKey,
			Timeout: cfg.Timeout,
		})
	case "openrouter":
		return openrouter.NewClient(openrouter.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  apiKey,
			Timeout: cfg.Timeout,
		})
	}
	return nil
}

// resolveChatKey returns the plaintext credential for a provider entry,
// decrypting the stored ciphertext when no plain key is configured. A key
// encrypted on another machine cannot be recovered and yields empty.
func resolveChatKey(cfg config.ChatProviderConfig) string {
	if cfg.APIKey != "" || cfg.APIKeyEncrypted == "" {
		return cfg.APIKey
	}
	enc, err := crypto.NewEncryptor()
	if err != nil {
		return ""
	}
	key, err := enc.Decrypt(cfg.APIKeyEncrypted)
	if err != nil {
		return ""
	}
	return key
}

// SeedDefaults inserts the starter categories when the current user has
// none. Safe to call repeatedly.
func (c *Container) SeedDefaults(ctx context.Context) error {
	userID := c.CurrentUserID()

	existing, err := c.categoryRepo.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, cat := range ledger.DefaultCategories(userID) {
		if _, err := c.categoryRepo.CreateSeeded(ctx, cat); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", cat.Name, err)
		}
	}
	c.logger.InfoContext(ctx, "seeded default categories", "user_id", userID)
	return nil
}

// SignIn records the principal, re-owns local_user records to them, and
// marks the adopted records for upload.
func (c *Container) SignIn(ctx context.Context, userID, email, apiKey string) error {
	if err := c.identity.SignIn(userID, email, apiKey); err != nil {
		return err
	}

	now := ledger.NowMillis()
	if err := c.categoryRepo.AdoptUser(ctx, ledger.LocalUserID, userID, now); err != nil {
		return fmt.Errorf("failed to adopt categories: %w", err)
	}
	if err := c.transactionRepo.AdoptUser(ctx, ledger.LocalUserID, userID, now); err != nil {
		return fmt.Errorf("failed to adopt transactions: %w", err)
	}
	if err := c.budgetRepo.AdoptUser(ctx, ledger.LocalUserID, userID, now); err != nil {
		return fmt.Errorf("failed to adopt budgets: %w", err)
	}

	// The remote client authenticates with the stored credential; rebuild it
	// and the services over it so the new key takes effect without a restart.
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.orchestrator != nil {
		c.orchestrator.Close()
	}
	c.remote = firebridge.NewStore(firebridge.Config{
		BaseURL:        c.config.Remote.BaseURL,
		APIKey:         apiKey,
		Timeout:        c.config.Remote.Timeout,
		MaxRetries:     c.config.Remote.MaxRetries,
		RetryBaseDelay: c.config.Remote.RetryBaseDelay,
		Logger:         c.logger,
		Tracer:         c.tracer,
	})
	if err := c.initServices(); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "signed in", "user_id", userID)
	return nil
}

// Reconfigure swaps in a new configuration and rebuilds the connectivity
// monitor, remote client, and the services over them. The database handle is
// kept: changing the database path requires a restart.
func (c *Container) Reconfigure(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.orchestrator != nil {
		c.orchestrator.Close()
	}

	c.config = cfg
	c.network = network.NewMonitor(cfg.Remote.BaseURL)
	c.remote = firebridge.NewStore(firebridge.Config{
		BaseURL:        cfg.Remote.BaseURL,
		APIKey:         c.identity.APIKey(),
		Timeout:        cfg.Remote.Timeout,
		MaxRetries:     cfg.Remote.MaxRetries,
		RetryBaseDelay: cfg.Remote.RetryBaseDelay,
		Logger:         c.logger,
		Tracer:         c.tracer,
	})
	if err := c.initServices(); err != nil {
		return err
	}

	c.logger.Info("configuration reloaded")
	return nil
}

// SignOut forgets the principal. Local data stays untouched.
func (c *Container) SignOut(ctx context.Context) error {
	if err := c.identity.SignOut(); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "signed out")
	return nil
}

// CurrentUserID returns the signed-in principal, or the local sentinel.
func (c *Container) CurrentUserID() string {
	if userID, ok := c.identity.CurrentUserID(); ok {
		return userID
	}
	return ledger.LocalUserID
}

// Close releases all resources held by the container.
func (c *Container) Close() error {
	ctx := context.Background()

	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.orchestrator != nil {
		c.orchestrator.Close()
	}
	if c.tracer != nil {
		_ = c.tracer.Shutdown(ctx)
	}
	if c.dbConn != nil {
		return c.dbConn.Close()
	}
	return nil
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// DB returns the database handle.
func (c *Container) DB() *sql.DB {
	return c.db
}

// Categories returns the category repository.
func (c *Container) Categories() ports.CategoryStoragePort {
	return c.categoryRepo
}

// Transactions returns the transaction repository.
func (c *Container) Transactions() ports.TransactionStoragePort {
	return c.transactionRepo
}

// Budgets returns the budget repository.
func (c *Container) Budgets() ports.BudgetStoragePort {
	return c.budgetRepo
}

// ChatLog returns the chat log repository.
func (c *Container) ChatLog() ports.ChatLogPort {
	return c.chatRepo
}

// Identity returns the identity manager.
func (c *Container) Identity() *identity.Manager {
	return c.identity
}

// Network returns the connectivity monitor.
func (c *Container) Network() *network.Monitor {
	return c.network
}

// Orchestrator returns the sync orchestrator.
func (c *Container) Orchestrator() *appsync.Orchestrator {
	return c.orchestrator
}

// Scheduler returns the background sync scheduler.
func (c *Container) Scheduler() *scheduler.Scheduler {
	return c.scheduler
}

// Chat returns the chat service, or nil when no provider is enabled.
func (c *Container) Chat() *chat.Service {
	return c.chatService
}

// Logger returns the structured logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the OpenTelemetry tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}
