package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/tollgate/adapters/events"
	"github.com/layer-3/tollgate/adapters/ledger"
	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/adapters/tokenizer"
	"github.com/layer-3/tollgate/adapters/verifier"
	"github.com/layer-3/tollgate/config"
	"github.com/layer-3/tollgate/internal/ipfs"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
	transport "github.com/layer-3/tollgate/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := setupLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	cmd.Flags().String("store", "", "credential store: memory or redis (overrides STORE)")
	cmd.Flags().String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.UsesDevSecret() {
		logger.Warn("SESSION_SECRET is not set, using the development secret")
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
	}

	credStore, err := newCredentialStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}

	eventPub, closeEvents, err := newEventPublisher(cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeEvents()

	chain, closeLedger, err := newLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	tk, err := tokenizer.NewHMACTokenizer(cfg.SessionSecret)
	if err != nil {
		return err
	}
	schemes, err := verifier.ByName(cfg.SignatureSchemes)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(
		credStore,
		tk,
		service.NewSignatureVerifier(logger.Named("verifier"), schemes...),
		eventPub,
		logger.Named("auth"),
		service.WithNonceTTL(cfg.NonceTTL),
		service.WithSessionTTL(cfg.SessionTTL),
		service.WithAppTag(cfg.AppTag),
	)

	locator := service.NewAssetLocator(
		chain,
		ipfs.NewGateway(cfg.IPFSGateway),
		&http.Client{Timeout: cfg.MetadataTimeout},
		logger.Named("locator"),
	)

	// no overall timeout on the origin client, a stream lasts as long as the listener
	originTransport := http.DefaultTransport.(*http.Transport).Clone()
	originTransport.ResponseHeaderTimeout = cfg.MetadataTimeout
	streamService := service.NewStreamService(
		authService,
		service.NewOwnershipOracle(chain),
		locator,
		&http.Client{Transport: originTransport},
		eventPub,
		logger.Named("stream"),
	)

	router := transport.SetupRouter(transport.RouterConfig{
		AuthService:    authService,
		StreamService:  streamService,
		Catalog:        service.NewCatalog(chain),
		Metrics:        transport.NewMetrics(),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("ledger", cfg.LedgerBackend),
			zap.String("contract", cfg.ContractAddress),
			zap.String("store", cfg.Store),
			zap.String("events", cfg.Events),
			zap.Strings("schemes", cfg.SignatureSchemes))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newCredentialStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (ports.CredentialStore, error) {
	switch cfg.Store {
	case config.StoreRedis:
		return store.NewRedisStore(redisClient), nil
	case config.StoreMemory:
		st := store.NewMemoryStore()
		go store.RunSweeper(ctx, st, cfg.SweepInterval, logger.Named("sweeper"))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func newEventPublisher(cfg *config.Config, redisClient *redis.Client) (ports.EventPublisher, func(), error) {
	wmLogger := watermill.NewStdLogger(false, false)

	switch cfg.Events {
	case config.EventsNone:
		return events.NopPublisher{}, func() {}, nil
	case config.EventsMemory:
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		return events.NewWatermillPublisher(pubSub), func() { _ = pubSub.Close() }, nil
	case config.EventsRedis:
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		return events.NewWatermillPublisher(publisher), func() { _ = publisher.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown events backend %q", cfg.Events)
	}
}

func newLedger(ctx context.Context, cfg *config.Config) (ports.Ledger, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerJSONRPC:
		l, err := ledger.DialJSONRPCLedger(ctx, cfg.JSONRPCURL, cfg.ContractAddress, cfg.LedgerTimeout)
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	case config.LedgerTronGrid:
		var opts []ledger.TronGridOption
		if cfg.TronGridAPIKey != "" {
			opts = append(opts, ledger.WithAPIKey(cfg.TronGridAPIKey))
		}
		l, err := ledger.NewTronGridLedger(cfg.TronGridURL, cfg.ContractAddress, cfg.LedgerTimeout, opts...)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
