package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/cache"
	"github.com/aman-zulfiqar/solana-price-relay/internal/config"
	"github.com/aman-zulfiqar/solana-price-relay/internal/resolver"
	"github.com/aman-zulfiqar/solana-price-relay/internal/rpc"
	"github.com/aman-zulfiqar/solana-price-relay/internal/server"
	"github.com/aman-zulfiqar/solana-price-relay/internal/stream"
	"github.com/aman-zulfiqar/solana-price-relay/internal/tracker"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// subscriber is what the registry needs from a stream provider plus a way
// to release it on shutdown
type subscriber interface {
	stream.AccountSubscriber
	Close()
}

// main runs the tracking registry: it consumes subscribe/unsubscribe
// commands from Redis and publishes prices for everything it tracks
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.Level())
	commitment, _ := cfg.Commitment()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer rclient.Close()

	bus, err := cache.NewPubSubManager(cache.PubSubConfig{
		Client:   rclient,
		PriceTTL: cfg.PriceTTL,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create pub/sub manager")
	}

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Commitment:   commitment,
		Logger:       logger,
	})

	resolverCfg := resolver.Config{Fetcher: rpcClient, Logger: logger}
	if cfg.ClickHouseEnabled {
		store, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("pool metadata store unavailable, continuing without it")
		} else {
			defer store.Close()
			resolverCfg.Store = store
		}
	}
	res := resolver.New(resolverCfg)

	sub, err := newSubscriber(ctx, cfg, rpcClient, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start account stream")
	}

	registry := tracker.New(tracker.Config{
		Resolver:   res,
		Subscriber: sub,
		Publisher:  bus,
		Logger:     logger,
	})

	consumer := cache.NewCommandConsumer(cache.CommandConsumerConfig{
		Bus:            bus,
		Target:         registry,
		CommandTimeout: cfg.CommandTimeout,
		Logger:         logger,
	})

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: &server.Handlers{Tracker: registry, DevMode: cfg.DevMode, Logger: logger},
		Config:   server.ServerConfig{Addr: cfg.RelayAddr, DevMode: cfg.DevMode},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create status server")
	}
	go func() {
		logger.WithField("addr", cfg.RelayAddr).Info("relay status server starting")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("relay status server failed")
		}
	}()

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Run(ctx)
	}()

	logger.WithFields(logrus.Fields{
		"stream":     cfg.StreamProvider,
		"commitment": commitment,
	}).Info("relay running")

	select {
	case <-sigCh:
		logger.Info("shutting down")
	case err := <-consumerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("command consumer stopped")
		}
	}

	cancel()
	registry.Close()
	sub.Close()
	_ = srv.Shutdown(context.Background())

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer waitCancel()
	if err := srv.WaitClosed(waitCtx); err != nil {
		fmt.Println(err)
	}
}

// newSubscriber picks the account stream for STREAM_PROVIDER. A failed
// websocket dial falls back to polling.
func newSubscriber(ctx context.Context, cfg *config.Config, client *rpc.Client, logger *logrus.Logger) (subscriber, error) {
	poller := func() subscriber {
		logger.WithField("interval", cfg.PollInterval).Info("using rpc polling")
		return stream.NewRPCPoller(stream.RPCPollerConfig{
			RPCClient:    client,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
	}

	if cfg.StreamProvider == "rpc" {
		return poller(), nil
	}

	commitment, err := cfg.Commitment()
	if err != nil {
		return nil, err
	}
	ws, err := stream.NewWSSubscriber(ctx, stream.WSSubscriberConfig{
		URL:              cfg.WebsocketURL(),
		Commitment:       commitment,
		ReconnectBackoff: cfg.RetryBackoff,
		Logger:           logger,
	})
	if err != nil {
		logger.WithError(err).Warn("websocket stream unavailable, falling back to rpc polling")
		return poller(), nil
	}
	return ws, nil
}
