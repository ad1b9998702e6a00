// cmd/subscriber prints every event the relay publishes. Useful for
// watching a relay without opening a price stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/solana-price-relay/internal/cache"
	"github.com/aman-zulfiqar/solana-price-relay/internal/config"
	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down subscriber")
		cancel()
	}()

	rclient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rclient.Close()

	bus, err := cache.NewPubSubManager(cache.PubSubConfig{Client: rclient, Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("failed to create pub/sub manager")
	}

	logger.Info("subscriber running, press Ctrl+C to stop")

	err = bus.Subscribe(ctx, func(channel string, payload []byte) {
		printEvent(logger, channel, payload)
	}, constants.ChannelPoolPrices, constants.ChannelBondingCurvePrices, constants.ChannelLiquidityWithdrawn)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("subscription failed")
	}
}

func printEvent(logger *logrus.Logger, channel string, payload []byte) {
	switch channel {
	case constants.ChannelPoolPrices:
		var q models.PriceQuote
		if err := json.Unmarshal(payload, &q); err != nil {
			logger.WithError(err).Warn("bad price payload")
			return
		}
		logger.WithFields(logrus.Fields{
			"pool":  q.PoolID,
			"base":  symbol(q.BaseMint),
			"quote": symbol(q.QuoteMint),
		}).Infof("price %.9f", q.Price)

	case constants.ChannelBondingCurvePrices:
		var q models.BondingCurveQuote
		if err := json.Unmarshal(payload, &q); err != nil {
			logger.WithError(err).Warn("bad bonding curve payload")
			return
		}
		logger.WithFields(logrus.Fields{
			"trade_id": q.TradeID,
			"mint":     q.Mint,
			"sol":      q.SolBalance,
		}).Infof("bonding curve price %.9f", q.Price)

	case constants.ChannelLiquidityWithdrawn:
		var ev models.LiquidityWithdrawn
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.WithError(err).Warn("bad withdrawal payload")
			return
		}
		logger.WithFields(logrus.Fields{
			"trade_id": ev.TradeID,
			"mint":     ev.Mint,
		}).Warn(ev.Message)
	}
}

func symbol(mint string) string {
	if s, ok := constants.TokenSymbols[mint]; ok {
		return s
	}
	return mint
}
