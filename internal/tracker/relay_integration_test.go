package tracker_test

import (
	"context"
	"encoding/binary"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/cache"
	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/layout"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/server"
	"github.com/aman-zulfiqar/solana-price-relay/internal/stream"
	"github.com/aman-zulfiqar/solana-price-relay/internal/tracker"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	snap *models.PoolSnapshot
}

func (r *staticResolver) Resolve(context.Context, solana.PublicKey) (*models.PoolSnapshot, error) {
	return r.snap, nil
}

func (r *staticResolver) ResolveBondingCurve(context.Context, solana.PublicKey) (*models.PoolSnapshot, error) {
	return nil, assert.AnError
}

type accountFeed struct {
	mu       sync.Mutex
	handlers map[solana.PublicKey]stream.UpdateHandler
}

type feedSubscription struct {
	feed    *accountFeed
	account solana.PublicKey
}

func (s feedSubscription) Unsubscribe() {
	s.feed.mu.Lock()
	delete(s.feed.handlers, s.account)
	s.feed.mu.Unlock()
}

func (f *accountFeed) Subscribe(_ context.Context, account solana.PublicKey, handler stream.UpdateHandler) (stream.Subscription, error) {
	f.mu.Lock()
	f.handlers[account] = handler
	f.mu.Unlock()
	return feedSubscription{feed: f, account: account}, nil
}

func (f *accountFeed) watching() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *accountFeed) push(account, mint solana.PublicKey, amount uint64) {
	buf := make([]byte, layout.TokenAccountSize)
	copy(buf, mint[:])
	binary.LittleEndian.PutUint64(buf[64:], amount)

	f.mu.Lock()
	h := f.handlers[account]
	f.mu.Unlock()
	if h != nil {
		h(stream.AccountUpdate{Address: account, Lamports: 2_039_280, Data: buf})
	}
}

// TestRelay_EndToEnd drives a price from an account update through the
// registry, Redis and the API's websocket stream.
func TestRelay_EndToEnd(t *testing.T) {
	rclient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2, // Use different DB for integration tests
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := rclient.Ping(pingCtx).Err(); err != nil {
		t.Skipf("Redis not available for integration tests: %v", err)
	}
	require.NoError(t, rclient.FlushDB(ctx).Err())
	defer func() {
		_ = rclient.FlushDB(context.Background()).Err()
		_ = rclient.Close()
	}()

	logger, _ := test.NewNullLogger()
	bus, err := cache.NewPubSubManager(cache.PubSubConfig{Client: rclient, Logger: logger})
	require.NoError(t, err)

	pool := solana.NewWallet().PublicKey()
	snap := &models.PoolSnapshot{
		PoolID:        pool,
		Variant:       models.ClassicAmm,
		BaseMint:      solana.NewWallet().PublicKey(),
		BaseVault:     solana.NewWallet().PublicKey(),
		BaseDecimals:  6,
		QuoteMint:     constants.NativeSOLMint,
		QuoteVault:    solana.NewWallet().PublicKey(),
		QuoteDecimals: 9,
	}
	feed := &accountFeed{handlers: make(map[solana.PublicKey]stream.UpdateHandler)}

	registry := tracker.New(tracker.Config{
		Resolver:   &staticResolver{snap: snap},
		Subscriber: feed,
		Publisher:  bus,
		Logger:     logger,
	})
	defer registry.Close()

	consumer := cache.NewCommandConsumer(cache.CommandConsumerConfig{Bus: bus, Target: registry, Logger: logger})
	go func() { _ = consumer.Run(ctx) }()
	require.Eventually(t, func() bool {
		n, err := rclient.PubSubNumSub(ctx, constants.ChannelPoolSubscribe).Result()
		return err == nil && n[constants.ChannelPoolSubscribe] > 0
	}, 3*time.Second, 10*time.Millisecond)

	e := echo.New()
	server.RegisterRoutes(e, &server.Handlers{Bus: bus, Logger: logger})
	api := httptest.NewServer(e)
	defer api.Close()

	url := "ws" + strings.TrimPrefix(api.URL, "http") + "/v1/price/pool?poolId=" + pool.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// relay resolved the pool and is watching both vaults, and the stream
	// is listening for prices
	require.Eventually(t, func() bool {
		n, err := rclient.PubSubNumSub(ctx, constants.ChannelPoolPrices).Result()
		return feed.watching() == 2 && err == nil && n[constants.ChannelPoolPrices] > 0
	}, 3*time.Second, 10*time.Millisecond)

	feed.push(snap.BaseVault, snap.BaseMint, 1_000_000_000_000) // 1,000,000 tokens
	feed.push(snap.QuoteVault, snap.QuoteMint, 50_000_000_000)  // 50 SOL

	var quote models.PriceQuote
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&quote))
	assert.Equal(t, pool.String(), quote.PoolID)
	assert.Equal(t, 0.00005, quote.Price)

	cached, err := bus.LastPrice(ctx, pool.String())
	require.NoError(t, err)
	assert.Equal(t, quote.Price, cached.Price)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return registry.Len() == 0 && feed.watching() == 0
	}, 3*time.Second, 10*time.Millisecond)
}
