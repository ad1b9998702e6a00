package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	mu    sync.Mutex
	infos []*rpc.AccountInfo // nil entries mean not found
	calls int
}

func (f *scriptedFetcher) FetchAccount(_ context.Context, address solana.PublicKey) (*rpc.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.infos) {
		i = len(f.infos) - 1
	}
	f.calls++
	if f.infos[i] == nil {
		return nil, fmt.Errorf("%w: %s", rpc.ErrAccountNotFound, address)
	}
	return f.infos[i], nil
}

type collector struct {
	mu      sync.Mutex
	updates []AccountUpdate
}

func (c *collector) handle(u AccountUpdate) {
	c.mu.Lock()
	c.updates = append(c.updates, u)
	c.mu.Unlock()
}

func (c *collector) snapshot() []AccountUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AccountUpdate(nil), c.updates...)
}

func TestRPCPoller_DeliversOnlyChanges(t *testing.T) {
	account := solana.MustPublicKeyFromBase58("58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2")
	f := &scriptedFetcher{infos: []*rpc.AccountInfo{
		{Lamports: 10, Data: []byte{1}, Slot: 1},
		{Lamports: 10, Data: []byte{1}, Slot: 2},
		{Lamports: 10, Data: []byte{2}, Slot: 3},
		nil,
	}}

	p := NewRPCPoller(RPCPollerConfig{RPCClient: f, PollInterval: 5 * time.Millisecond})
	c := &collector{}
	sub, err := p.Subscribe(context.Background(), account, c.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return len(c.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)

	got := c.snapshot()
	assert.Equal(t, []byte{1}, got[0].Data)
	assert.Equal(t, uint64(1), got[0].Slot)
	assert.Equal(t, account, got[0].Address)
	assert.Equal(t, []byte{2}, got[1].Data)
	assert.True(t, got[2].Closed)
}

func TestRPCPoller_UnsubscribeStopsPolling(t *testing.T) {
	f := &scriptedFetcher{infos: []*rpc.AccountInfo{{Lamports: 1}}}
	p := NewRPCPoller(RPCPollerConfig{RPCClient: f, PollInterval: 5 * time.Millisecond})

	sub, err := p.Subscribe(context.Background(), solana.PublicKey{}, func(AccountUpdate) {})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls > 0
	}, time.Second, time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	time.Sleep(20 * time.Millisecond)

	f.mu.Lock()
	stopped := f.calls
	f.mu.Unlock()
	time.Sleep(30 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, stopped, f.calls)
}

func TestIsClosed(t *testing.T) {
	assert.True(t, isClosed(0, nil))
	assert.False(t, isClosed(0, []byte{0}))
	assert.False(t, isClosed(1, nil))
}

func TestRPCPoller_CloseStopsEverySubscription(t *testing.T) {
	f := &scriptedFetcher{infos: []*rpc.AccountInfo{{Lamports: 1}}}
	p := NewRPCPoller(RPCPollerConfig{RPCClient: f, PollInterval: 5 * time.Millisecond})

	_, err := p.Subscribe(context.Background(), solana.NewWallet().PublicKey(), func(AccountUpdate) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls > 1
	}, time.Second, 5*time.Millisecond)

	p.Close()
	time.Sleep(20 * time.Millisecond)
	f.mu.Lock()
	calls := f.calls
	f.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, calls, f.calls)

	_, err = p.Subscribe(context.Background(), solana.NewWallet().PublicKey(), func(AccountUpdate) {})
	assert.ErrorIs(t, err, ErrSubscriberClosed)
}
