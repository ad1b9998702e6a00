package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/stream"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrRegistryClosed    = errors.New("registry closed")
)

// Resolver produces the snapshots entries are built from
type Resolver interface {
	Resolve(ctx context.Context, poolAddress solana.PublicKey) (*models.PoolSnapshot, error)
	ResolveBondingCurve(ctx context.Context, mint solana.PublicKey) (*models.PoolSnapshot, error)
}

// Publisher fans out the events the registry produces
type Publisher interface {
	PublishPrice(ctx context.Context, quote *models.PriceQuote) error
	PublishBondingCurvePrice(ctx context.Context, quote *models.BondingCurveQuote) error
	PublishLiquidityWithdrawn(ctx context.Context, event *models.LiquidityWithdrawn) error
}

// Registry is the single owner of every tracked pool. Each entry has its own
// lock; updates for one entry are applied in delivery order while different
// entries proceed independently.
//
// Lock order is entry.mu before Registry.mu.
type Registry struct {
	resolver   Resolver
	subscriber stream.AccountSubscriber
	publisher  Publisher
	logger     *logrus.Logger
	now        func() time.Time

	// ctx scopes account subscriptions and publishes; it outlives the
	// command that created an entry.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
}

// Config holds the registry's collaborators
type Config struct {
	Resolver   Resolver
	Subscriber stream.AccountSubscriber
	Publisher  Publisher
	Logger     *logrus.Logger
}

// New creates an empty registry
func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		resolver:   cfg.Resolver,
		subscriber: cfg.Subscriber,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[string]*entry),
	}
}

// Subscribe resolves an AMM pool and starts watching it. Subscribing an
// identifier that is already tracked is a no-op.
func (r *Registry) Subscribe(ctx context.Context, poolID string) error {
	poolKey, err := solana.PublicKeyFromBase58(poolID)
	if err != nil {
		return fmt.Errorf("%w: pool %q: %v", ErrInvalidIdentifier, poolID, err)
	}

	e, ok, err := r.claim(poolID)
	if err != nil || !ok {
		return err
	}
	defer e.mu.Unlock()

	snap, err := r.resolver.Resolve(ctx, poolKey)
	if err != nil {
		r.abandon(e)
		return fmt.Errorf("subscribe pool %s: %w", poolID, err)
	}
	e.snap = snap

	var watches []watch
	if snap.Variant == models.ConcentratedLiquidity {
		watches = []watch{{snap.PoolID, RolePool}}
	} else {
		watches = []watch{{snap.BaseVault, RoleBaseVault}, {snap.QuoteVault, RoleQuoteVault}}
	}
	if err := r.watch(e, watches); err != nil {
		return fmt.Errorf("subscribe pool %s: %w", poolID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"pool":    poolID,
		"variant": snap.Variant.String(),
	}).Info("tracking pool")
	return nil
}

// SubscribeBondingCurve starts watching the bonding curve of mint. The
// entry is keyed by tradeID, not by the mint.
func (r *Registry) SubscribeBondingCurve(ctx context.Context, mint, tradeID string) error {
	if tradeID == "" {
		return fmt.Errorf("%w: empty trade id", ErrInvalidIdentifier)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return fmt.Errorf("%w: mint %q: %v", ErrInvalidIdentifier, mint, err)
	}

	e, ok, err := r.claim(tradeID)
	if err != nil || !ok {
		return err
	}
	defer e.mu.Unlock()
	e.tradeID = tradeID

	snap, err := r.resolver.ResolveBondingCurve(ctx, mintKey)
	if err != nil {
		r.abandon(e)
		return fmt.Errorf("subscribe bonding curve %s: %w", mint, err)
	}
	e.snap = snap

	// Curve first so the SOL side, and with it the liquidity floor, is
	// known as early as possible.
	watches := []watch{{snap.QuoteVault, RoleCurve}, {snap.BaseVault, RoleBaseVault}}
	if err := r.watch(e, watches); err != nil {
		return fmt.Errorf("subscribe bonding curve %s: %w", mint, err)
	}

	r.logger.WithFields(logrus.Fields{
		"trade_id":      tradeID,
		"mint":          mint,
		"bonding_curve": snap.PoolID.String(),
	}).Info("tracking bonding curve")
	return nil
}

// Unsubscribe stops tracking id and releases all of its subscriptions.
// Unknown or already stopped identifiers only log a warning.
func (r *Registry) Unsubscribe(_ context.Context, id string) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		r.logger.WithField("id", id).Warn("unsubscribe for untracked identifier")
		return
	}

	// Waits for an in-flight registration or update on this entry.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		r.logger.WithField("id", id).Warn("unsubscribe for untracked identifier")
		return
	}
	r.stop(e, "unsubscribed")
}

// HandleAccountUpdate applies a change notification for one of id's
// watched accounts.
func (r *Registry) HandleAccountUpdate(id string, role Role, update stream.AccountUpdate) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"id":   id,
			"role": role.String(),
		}).Debug("update for untracked identifier")
		return
	}
	r.apply(e, role, update)
}

// Tracked returns a point-in-time view of every live entry.
func (r *Registry) Tracked() []TrackedPool {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]TrackedPool, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.stopped && e.snap != nil {
			out = append(out, e.view())
		}
		e.mu.Unlock()
	}
	return out
}

// Len reports the number of identifiers currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops every entry. Subscribes arriving afterwards fail with
// ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.stopped {
			r.stop(e, "registry closed")
		}
		e.mu.Unlock()
	}
	r.cancel()
}

type watch struct {
	account solana.PublicKey
	role    Role
}

// claim registers a fresh, locked entry for id. It returns false when id
// is already tracked.
func (r *Registry) claim(id string) (*entry, bool, error) {
	e := &entry{id: id}
	e.mu.Lock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		e.mu.Unlock()
		return nil, false, fmt.Errorf("subscribe %s: %w", id, ErrRegistryClosed)
	}
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		e.mu.Unlock()
		r.logger.WithField("id", id).Warn("duplicate subscribe ignored")
		return nil, false, nil
	}
	r.entries[id] = e
	r.mu.Unlock()
	return e, true, nil
}

// watch opens the subscriptions for e. On failure everything opened so far
// is released and the entry is dropped. Caller holds e.mu.
func (r *Registry) watch(e *entry, watches []watch) error {
	for _, w := range watches {
		role := w.role
		sub, err := r.subscriber.Subscribe(r.ctx, w.account, func(u stream.AccountUpdate) {
			r.apply(e, role, u)
		})
		if err != nil {
			r.stop(e, "subscription failed")
			return fmt.Errorf("watch %s %s: %w", role, w.account, err)
		}
		e.subs = append(e.subs, sub)
	}
	return nil
}

// abandon drops an entry whose registration failed. Caller holds e.mu.
func (r *Registry) abandon(e *entry) {
	e.stopped = true
	r.remove(e)
}

// stop releases every subscription of e and removes it. Caller holds e.mu.
func (r *Registry) stop(e *entry, reason string) {
	e.stopped = true
	for _, sub := range e.subs {
		sub.Unsubscribe()
	}
	e.subs = nil
	r.remove(e)

	r.logger.WithFields(logrus.Fields{
		"id":     e.id,
		"reason": reason,
	}).Info("stopped tracking")
}

func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	if r.entries[e.id] == e {
		delete(r.entries, e.id)
	}
	r.mu.Unlock()
}
