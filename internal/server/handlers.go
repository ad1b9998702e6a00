package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/layout"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/resolver"
	"github.com/aman-zulfiqar/solana-price-relay/internal/rpc"
	"github.com/aman-zulfiqar/solana-price-relay/internal/storage"
	"github.com/aman-zulfiqar/solana-price-relay/internal/tracker"
	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

// PoolResolver reads pool and bonding-curve state on demand
type PoolResolver interface {
	Resolve(ctx context.Context, poolAddress solana.PublicKey) (*models.PoolSnapshot, error)
	QuoteBondingCurve(ctx context.Context, mint solana.PublicKey) (*resolver.BondingCurvePrice, error)
}

// TokenAccountLister lists the SPL token accounts an owner holds
type TokenAccountLister interface {
	TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*rpc.AccountInfo, error)
}

// TrackedLister exposes the relay's live entries
type TrackedLister interface {
	Tracked() []tracker.TrackedPool
}

// Handlers contains all dependencies for API endpoint handlers. Nil
// dependencies disable the routes that need them.
type Handlers struct {
	Resolver PoolResolver       // One-shot on-chain reads
	Accounts TokenAccountLister // Token holdings lookups
	Store    storage.PoolStore  // Pool metadata store (optional)
	Bus      storage.EventBus   // Command and price bus
	Tracker  TrackedLister      // Set on the relay's status server only
	DevMode  bool               // Enable detailed error responses in development
	Logger   *logrus.Logger     // Structured logger

	streams streamRefs
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail answers with the status that matches err
func (h *Handlers) fail(c echo.Context, err error) error {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger().WithError(err).WithField("path", c.Path()).Warn("request failed")
	}
	return h.err(c, code, msg, map[string]any{"err": err.Error()})
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// logger never writes h.Logger; handlers run on many goroutines.
func (h *Handlers) logger() *logrus.Logger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Pool resolves a pool address into its normalized snapshot
func (h *Handlers) Pool(c echo.Context) error {
	poolKey, err := parsePublicKey(c.Param("id"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid pool id", map[string]any{"id": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	snap, err := h.Resolver.Resolve(ctx, poolKey)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// PumpPrice quotes a bonding curve once from the mint query parameter
func (h *Handlers) PumpPrice(c echo.Context) error {
	mint, err := parsePublicKey(c.QueryParam("mint"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	quote, err := h.Resolver.QuoteBondingCurve(ctx, mint)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// PumpAccounts lists the token accounts held by the owner query parameter.
// For a bonding curve this recovers the mint it trades.
func (h *Handlers) PumpAccounts(c echo.Context) error {
	owner, err := parsePublicKey(c.QueryParam("owner"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	accounts, err := h.Accounts.TokenAccountsByOwner(ctx, owner)
	if err != nil {
		return h.fail(c, err)
	}

	items := make([]TokenAccountView, 0, len(accounts))
	for _, acct := range accounts {
		decoded, err := layout.DecodeTokenAccount(acct.Data)
		if err != nil {
			h.logger().WithError(err).WithField("account", acct.Address.String()).Warn("skipping undecodable token account")
			continue
		}
		items = append(items, TokenAccountView{Address: acct.Address, TokenAccount: decoded})
	}

	return c.JSON(http.StatusOK, TokenAccountsResponse{
		Owner: owner.String(),
		Count: len(items),
		Items: items,
	})
}

// Pools lists resolved pools, newest first
// Accepts limit query parameter (default: 100, range: 1-500)
func (h *Handlers) Pools(c echo.Context) error {
	limit := 100
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 500 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 500"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Store.ListPools(ctx, limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list pools", nil)
	}
	return c.JSON(http.StatusOK, PoolsResponse{Items: items})
}

// LastPoolPrice returns the most recent price the relay emitted for a pool
func (h *Handlers) LastPoolPrice(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := parsePublicKey(id); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid pool id", map[string]any{"id": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	quote, err := h.Bus.LastPrice(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// LastPumpPrice returns the most recent bonding curve price for a trade id
func (h *Handlers) LastPumpPrice(c echo.Context) error {
	tradeID := strings.TrimSpace(c.Param("tradeId"))
	if tradeID == "" {
		return h.err(c, http.StatusBadRequest, "invalid trade id", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	quote, err := h.Bus.LastBondingCurvePrice(ctx, tradeID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// Tracked lists every identifier the relay currently tracks
func (h *Handlers) Tracked(c echo.Context) error {
	items := h.Tracker.Tracked()
	return c.JSON(http.StatusOK, TrackedResponse{Count: len(items), Items: items})
}

func parsePublicKey(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("empty public key")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", solana.PublicKeyLength, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}
