package resolver

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/layout"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*rpc.AccountInfo
	failWith error
	calls    []solana.PublicKey
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{accounts: make(map[solana.PublicKey]*rpc.AccountInfo)}
}

func (f *fakeFetcher) put(addr, owner solana.PublicKey, lamports uint64, data []byte) {
	f.accounts[addr] = &rpc.AccountInfo{Address: addr, Owner: owner, Lamports: lamports, Data: data}
}

func (f *fakeFetcher) FetchAccount(_ context.Context, address solana.PublicKey) (*rpc.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	if f.failWith != nil {
		return nil, f.failWith
	}
	info, ok := f.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rpc.ErrAccountNotFound, address)
	}
	return info, nil
}

type fakeStore struct {
	pools []*models.PoolSnapshot
	err   error
}

func (s *fakeStore) UpsertPool(_ context.Context, snap *models.PoolSnapshot) error {
	s.pools = append(s.pools, snap)
	return s.err
}

func key(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed + byte(i)
	}
	return k
}

func ammV4Buffer(baseDecimal, quoteDecimal uint64, baseVault, quoteVault, baseMint, quoteMint solana.PublicKey) []byte {
	buf := make([]byte, layout.AmmV4PoolSize)
	binary.LittleEndian.PutUint64(buf[32:], baseDecimal)
	binary.LittleEndian.PutUint64(buf[40:], quoteDecimal)
	copy(buf[336:], baseVault[:])
	copy(buf[368:], quoteVault[:])
	copy(buf[400:], baseMint[:])
	copy(buf[432:], quoteMint[:])
	return buf
}

func cpmmBuffer(decA, decB uint8, vaultA, vaultB, mintA, mintB solana.PublicKey) []byte {
	buf := make([]byte, layout.CpmmPoolSize)
	copy(buf[72:], vaultA[:])
	copy(buf[104:], vaultB[:])
	copy(buf[168:], mintA[:])
	copy(buf[200:], mintB[:])
	buf[331] = decA
	buf[332] = decB
	return buf
}

func clmmBuffer(decA, decB uint8, sqrtLo, sqrtHi uint64, tick int32, vaultA, vaultB, mintA, mintB solana.PublicKey) []byte {
	buf := make([]byte, layout.ClmmPoolSize)
	copy(buf[73:], mintA[:])
	copy(buf[105:], mintB[:])
	copy(buf[137:], vaultA[:])
	copy(buf[169:], vaultB[:])
	buf[233] = decA
	buf[234] = decB
	binary.LittleEndian.PutUint64(buf[253:], sqrtLo)
	binary.LittleEndian.PutUint64(buf[261:], sqrtHi)
	binary.LittleEndian.PutUint32(buf[269:], uint32(tick))
	return buf
}

func mintBuffer(decimals uint8) []byte {
	buf := make([]byte, layout.MintSize)
	buf[44] = decimals
	buf[45] = 1
	return buf
}

func tokenAccountBuffer(mint, owner solana.PublicKey, amount uint64) []byte {
	buf := make([]byte, layout.TokenAccountSize)
	copy(buf[0:], mint[:])
	copy(buf[32:], owner[:])
	binary.LittleEndian.PutUint64(buf[64:], amount)
	return buf
}

func bondingCurveBuffer(complete bool) []byte {
	buf := make([]byte, layout.BondingCurveSize)
	if complete {
		buf[48] = 1
	}
	return buf
}

func TestVariantForOwner(t *testing.T) {
	tests := []struct {
		owner solana.PublicKey
		want  models.PoolVariant
		ok    bool
	}{
		{constants.RaydiumAmmV4Program, models.ClassicAmm, true},
		{constants.RaydiumCpmmProgram, models.ConstantProduct, true},
		{constants.RaydiumClmmProgram, models.ConcentratedLiquidity, true},
		{constants.PumpProgram, models.BondingCurve, true},
		{solana.TokenProgramID, models.VariantUnknown, false},
	}
	for _, tt := range tests {
		got, ok := VariantForOwner(tt.owner)
		assert.Equal(t, tt.want, got, tt.owner.String())
		assert.Equal(t, tt.ok, ok, tt.owner.String())
	}
}

func TestResolve_ClassicAmm(t *testing.T) {
	pool := key(1)
	baseVault, quoteVault, baseMint := key(10), key(20), key(30)
	f := newFakeFetcher()
	f.put(pool, constants.RaydiumAmmV4Program, 1, ammV4Buffer(6, 9, baseVault, quoteVault, baseMint, constants.NativeSOLMint))

	store := &fakeStore{}
	r := New(Config{Fetcher: f, Store: store})
	snap, err := r.Resolve(context.Background(), pool)
	require.NoError(t, err)

	assert.Equal(t, pool, snap.PoolID)
	assert.Equal(t, models.ClassicAmm, snap.Variant)
	assert.Equal(t, constants.RaydiumAmmV4Program, snap.Owner)
	assert.Equal(t, baseVault, snap.BaseVault)
	assert.Equal(t, quoteVault, snap.QuoteVault)
	assert.Equal(t, baseMint, snap.BaseMint)
	assert.Equal(t, constants.NativeSOLMint, snap.QuoteMint)
	assert.Equal(t, uint8(6), snap.BaseDecimals)
	assert.Equal(t, uint8(9), snap.QuoteDecimals)
	assert.IsType(t, &layout.AmmV4Pool{}, snap.Record)
	assert.False(t, snap.ResolvedAt.IsZero())

	require.Len(t, store.pools, 1)
	assert.Same(t, snap, store.pools[0])
}

func TestResolve_ConstantProductMapsAToBase(t *testing.T) {
	pool := key(2)
	vaultA, vaultB, mintA := key(40), key(50), key(60)
	f := newFakeFetcher()
	f.put(pool, constants.RaydiumCpmmProgram, 1, cpmmBuffer(6, 6, vaultA, vaultB, mintA, constants.USDCMint))

	snap, err := New(Config{Fetcher: f}).Resolve(context.Background(), pool)
	require.NoError(t, err)

	assert.Equal(t, models.ConstantProduct, snap.Variant)
	assert.Equal(t, vaultA, snap.BaseVault)
	assert.Equal(t, mintA, snap.BaseMint)
	assert.Equal(t, vaultB, snap.QuoteVault)
	assert.Equal(t, constants.USDCMint, snap.QuoteMint)
	assert.Empty(t, snap.SqrtPriceX64)
	assert.Nil(t, snap.TickCurrent)
}

func TestResolve_ConcentratedLiquidity(t *testing.T) {
	pool := key(3)
	vaultA, vaultB, mintA := key(70), key(80), key(90)
	f := newFakeFetcher()
	f.put(pool, constants.RaydiumClmmProgram, 1, clmmBuffer(9, 6, 0, 1, -42, vaultA, vaultB, mintA, constants.USDCMint))

	snap, err := New(Config{Fetcher: f}).Resolve(context.Background(), pool)
	require.NoError(t, err)

	assert.Equal(t, models.ConcentratedLiquidity, snap.Variant)
	assert.Equal(t, "18446744073709551616", snap.SqrtPriceX64)
	require.NotNil(t, snap.TickCurrent)
	assert.Equal(t, int32(-42), *snap.TickCurrent)
	assert.Equal(t, uint8(9), snap.BaseDecimals)
	assert.Equal(t, uint8(6), snap.QuoteDecimals)
	assert.Equal(t, vaultA, snap.BaseVault)
	assert.Equal(t, vaultB, snap.QuoteVault)
}

func TestResolve_UnsupportedOwner(t *testing.T) {
	pool := key(4)
	f := newFakeFetcher()
	f.put(pool, solana.TokenProgramID, 1, make([]byte, 1000))

	store := &fakeStore{}
	snap, err := New(Config{Fetcher: f, Store: store}).Resolve(context.Background(), pool)
	assert.ErrorIs(t, err, ErrUnsupportedPoolOwner)
	assert.Nil(t, snap)
	assert.Empty(t, store.pools)
}

func TestResolve_BondingCurveOwnerIsNotAPool(t *testing.T) {
	pool := key(5)
	f := newFakeFetcher()
	f.put(pool, constants.PumpProgram, 1, bondingCurveBuffer(false))

	_, err := New(Config{Fetcher: f}).Resolve(context.Background(), pool)
	assert.ErrorIs(t, err, ErrUnsupportedPoolOwner)
}

func TestResolve_FetchFailures(t *testing.T) {
	t.Run("missing account", func(t *testing.T) {
		_, err := New(Config{Fetcher: newFakeFetcher()}).Resolve(context.Background(), key(6))
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.ErrorIs(t, err, rpc.ErrAccountNotFound)
	})

	t.Run("transport error", func(t *testing.T) {
		f := newFakeFetcher()
		f.failWith = errors.New("connection refused")
		_, err := New(Config{Fetcher: f}).Resolve(context.Background(), key(6))
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestResolve_TruncatedRecord(t *testing.T) {
	pool := key(7)
	f := newFakeFetcher()
	f.put(pool, constants.RaydiumCpmmProgram, 1, make([]byte, layout.CpmmPoolSize-1))

	_, err := New(Config{Fetcher: f}).Resolve(context.Background(), pool)
	assert.ErrorIs(t, err, layout.ErrTruncatedBuffer)
}

func TestResolve_InvalidDecimals(t *testing.T) {
	tests := []struct {
		name  string
		owner solana.PublicKey
		data  []byte
	}{
		{"classic amm", constants.RaydiumAmmV4Program, ammV4Buffer(19, 9, key(1), key(2), key(3), key(4))},
		{"constant product", constants.RaydiumCpmmProgram, cpmmBuffer(6, 200, key(1), key(2), key(3), key(4))},
		{"concentrated liquidity", constants.RaydiumClmmProgram, clmmBuffer(255, 6, 0, 1, 0, key(1), key(2), key(3), key(4))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.put(key(8), tt.owner, 1, tt.data)
			_, err := New(Config{Fetcher: f}).Resolve(context.Background(), key(8))
			assert.ErrorIs(t, err, ErrInvalidDecimals)
		})
	}
}

func TestResolve_StoreFailureDoesNotFailResolution(t *testing.T) {
	pool := key(9)
	f := newFakeFetcher()
	f.put(pool, constants.RaydiumCpmmProgram, 1, cpmmBuffer(6, 9, key(1), key(2), key(3), constants.NativeSOLMint))

	store := &fakeStore{err: errors.New("clickhouse down")}
	snap, err := New(Config{Fetcher: f, Store: store}).Resolve(context.Background(), pool)
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Len(t, store.pools, 1)
}

func TestBondingCurveAddresses_Deterministic(t *testing.T) {
	mint := key(100)
	curve, ata, err := BondingCurveAddresses(mint)
	require.NoError(t, err)

	again, ataAgain, err := BondingCurveAddresses(mint)
	require.NoError(t, err)
	assert.Equal(t, curve, again)
	assert.Equal(t, ata, ataAgain)
	assert.NotEqual(t, curve, ata)

	wantATA, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	require.NoError(t, err)
	assert.Equal(t, wantATA, ata)
}

func TestResolveBondingCurve(t *testing.T) {
	mint := key(110)
	curve, ata, err := BondingCurveAddresses(mint)
	require.NoError(t, err)

	f := newFakeFetcher()
	f.put(curve, constants.PumpProgram, 42_000_000_000, bondingCurveBuffer(false))
	f.put(mint, solana.TokenProgramID, 1, mintBuffer(9))

	snap, err := New(Config{Fetcher: f}).ResolveBondingCurve(context.Background(), mint)
	require.NoError(t, err)

	assert.Equal(t, models.BondingCurve, snap.Variant)
	assert.Equal(t, curve, snap.PoolID)
	assert.Equal(t, curve, snap.QuoteVault)
	assert.Equal(t, ata, snap.BaseVault)
	assert.Equal(t, mint, snap.BaseMint)
	assert.Equal(t, constants.NativeSOLMint, snap.QuoteMint)
	assert.Equal(t, uint8(9), snap.BaseDecimals)
	assert.Equal(t, uint8(constants.NativeDecimals), snap.QuoteDecimals)
}

func TestResolveBondingCurve_DefaultsDecimalsWhenMintUnreadable(t *testing.T) {
	mint := key(120)
	curve, _, err := BondingCurveAddresses(mint)
	require.NoError(t, err)

	f := newFakeFetcher()
	f.put(curve, constants.PumpProgram, 1, bondingCurveBuffer(false))

	snap, err := New(Config{Fetcher: f}).ResolveBondingCurve(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(constants.DefaultTokenDecimals), snap.BaseDecimals)
}

func TestResolveBondingCurve_WrongOwner(t *testing.T) {
	mint := key(130)
	curve, _, err := BondingCurveAddresses(mint)
	require.NoError(t, err)

	f := newFakeFetcher()
	f.put(curve, solana.SystemProgramID, 1, nil)

	_, err = New(Config{Fetcher: f}).ResolveBondingCurve(context.Background(), mint)
	assert.ErrorIs(t, err, ErrUnsupportedPoolOwner)
}

func TestQuoteBondingCurve(t *testing.T) {
	mint := key(140)
	curve, ata, err := BondingCurveAddresses(mint)
	require.NoError(t, err)

	f := newFakeFetcher()
	f.put(curve, constants.PumpProgram, 50_000_000_000, bondingCurveBuffer(true))
	f.put(mint, solana.TokenProgramID, 1, mintBuffer(6))
	f.put(ata, solana.TokenProgramID, 1, tokenAccountBuffer(mint, curve, 1_000_000_000_000))

	quote, err := New(Config{Fetcher: f}).QuoteBondingCurve(context.Background(), mint)
	require.NoError(t, err)

	assert.Equal(t, mint.String(), quote.Mint)
	assert.Equal(t, curve.String(), quote.BondingCurve)
	assert.Equal(t, 50.0, quote.SolVaultBalance)
	assert.Equal(t, 1_000_000.0, quote.TokenVaultBalance)
	assert.Equal(t, 0.00005, quote.TokenPrice)
	assert.True(t, quote.Complete)
}

func TestQuoteBondingCurve_EmptyTokenVault(t *testing.T) {
	mint := key(150)
	curve, ata, err := BondingCurveAddresses(mint)
	require.NoError(t, err)

	f := newFakeFetcher()
	f.put(curve, constants.PumpProgram, 5_000_000_000, bondingCurveBuffer(false))
	f.put(ata, solana.TokenProgramID, 1, tokenAccountBuffer(mint, curve, 0))

	quote, err := New(Config{Fetcher: f}).QuoteBondingCurve(context.Background(), mint)
	require.NoError(t, err)
	assert.Zero(t, quote.TokenPrice)
	assert.Equal(t, 5.0, quote.SolVaultBalance)
}
