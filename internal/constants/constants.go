package constants

import "github.com/gagliardetto/solana-go"

// Redis Pub/Sub channels consumed by the relay
const (
	ChannelPoolSubscribe           = "RaydiumPoolSubscriptions"
	ChannelPoolUnsubscribe         = "RydiumPoolUnsubscribe"
	ChannelBondingCurveSubscribe   = "pumpSubscriptions"
	ChannelBondingCurveUnsubscribe = "pumpUnsubscriptions"
)

// Redis Pub/Sub channels produced by the relay
const (
	ChannelPoolPrices         = "RaydiumPriceUpdates"
	ChannelBondingCurvePrices = "PumpPriceUpdates"
	ChannelLiquidityWithdrawn = "liquidityWithdrawn"
)

// Pool program addresses
var (
	RaydiumAmmV4Program = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	RaydiumCpmmProgram  = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	RaydiumClmmProgram  = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
	PumpProgram         = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
)

// Reference asset mints used for price orientation
var (
	NativeSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	USDCMint      = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	USDTMint      = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

// Token mint addresses to symbols
var TokenSymbols = map[string]string{
	NativeSOLMint.String(): "SOL",
	USDCMint.String():      "USDC",
	USDTMint.String():      "USDT",
}

// Bonding curve parameters
const (
	BondingCurveSeed     = "bonding-curve"
	NativeDecimals       = 9
	DefaultTokenDecimals = 6
	// Below this many SOL on the curve the market is treated as drained or migrated.
	LiquidityFloorSOL    = 1
)

// MaxMintDecimals bounds the decimal count accepted from decoded pool records.
const MaxMintDecimals = 18

// PriceDecimals is the rounding applied to every emitted price.
const PriceDecimals = 9
