package layout

import (
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/gagliardetto/solana-go"
)

// AmmV4PoolSize covers every field through lpReserve. Live accounts are
// longer; the trailing bytes are not decoded.
const AmmV4PoolSize = 32*8 + 4*16 + 2*8 + 11*32 + 8

// AmmV4Pool is the Raydium AMM v4 liquidity state account.
type AmmV4Pool struct {
	Status                 U64 `json:"status"`
	Nonce                  U64 `json:"nonce"`
	MaxOrder               U64 `json:"maxOrder"`
	Depth                  U64 `json:"depth"`
	BaseDecimal            U64 `json:"baseDecimal"`
	QuoteDecimal           U64 `json:"quoteDecimal"`
	State                  U64 `json:"state"`
	ResetFlag              U64 `json:"resetFlag"`
	MinSize                U64 `json:"minSize"`
	VolMaxCutRatio         U64 `json:"volMaxCutRatio"`
	AmountWaveRatio        U64 `json:"amountWaveRatio"`
	BaseLotSize            U64 `json:"baseLotSize"`
	QuoteLotSize           U64 `json:"quoteLotSize"`
	MinPriceMultiplier     U64 `json:"minPriceMultiplier"`
	MaxPriceMultiplier     U64 `json:"maxPriceMultiplier"`
	SystemDecimalValue     U64 `json:"systemDecimalValue"`
	MinSeparateNumerator   U64 `json:"minSeparateNumerator"`
	MinSeparateDenominator U64 `json:"minSeparateDenominator"`
	TradeFeeNumerator      U64 `json:"tradeFeeNumerator"`
	TradeFeeDenominator    U64 `json:"tradeFeeDenominator"`
	PnlNumerator           U64 `json:"pnlNumerator"`
	PnlDenominator         U64 `json:"pnlDenominator"`
	SwapFeeNumerator       U64 `json:"swapFeeNumerator"`
	SwapFeeDenominator     U64 `json:"swapFeeDenominator"`
	BaseNeedTakePnl        U64 `json:"baseNeedTakePnl"`
	QuoteNeedTakePnl       U64 `json:"quoteNeedTakePnl"`
	QuoteTotalPnl          U64 `json:"quoteTotalPnl"`
	BaseTotalPnl           U64 `json:"baseTotalPnl"`
	PoolOpenTime           U64 `json:"poolOpenTime"`
	PunishPcAmount         U64 `json:"punishPcAmount"`
	PunishCoinAmount       U64 `json:"punishCoinAmount"`
	OrderbookToInitTime    U64 `json:"orderbookToInitTime"`

	SwapBaseInAmount   U128 `json:"swapBaseInAmount"`
	SwapQuoteOutAmount U128 `json:"swapQuoteOutAmount"`
	SwapBase2QuoteFee  U64  `json:"swapBase2QuoteFee"`
	SwapQuoteInAmount  U128 `json:"swapQuoteInAmount"`
	SwapBaseOutAmount  U128 `json:"swapBaseOutAmount"`
	SwapQuote2BaseFee  U64  `json:"swapQuote2BaseFee"`

	BaseVault       solana.PublicKey `json:"baseVault"`
	QuoteVault      solana.PublicKey `json:"quoteVault"`
	BaseMint        solana.PublicKey `json:"baseMint"`
	QuoteMint       solana.PublicKey `json:"quoteMint"`
	LpMint          solana.PublicKey `json:"lpMint"`
	OpenOrders      solana.PublicKey `json:"openOrders"`
	MarketID        solana.PublicKey `json:"marketId"`
	MarketProgramID solana.PublicKey `json:"marketProgramId"`
	TargetOrders    solana.PublicKey `json:"targetOrders"`
	WithdrawQueue   solana.PublicKey `json:"withdrawQueue"`
	LpVault         solana.PublicKey `json:"lpVault"`

	LpReserve U64 `json:"lpReserve"`
}

func (*AmmV4Pool) Variant() models.PoolVariant { return models.ClassicAmm }

// DecodeAmmV4Pool decodes a Raydium AMM v4 account. There is no discriminator.
func DecodeAmmV4Pool(buf []byte) (*AmmV4Pool, error) {
	if err := checkSize("amm v4 pool", buf, AmmV4PoolSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	p := &AmmV4Pool{}

	header := []*U64{
		&p.Status, &p.Nonce, &p.MaxOrder, &p.Depth, &p.BaseDecimal, &p.QuoteDecimal,
		&p.State, &p.ResetFlag, &p.MinSize, &p.VolMaxCutRatio, &p.AmountWaveRatio,
		&p.BaseLotSize, &p.QuoteLotSize, &p.MinPriceMultiplier, &p.MaxPriceMultiplier,
		&p.SystemDecimalValue, &p.MinSeparateNumerator, &p.MinSeparateDenominator,
		&p.TradeFeeNumerator, &p.TradeFeeDenominator, &p.PnlNumerator, &p.PnlDenominator,
		&p.SwapFeeNumerator, &p.SwapFeeDenominator, &p.BaseNeedTakePnl, &p.QuoteNeedTakePnl,
		&p.QuoteTotalPnl, &p.BaseTotalPnl, &p.PoolOpenTime, &p.PunishPcAmount,
		&p.PunishCoinAmount, &p.OrderbookToInitTime,
	}
	for i, f := range header {
		*f = r.u64(ammV4HeaderFields[i])
	}

	p.SwapBaseInAmount = r.u128("swapBaseInAmount")
	p.SwapQuoteOutAmount = r.u128("swapQuoteOutAmount")
	p.SwapBase2QuoteFee = r.u64("swapBase2QuoteFee")
	p.SwapQuoteInAmount = r.u128("swapQuoteInAmount")
	p.SwapBaseOutAmount = r.u128("swapBaseOutAmount")
	p.SwapQuote2BaseFee = r.u64("swapQuote2BaseFee")

	p.BaseVault = r.pubkey("baseVault")
	p.QuoteVault = r.pubkey("quoteVault")
	p.BaseMint = r.pubkey("baseMint")
	p.QuoteMint = r.pubkey("quoteMint")
	p.LpMint = r.pubkey("lpMint")
	p.OpenOrders = r.pubkey("openOrders")
	p.MarketID = r.pubkey("marketId")
	p.MarketProgramID = r.pubkey("marketProgramId")
	p.TargetOrders = r.pubkey("targetOrders")
	p.WithdrawQueue = r.pubkey("withdrawQueue")
	p.LpVault = r.pubkey("lpVault")

	p.LpReserve = r.u64("lpReserve")

	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

var ammV4HeaderFields = [32]string{
	"status", "nonce", "maxOrder", "depth", "baseDecimal", "quoteDecimal",
	"state", "resetFlag", "minSize", "volMaxCutRatio", "amountWaveRatio",
	"baseLotSize", "quoteLotSize", "minPriceMultiplier", "maxPriceMultiplier",
	"systemDecimalValue", "minSeparateNumerator", "minSeparateDenominator",
	"tradeFeeNumerator", "tradeFeeDenominator", "pnlNumerator", "pnlDenominator",
	"swapFeeNumerator", "swapFeeDenominator", "baseNeedTakePnl", "quoteNeedTakePnl",
	"quoteTotalPnl", "baseTotalPnl", "poolOpenTime", "punishPcAmount",
	"punishCoinAmount", "orderbookToInitTime",
}
