package layout

import (
	"fmt"

	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/gagliardetto/solana-go"
)

const (
	ClmmRewardCount     = 3
	ClmmTickBitmapWords = 16
	clmmTailPadding     = 15*4 - 3

	RewardInfoSize = 2*32 + 2*16 + 4*8

	ClmmPoolSize = discriminatorSize + 1 + 7*32 + 1 + 1 + 2 + 16 + 16 + 4 + 4 +
		2*16 + 2*8 + 4*16 + 1 + 7 +
		ClmmRewardCount*RewardInfoSize +
		ClmmTickBitmapWords*8 + 7*8 + clmmTailPadding*8

	ClmmConfigSize = discriminatorSize + 1 + 2 + 32 + 4 + 4 + 2 + 8*8
)

// RewardInfo is one of the three farming reward slots of a CLMM pool.
type RewardInfo struct {
	RewardVault           solana.PublicKey `json:"rewardVault"`
	RewardMint            solana.PublicKey `json:"rewardMint"`
	EmissionsPerSecondX64 U128             `json:"emissionsPerSecondX64"`
	GrowthGlobalX64       U128             `json:"growthGlobalX64"`
	Accumulator           U64              `json:"accumulator"`
	LastUpdatedTimestamp  U64              `json:"lastUpdatedTimestamp"`
	StartTimestamp        U64              `json:"startTimestamp"`
	EndTimestamp          U64              `json:"endTimestamp"`
}

// ClmmPool is the Raydium concentrated-liquidity pool state account.
type ClmmPool struct {
	Bump          uint8            `json:"bump"`
	AmmConfig     solana.PublicKey `json:"ammConfig"`
	Creator       solana.PublicKey `json:"creator"`
	MintA         solana.PublicKey `json:"mintA"`
	MintB         solana.PublicKey `json:"mintB"`
	VaultA        solana.PublicKey `json:"vaultA"`
	VaultB        solana.PublicKey `json:"vaultB"`
	ObservationID solana.PublicKey `json:"observationId"`

	MintDecimalsA uint8  `json:"mintDecimalsA"`
	MintDecimalsB uint8  `json:"mintDecimalsB"`
	TickSpacing   uint16 `json:"tickSpacing"`
	Liquidity     U128   `json:"liquidity"`
	SqrtPriceX64  U128   `json:"sqrtPriceX64"`
	TickCurrent   int32  `json:"tickCurrent"`
	FeeProtocol   uint32 `json:"feeProtocol"`

	FeeGrowthGlobalX64A U128 `json:"feeGrowthGlobalX64A"`
	FeeGrowthGlobalX64B U128 `json:"feeGrowthGlobalX64B"`
	ProtocolFeesTokenA  U64  `json:"protocolFeesTokenA"`
	ProtocolFeesTokenB  U64  `json:"protocolFeesTokenB"`
	SwapInAmountTokenA  U128 `json:"swapInAmountTokenA"`
	SwapOutAmountTokenB U128 `json:"swapOutAmountTokenB"`
	SwapInAmountTokenB  U128 `json:"swapInAmountTokenB"`
	SwapOutAmountTokenA U128 `json:"swapOutAmountTokenA"`

	Status uint8 `json:"status"`

	RewardInfos     [ClmmRewardCount]RewardInfo `json:"rewardInfos"`
	TickArrayBitmap [ClmmTickBitmapWords]U64    `json:"tickArrayBitmap"`

	TotalFeesTokenA        U64 `json:"totalFeesTokenA"`
	TotalFeesClaimedTokenA U64 `json:"totalFeesClaimedTokenA"`
	TotalFeesTokenB        U64 `json:"totalFeesTokenB"`
	TotalFeesClaimedTokenB U64 `json:"totalFeesClaimedTokenB"`
	FundFeesTokenA         U64 `json:"fundFeesTokenA"`
	FundFeesTokenB         U64 `json:"fundFeesTokenB"`
	StartTime              U64 `json:"startTime"`
}

func (*ClmmPool) Variant() models.PoolVariant { return models.ConcentratedLiquidity }

func DecodeClmmPool(buf []byte) (*ClmmPool, error) {
	if err := checkSize("clmm pool", buf, ClmmPoolSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	r.skip("discriminator", discriminatorSize)

	p := &ClmmPool{}
	p.Bump = r.u8("bump")
	p.AmmConfig = r.pubkey("ammConfig")
	p.Creator = r.pubkey("creator")
	p.MintA = r.pubkey("mintA")
	p.MintB = r.pubkey("mintB")
	p.VaultA = r.pubkey("vaultA")
	p.VaultB = r.pubkey("vaultB")
	p.ObservationID = r.pubkey("observationId")

	p.MintDecimalsA = r.u8("mintDecimalsA")
	p.MintDecimalsB = r.u8("mintDecimalsB")
	p.TickSpacing = r.u16("tickSpacing")
	p.Liquidity = r.u128("liquidity")
	p.SqrtPriceX64 = r.u128("sqrtPriceX64")
	p.TickCurrent = r.i32("tickCurrent")
	p.FeeProtocol = r.u32("feeProtocol")

	p.FeeGrowthGlobalX64A = r.u128("feeGrowthGlobalX64A")
	p.FeeGrowthGlobalX64B = r.u128("feeGrowthGlobalX64B")
	p.ProtocolFeesTokenA = r.u64("protocolFeesTokenA")
	p.ProtocolFeesTokenB = r.u64("protocolFeesTokenB")
	p.SwapInAmountTokenA = r.u128("swapInAmountTokenA")
	p.SwapOutAmountTokenB = r.u128("swapOutAmountTokenB")
	p.SwapInAmountTokenB = r.u128("swapInAmountTokenB")
	p.SwapOutAmountTokenA = r.u128("swapOutAmountTokenA")
	p.Status = r.u8("status")
	r.skip("padding", 7)

	for i := range p.RewardInfos {
		p.RewardInfos[i] = readRewardInfo(r, i)
	}
	r.u64s("tickArrayBitmap", p.TickArrayBitmap[:])

	p.TotalFeesTokenA = r.u64("totalFeesTokenA")
	p.TotalFeesClaimedTokenA = r.u64("totalFeesClaimedTokenA")
	p.TotalFeesTokenB = r.u64("totalFeesTokenB")
	p.TotalFeesClaimedTokenB = r.u64("totalFeesClaimedTokenB")
	p.FundFeesTokenA = r.u64("fundFeesTokenA")
	p.FundFeesTokenB = r.u64("fundFeesTokenB")
	p.StartTime = r.u64("startTime")
	r.skip("padding", clmmTailPadding*8)

	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func readRewardInfo(r *reader, i int) RewardInfo {
	field := func(name string) string { return fmt.Sprintf("rewardInfos[%d].%s", i, name) }
	return RewardInfo{
		RewardVault:           r.pubkey(field("rewardVault")),
		RewardMint:            r.pubkey(field("rewardMint")),
		EmissionsPerSecondX64: r.u128(field("emissionsPerSecondX64")),
		GrowthGlobalX64:       r.u128(field("growthGlobalX64")),
		Accumulator:           r.u64(field("accumulator")),
		LastUpdatedTimestamp:  r.u64(field("lastUpdatedTimestamp")),
		StartTimestamp:        r.u64(field("startTimestamp")),
		EndTimestamp:          r.u64(field("endTimestamp")),
	}
}

// ClmmConfig is the AMM config account referenced by ClmmPool.AmmConfig.
type ClmmConfig struct {
	Bump            uint8            `json:"bump"`
	Index           uint16           `json:"index"`
	Owner           solana.PublicKey `json:"owner"`
	ProtocolFeeRate uint32           `json:"protocolFeeRate"`
	TradeFeeRate    uint32           `json:"tradeFeeRate"`
	TickSpacing     uint16           `json:"tickSpacing"`
}

func DecodeClmmConfig(buf []byte) (*ClmmConfig, error) {
	if err := checkSize("clmm config", buf, ClmmConfigSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	r.skip("discriminator", discriminatorSize)

	c := &ClmmConfig{
		Bump:            r.u8("bump"),
		Index:           r.u16("index"),
		Owner:           r.pubkey("owner"),
		ProtocolFeeRate: r.u32("protocolFeeRate"),
		TradeFeeRate:    r.u32("tradeFeeRate"),
		TickSpacing:     r.u16("tickSpacing"),
	}

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}
