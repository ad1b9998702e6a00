package layout

import (
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/gagliardetto/solana-go"
)

const (
	discriminatorSize = 8

	CpmmPoolSize   = discriminatorSize + 10*32 + 5 + 6*8 + 32*8
	CpmmConfigSize = discriminatorSize + 1 + 1 + 2 + 4*8 + 2*32 + 16*8
)

// CpmmPool is the Raydium constant-product pool state account.
type CpmmPool struct {
	ConfigID      solana.PublicKey `json:"configId"`
	PoolCreator   solana.PublicKey `json:"poolCreator"`
	VaultA        solana.PublicKey `json:"vaultA"`
	VaultB        solana.PublicKey `json:"vaultB"`
	MintLp        solana.PublicKey `json:"mintLp"`
	MintA         solana.PublicKey `json:"mintA"`
	MintB         solana.PublicKey `json:"mintB"`
	MintProgramA  solana.PublicKey `json:"mintProgramA"`
	MintProgramB  solana.PublicKey `json:"mintProgramB"`
	ObservationID solana.PublicKey `json:"observationId"`

	Bump         uint8 `json:"bump"`
	Status       uint8 `json:"status"`
	LpDecimals   uint8 `json:"lpDecimals"`
	MintDecimalA uint8 `json:"mintDecimalA"`
	MintDecimalB uint8 `json:"mintDecimalB"`

	LpAmount          U64 `json:"lpAmount"`
	ProtocolFeesMintA U64 `json:"protocolFeesMintA"`
	ProtocolFeesMintB U64 `json:"protocolFeesMintB"`
	FundFeesMintA     U64 `json:"fundFeesMintA"`
	FundFeesMintB     U64 `json:"fundFeesMintB"`
	OpenTime          U64 `json:"openTime"`

	AdditionalData [32]U64 `json:"additionalData"`
}

func (*CpmmPool) Variant() models.PoolVariant { return models.ConstantProduct }

func DecodeCpmmPool(buf []byte) (*CpmmPool, error) {
	if err := checkSize("cpmm pool", buf, CpmmPoolSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	r.skip("discriminator", discriminatorSize)

	p := &CpmmPool{}
	p.ConfigID = r.pubkey("configId")
	p.PoolCreator = r.pubkey("poolCreator")
	p.VaultA = r.pubkey("vaultA")
	p.VaultB = r.pubkey("vaultB")
	p.MintLp = r.pubkey("mintLp")
	p.MintA = r.pubkey("mintA")
	p.MintB = r.pubkey("mintB")
	p.MintProgramA = r.pubkey("mintProgramA")
	p.MintProgramB = r.pubkey("mintProgramB")
	p.ObservationID = r.pubkey("observationId")

	p.Bump = r.u8("bump")
	p.Status = r.u8("status")
	p.LpDecimals = r.u8("lpDecimals")
	p.MintDecimalA = r.u8("mintDecimalA")
	p.MintDecimalB = r.u8("mintDecimalB")

	p.LpAmount = r.u64("lpAmount")
	p.ProtocolFeesMintA = r.u64("protocolFeesMintA")
	p.ProtocolFeesMintB = r.u64("protocolFeesMintB")
	p.FundFeesMintA = r.u64("fundFeesMintA")
	p.FundFeesMintB = r.u64("fundFeesMintB")
	p.OpenTime = r.u64("openTime")

	r.u64s("additionalData", p.AdditionalData[:])

	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// CpmmConfig is the AMM config account referenced by CpmmPool.ConfigID.
type CpmmConfig struct {
	Bump              uint8            `json:"bump"`
	DisableCreatePool bool             `json:"disableCreatePool"`
	Index             uint16           `json:"index"`
	TradeFeeRate      U64              `json:"tradeFeeRate"`
	ProtocolFeeRate   U64              `json:"protocolFeeRate"`
	FundFeeRate       U64              `json:"fundFeeRate"`
	CreatePoolFee     U64              `json:"createPoolFee"`
	ProtocolOwner     solana.PublicKey `json:"protocolOwner"`
	FundOwner         solana.PublicKey `json:"fundOwner"`
	AdditionalFees    [16]U64          `json:"additionalFees"`
}

func DecodeCpmmConfig(buf []byte) (*CpmmConfig, error) {
	if err := checkSize("cpmm config", buf, CpmmConfigSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	r.skip("discriminator", discriminatorSize)

	c := &CpmmConfig{}
	c.Bump = r.u8("bump")
	c.DisableCreatePool = r.boolean("disableCreatePool")
	c.Index = r.u16("index")
	c.TradeFeeRate = r.u64("tradeFeeRate")
	c.ProtocolFeeRate = r.u64("protocolFeeRate")
	c.FundFeeRate = r.u64("fundFeeRate")
	c.CreatePoolFee = r.u64("createPoolFee")
	c.ProtocolOwner = r.pubkey("protocolOwner")
	c.FundOwner = r.pubkey("fundOwner")
	r.u64s("additionalFees", c.AdditionalFees[:])

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}
