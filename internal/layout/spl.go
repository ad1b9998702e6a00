package layout

import "github.com/gagliardetto/solana-go"

const (
	TokenAccountSize = 165
	MintSize         = 82
)

// TokenAccount is an SPL token account. Vault balances only need the
// mint, owner and amount.
type TokenAccount struct {
	Mint            solana.PublicKey  `json:"mint"`
	Owner           solana.PublicKey  `json:"owner"`
	Amount          U64               `json:"amount"`
	Delegate        *solana.PublicKey `json:"delegate,omitempty"`
	State           uint8             `json:"state"`
	// IsNative carries the rent-exempt reserve of wrapped SOL accounts.
	IsNative        *U64              `json:"isNative,omitempty"`
	DelegatedAmount U64               `json:"delegatedAmount"`
	CloseAuthority  *solana.PublicKey `json:"closeAuthority,omitempty"`
}

func DecodeTokenAccount(buf []byte) (*TokenAccount, error) {
	if err := checkSize("token account", buf, TokenAccountSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	t := &TokenAccount{
		Mint:   r.pubkey("mint"),
		Owner:  r.pubkey("owner"),
		Amount: r.u64("amount"),
	}

	hasDelegate := r.u32("delegateOption") != 0
	delegate := r.pubkey("delegate")
	if hasDelegate {
		t.Delegate = &delegate
	}
	t.State = r.u8("state")
	hasNative := r.u32("isNativeOption") != 0
	native := r.u64("isNative")
	if hasNative {
		t.IsNative = &native
	}
	t.DelegatedAmount = r.u64("delegatedAmount")
	hasCloseAuthority := r.u32("closeAuthorityOption") != 0
	closeAuthority := r.pubkey("closeAuthority")
	if hasCloseAuthority {
		t.CloseAuthority = &closeAuthority
	}

	if r.err != nil {
		return nil, r.err
	}
	return t, nil
}

// Mint is an SPL mint account.
type Mint struct {
	MintAuthority   *solana.PublicKey `json:"mintAuthority,omitempty"`
	Supply          U64               `json:"supply"`
	Decimals        uint8             `json:"decimals"`
	IsInitialized   bool              `json:"isInitialized"`
	FreezeAuthority *solana.PublicKey `json:"freezeAuthority,omitempty"`
}

func DecodeMint(buf []byte) (*Mint, error) {
	if err := checkSize("mint", buf, MintSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	m := &Mint{}

	hasMintAuthority := r.u32("mintAuthorityOption") != 0
	mintAuthority := r.pubkey("mintAuthority")
	if hasMintAuthority {
		m.MintAuthority = &mintAuthority
	}
	m.Supply = r.u64("supply")
	m.Decimals = r.u8("decimals")
	m.IsInitialized = r.boolean("isInitialized")
	hasFreezeAuthority := r.u32("freezeAuthorityOption") != 0
	freezeAuthority := r.pubkey("freezeAuthority")
	if hasFreezeAuthority {
		m.FreezeAuthority = &freezeAuthority
	}

	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}
