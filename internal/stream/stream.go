package stream

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// AccountUpdate is one account change notification.
type AccountUpdate struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
	Slot     uint64
	// Closed is set when the account was drained to zero lamports and no data.
	Closed bool
}

// UpdateHandler receives updates for one subscribed account. Calls for a
// single subscription are sequential.
type UpdateHandler func(AccountUpdate)

// Subscription is a live account subscription
type Subscription interface {
	Unsubscribe()
}

// AccountSubscriber opens change-notification subscriptions on accounts
type AccountSubscriber interface {
	Subscribe(ctx context.Context, account solana.PublicKey, handler UpdateHandler) (Subscription, error)
}

func isClosed(lamports uint64, data []byte) bool {
	return lamports == 0 && len(data) == 0
}
