package rpc

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned when getAccountInfo yields a null value.
var ErrAccountNotFound = errors.New("account not found")

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// AccountInfo is a one-shot snapshot of an account
type AccountInfo struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
	Slot     uint64
}

// accountInfoResponse is the envelope returned by getAccountInfo
type accountInfoResponse struct {
	Result *solanarpc.GetAccountInfoResult `json:"result"`
	Error  *RPCError                       `json:"error"`
}

// tokenAccountsResponse is the envelope returned by getTokenAccountsByOwner
type tokenAccountsResponse struct {
	Result *solanarpc.GetTokenAccountsResult `json:"result"`
	Error  *RPCError                         `json:"error"`
}
