package server

import (
	"github.com/aman-zulfiqar/solana-price-relay/internal/layout"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/gagliardetto/solana-go"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"`
}

// PoolsResponse lists pools known to the metadata store
type PoolsResponse struct {
	Items []*models.PoolRecord `json:"items"`
}

// TrackedResponse lists what the relay is currently tracking
type TrackedResponse struct {
	Count int `json:"count"`
	Items any `json:"items"`
}

// TokenAccountView is one SPL token account with its address
type TokenAccountView struct {
	Address solana.PublicKey `json:"address"`
	*layout.TokenAccount
}

// TokenAccountsResponse lists the token accounts held by an owner
type TokenAccountsResponse struct {
	Owner string             `json:"owner"`
	Count int                `json:"count"`
	Items []TokenAccountView `json:"items"`
}
