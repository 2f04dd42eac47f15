package providers

import (
	"context"

	"github.com/Digital-Creators-Team/prize-wheel-module/wheel"
	"github.com/shopspring/decimal"
)

// WalletProvider credits won prizes to the user's wallet. Crediting
// lives outside this service; a failed credit is retried by the wallet
// side off the spin-record stream, so the spin itself never rolls back.
type WalletProvider interface {
	// CreditCash adds a fixed cash prize to the user's balance
	CreditCash(ctx context.Context, userID string, amount decimal.Decimal, spinID string) error
	// CreditPercent applies a percentage bonus to the user's next deposit
	CreditPercent(ctx context.Context, userID string, percent decimal.Decimal, spinID string) error
}

// SpinPublisher emits committed spin records for reporting and the
// wallet reconciliation consumers
type SpinPublisher interface {
	PublishSpin(ctx context.Context, record *wheel.SpinRecord) error
	Close() error
}

// CampaignEventHandler reacts to campaign administration events
type CampaignEventHandler interface {
	OnCampaignChanged(campaignID string)
}
