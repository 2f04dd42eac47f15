package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/config"
	"github.com/Digital-Creators-Team/prize-wheel-module/httpclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletProvider implements providers.WalletProvider over the wallet
// service's HTTP API
type WalletProvider struct {
	client *httpclient.Client
	logger zerolog.Logger
}

// NewWalletProvider creates a new wallet provider
func NewWalletProvider(cfg *config.Config, logger zerolog.Logger) *WalletProvider {
	timeout := cfg.ExternalServices.WalletService.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WalletProvider{
		client: httpclient.New(httpclient.Config{
			BaseURL: cfg.ExternalServices.WalletService.BaseURL,
			Timeout: timeout,
			Logger:  logger,
		}),
		logger: logger.With().Str("component", "wallet_provider").Logger(),
	}
}

type creditRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"` // external service expects float64
	SpinID string  `json:"spin_id"`
	Reason string  `json:"reason"`
}

// CreditCash adds a fixed cash prize to the user's balance
func (p *WalletProvider) CreditCash(ctx context.Context, userID string, amount decimal.Decimal, spinID string) error {
	body := creditRequest{
		UserID: userID,
		Amount: amount.InexactFloat64(),
		SpinID: spinID,
		Reason: "wheel_cash_prize",
	}

	if err := p.client.PostJSON(ctx, "/wallet/credit", body, nil, nil); err != nil {
		return fmt.Errorf("failed to credit cash prize: %w", err)
	}
	return nil
}

// CreditPercent applies a percentage bonus to the user's next deposit
func (p *WalletProvider) CreditPercent(ctx context.Context, userID string, percent decimal.Decimal, spinID string) error {
	body := creditRequest{
		UserID: userID,
		Amount: percent.InexactFloat64(),
		SpinID: spinID,
		Reason: "wheel_percent_prize",
	}

	if err := p.client.PostJSON(ctx, "/wallet/deposit-bonus", body, nil, nil); err != nil {
		return fmt.Errorf("failed to credit percent prize: %w", err)
	}
	return nil
}
