package server

import "github.com/Digital-Creators-Team/prize-wheel-module/pkg/providers"

// Re-export provider interfaces from pkg/providers to keep a single source of truth.
type (
	WalletProvider       = providers.WalletProvider
	SpinPublisher        = providers.SpinPublisher
	CampaignEventHandler = providers.CampaignEventHandler
)
