package types

import "github.com/litepresence/bitshares-core/core/registry"

// ForceSettlement is a holder's request to redeem a bitasset at the
// current feed's settlement price, escrowed until SettlementDate once the
// asset is not already globally settled (global settlement redeems
// immediately instead, bypassing the queue entirely).
type ForceSettlement struct {
	ID             registry.ID
	Owner          registry.ID
	Asset          registry.ID
	Balance        Amount
	SettlementDate int64
}
