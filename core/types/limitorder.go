package types

import "github.com/litepresence/bitshares-core/core/registry"

// LimitOrder is a resting offer to sell ForSale of SellPrice.Base.Asset
// for SellPrice.Quote.Asset at no worse than SellPrice.
type LimitOrder struct {
	ID           registry.ID
	Seller       registry.ID
	ForSale      Amount // remaining amount of SellPrice.Base.Asset
	SellPrice    Price
	Expiration   int64 // unix seconds; 0 = no expiration
	DeferredFee  Amount
	FillOrKill   bool
	CreatedBlock uint64
}

// SellAsset/ReceiveAsset are convenience accessors over SellPrice's legs.
func (l LimitOrder) SellAsset() registry.ID    { return l.SellPrice.Base.Asset }
func (l LimitOrder) ReceiveAsset() registry.ID { return l.SellPrice.Quote.Asset }

// Expired reports whether now has passed the order's expiration.
func (l LimitOrder) Expired(now int64) bool {
	return l.Expiration != 0 && now >= l.Expiration
}

// AmountToReceive computes how much of ReceiveAsset l.ForSale buys at
// SellPrice, floor-rounded, per §4.4 rule 4.
func (l LimitOrder) AmountToReceive() (AssetAmount, error) {
	return l.SellPrice.Multiply(AssetAmount{Asset: l.SellAsset(), Amount: l.ForSale})
}
