package types

import "github.com/litepresence/bitshares-core/core/registry"

// CollateralBid is a revival bid submitted while a bitasset is globally
// settled: the bidder offers CollateralOffered (of the backing asset) to
// cover DebtCovered (of the bitasset). Bids are ranked by
// CollateralOffered/DebtCovered descending (most-collateralized first).
type CollateralBid struct {
	ID                registry.ID
	Bidder            registry.ID
	Asset             registry.ID // the bitasset being revived
	CollateralOffered Amount
	DebtCovered       Amount
}

// InvSwanPrice returns collateral_offered/debt_covered as a Price
// (collateral per debt unit), used to rank and to compare against
// settlement_price * MCR / 1000 at revival time.
func (b CollateralBid) InvSwanPrice(collateralAsset registry.ID) Price {
	return Price{
		Base:  AssetAmount{Asset: collateralAsset, Amount: b.CollateralOffered},
		Quote: AssetAmount{Asset: b.Asset, Amount: b.DebtCovered},
	}
}
