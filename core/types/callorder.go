package types

import "github.com/litepresence/bitshares-core/core/registry"

// CallOrder is a borrower's collateralized debt position, one per
// (owner, debt asset). TargetCollateralRatio, when non-zero, caps how
// much collateral a margin call may consume so the order ends at or
// above the target ratio rather than being fully liquidated.
type CallOrder struct {
	ID                    registry.ID
	Owner                 registry.ID
	DebtAsset             registry.ID
	CollateralAsset       registry.ID
	Collateral            Amount
	Debt                  Amount
	TargetCollateralRatio uint16 // per-mille, 0 = disabled; valid range [0,65535] per §6
}

// CollateralizationPrice returns the order's raw collateral/debt as a
// Price (collateral per debt unit), comparable to
// CurrentMaintenanceCollateralization, which already folds in the
// settlement price.
func (c CallOrder) CollateralizationPrice() Price {
	return Price{
		Base:  AssetAmount{Asset: c.CollateralAsset, Amount: c.Collateral},
		Quote: AssetAmount{Asset: c.DebtAsset, Amount: c.Debt},
	}
}

// IsFullyCovered reports the order has zero debt (and, by invariant,
// zero collateral — see §4.3 rule 3).
func (c CallOrder) IsFullyCovered() bool { return c.Debt == 0 }
