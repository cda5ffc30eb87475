package types

import (
	"math/big"

	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/registry"
)

// AssetAmount pairs an Amount with the asset it denominates.
type AssetAmount struct {
	Asset  registry.ID
	Amount Amount
}

// Price is an exact ratio of two AssetAmounts: Base per Quote. Prices are
// compared and multiplied by exact cross-multiplication using math/big,
// never by converting to a floating-point ratio.
type Price struct {
	Base  AssetAmount
	Quote AssetAmount
}

// Valid reports that both legs denominate different assets and carry
// non-negative amounts.
func (p Price) Valid() bool {
	return p.Base.Asset != p.Quote.Asset && p.Base.Amount >= 0 && p.Quote.Amount >= 0
}

// Invertible reports whether both sides are strictly positive, the
// precondition for Invert to produce a usable price.
func (p Price) Invertible() bool {
	return p.Base.Amount > 0 && p.Quote.Amount > 0
}

// Invert swaps base and quote.
func (p Price) Invert() (Price, error) {
	if !p.Invertible() {
		return Price{}, cerrors.New(cerrors.Validation, "price.invert", "price is not invertible")
	}
	return Price{Base: p.Quote, Quote: p.Base}, nil
}

// samePair reports whether a and b share the same (possibly swapped)
// asset pair, the precondition for comparing or equating them.
func samePair(a, b Price) bool {
	if a.Base.Asset == b.Base.Asset && a.Quote.Asset == b.Quote.Asset {
		return true
	}
	return a.Base.Asset == b.Quote.Asset && a.Quote.Asset == b.Base.Asset
}

// normalize returns b re-expressed over a's asset pair (inverting it if
// necessary), so the two can be cross-multiplied directly.
func normalize(a, b Price) (Price, bool) {
	if a.Base.Asset == b.Base.Asset && a.Quote.Asset == b.Quote.Asset {
		return b, true
	}
	if a.Base.Asset == b.Quote.Asset && a.Quote.Asset == b.Base.Asset {
		return Price{Base: b.Quote, Quote: b.Base}, true
	}
	return Price{}, false
}

// Compare returns -1, 0, or +1 as a is less than, equal to, or greater
// than b, using exact cross-multiplication (a.Base*b.Quote vs.
// a.Quote*b.Base) rather than floating-point division. a and b must
// share the same asset pair (in either order); otherwise an error is
// returned since the comparison is meaningless.
func Compare(a, b Price) (int, error) {
	nb, ok := normalize(a, b)
	if !ok {
		return 0, cerrors.New(cerrors.Validation, "price.compare", "prices do not share an asset pair")
	}
	lhs := new(big.Int).Mul(big.NewInt(int64(a.Base.Amount)), big.NewInt(int64(nb.Quote.Amount)))
	rhs := new(big.Int).Mul(big.NewInt(int64(a.Quote.Amount)), big.NewInt(int64(nb.Base.Amount)))
	return lhs.Cmp(rhs), nil
}

// Equal reports a == b by cross-product, robust to non-canonical
// (unreduced) fractions: a/b == c/d iff a*d == b*c.
func Equal(a, b Price) bool {
	if !samePair(a, b) {
		return false
	}
	cmp, err := Compare(a, b)
	return err == nil && cmp == 0
}

// Multiply converts amt (denominated in p.Base.Asset) into p.Quote.Asset,
// computing floor(amt * p.Quote / p.Base) with 128-bit-equivalent exact
// big.Int arithmetic. amt must be denominated in p.Base.Asset.
func (p Price) Multiply(amt AssetAmount) (AssetAmount, error) {
	if amt.Asset != p.Base.Asset {
		return AssetAmount{}, cerrors.New(cerrors.Validation, "price.multiply", "amount asset does not match price base")
	}
	if p.Base.Amount <= 0 {
		return AssetAmount{}, cerrors.New(cerrors.Validation, "price.multiply", "price base must be positive")
	}
	num := new(big.Int).Mul(big.NewInt(int64(amt.Amount)), big.NewInt(int64(p.Quote.Amount)))
	num.Div(num, big.NewInt(int64(p.Base.Amount)))
	if !num.IsInt64() {
		return AssetAmount{}, cerrors.New(cerrors.Consistency, "price.multiply", "result overflows amount range")
	}
	result := Amount(num.Int64())
	if !result.Valid() {
		return AssetAmount{}, cerrors.New(cerrors.Consistency, "price.multiply", "result out of range")
	}
	return AssetAmount{Asset: p.Quote.Asset, Amount: result}, nil
}

// scaleByPerMille multiplies a price's base leg by ratio/1000, used to
// derive maintenance/initial collateralization and max-short-squeeze
// prices from a settlement price and a per-mille ratio (MCR/ICR/MSSR).
func scaleByPerMille(p Price, ratio uint32) Price {
	num := new(big.Int).Mul(big.NewInt(int64(p.Base.Amount)), big.NewInt(int64(ratio)))
	num.Div(num, big.NewInt(1000))
	scaled := num.Int64()
	return Price{Base: AssetAmount{Asset: p.Base.Asset, Amount: Amount(scaled)}, Quote: p.Quote}
}

// MaintenanceCollateralization derives current_maintenance_collateralization
// = settlement_price * MCR / 1000, expressed as a price (collateral per
// debt unit).
func MaintenanceCollateralization(settlementPrice Price, mcr uint32) Price {
	return scaleByPerMille(settlementPrice, mcr)
}

// InitialCollateralization derives current_initial_collateralization =
// settlement_price * ICR / 1000.
func InitialCollateralization(settlementPrice Price, icr uint32) Price {
	return scaleByPerMille(settlementPrice, icr)
}

// MaxShortSqueezePrice derives settlement_price * MSSR / 1000, the floor
// price at which a margin call may execute.
func MaxShortSqueezePrice(settlementPrice Price, mssr uint32) Price {
	return scaleByPerMille(settlementPrice, mssr)
}
