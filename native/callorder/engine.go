// Package callorder implements the borrow/cover/margin-call state
// machine of §4.3, grounded directly on native/lending.Engine's
// Borrow/Repay/Liquidate trio: the same "load position, apply delta,
// check health, persist" shape, generalized from a single NHB/ZNHB
// market to a market-issued-asset call order per (owner, debt_asset),
// with the fixed liquidation bonus replaced by the feed-derived
// max-short-squeeze price.
package callorder

import (
	"log/slog"
	"math/big"

	"github.com/litepresence/bitshares-core/core/events"
	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
	"github.com/litepresence/bitshares-core/native/authz"
	"github.com/litepresence/bitshares-core/native/orderbook"
)

// State is the persistence surface the engine operates through. The
// engine writes to it directly and opens no session of its own; any
// commit/discard scope is left to the caller.
type State interface {
	GetCallOrder(owner, debtAsset registry.ID) (*types.CallOrder, bool)
	PutCallOrder(order *types.CallOrder)
	RemoveCallOrder(id registry.ID)
	NextCallOrderID() registry.ID

	GetAsset(id registry.ID) (*types.Asset, bool)
	PutAsset(asset *types.Asset)
	GetBitasset(id registry.ID) (*types.BitassetData, bool)
	PutBitasset(bd *types.BitassetData)

	GetAccount(id registry.ID) (*types.Account, bool)
	PutAccount(acc *types.Account)
}

// Engine evaluates call_order_update and drives margin-call execution.
type Engine struct {
	state State
	dir   authz.Directory
	hf    hardfork.Schedule
}

// New constructs an Engine bound to state and an authorization directory.
func New(state State, dir authz.Directory, hf hardfork.Schedule) *Engine {
	return &Engine{state: state, dir: dir, hf: hf}
}

// Update is the call_order_update(owner, delta_collateral, delta_debt,
// target_collateral_ratio?) operation (§4.3). delta_collateral moves
// collateral between the owner's balance and the order's escrow;
// delta_debt mints (positive) or burns (negative) debt-asset supply held
// by the owner against the order.
type Update struct {
	Owner                 registry.ID
	DebtAsset             registry.ID
	DeltaCollateral       types.Amount
	DeltaDebt             types.Amount
	TargetCollateralRatio uint16
	BlockTime             int64
}

// Apply evaluates one call_order_update, mutating state in place and
// returning the resulting order (nil if fully covered and removed) plus
// any virtual operations (fee accrual) it produced.
func (e *Engine) Apply(op Update) (*types.CallOrder, []events.VirtualOp, error) {
	const at = "callorder.update"
	if op.DeltaCollateral == 0 && op.DeltaDebt == 0 {
		return nil, nil, cerrors.New(cerrors.Validation, at, "delta_collateral and delta_debt both zero")
	}

	debtAsset, ok := e.state.GetAsset(op.DebtAsset)
	if !ok || !debtAsset.IsMarketIssued() {
		return nil, nil, cerrors.New(cerrors.Validation, at, "delta_debt asset must be a market-issued asset")
	}
	bd, ok := e.state.GetBitasset(debtAsset.BitassetID)
	if !ok {
		return nil, nil, cerrors.New(cerrors.Consistency, at, "bitasset data missing")
	}
	if bd.IsGloballySettled {
		return nil, nil, cerrors.New(cerrors.Consistency, at, "asset is globally settled")
	}
	backingAsset, ok := e.state.GetAsset(bd.BackingAsset)
	if !ok {
		return nil, nil, cerrors.New(cerrors.Consistency, at, "backing asset missing")
	}
	if backingAsset.ID == op.DebtAsset {
		return nil, nil, cerrors.New(cerrors.Validation, at, "delta_debt.asset_id must differ from delta_collateral.asset_id")
	}

	if err := authz.GuardBitasset(e.dir, *debtAsset, *backingAsset, op.Owner, e.hf, op.BlockTime); err != nil {
		return nil, nil, cerrors.WithOp(err, at)
	}

	order, existed := e.state.GetCallOrder(op.Owner, op.DebtAsset)
	if !existed {
		order = &types.CallOrder{
			ID:              e.state.NextCallOrderID(),
			Owner:           op.Owner,
			DebtAsset:       op.DebtAsset,
			CollateralAsset: backingAsset.ID,
		}
	}

	newCollateral, err := types.Add(at, order.Collateral, op.DeltaCollateral)
	if err != nil {
		return nil, nil, err
	}
	newDebt, err := types.Add(at, order.Debt, op.DeltaDebt)
	if err != nil {
		return nil, nil, err
	}

	if newDebt == 0 && newCollateral != 0 {
		return nil, nil, cerrors.New(cerrors.Consistency, at, "fully covering debt requires returning all collateral")
	}

	owner, ok := e.state.GetAccount(op.Owner)
	if !ok {
		return nil, nil, cerrors.New(cerrors.Validation, at, "owner account not found")
	}

	// Every balance/supply change is computed purely here, before any
	// mutation, so a later invariant failure (prediction-market parity,
	// collateralization) never leaves a partial mutation behind.
	newOwnerCollateral := owner.Balance(backingAsset.ID)
	if op.DeltaCollateral > 0 {
		newOwnerCollateral, err = types.Sub(at, newOwnerCollateral, op.DeltaCollateral)
		if err != nil {
			return nil, nil, err
		}
	} else if op.DeltaCollateral < 0 {
		newOwnerCollateral += -op.DeltaCollateral
	}

	newOwnerDebtBalance := owner.Balance(op.DebtAsset)
	newSupply := debtAsset.Dynamic.CurrentSupply
	if op.DeltaDebt > 0 {
		newSupply, err = types.Add(at, newSupply, op.DeltaDebt)
		if err != nil {
			return nil, nil, err
		}
		if newSupply > debtAsset.Options.MaxSupply {
			return nil, nil, cerrors.New(cerrors.Consistency, at, "debt would exceed asset max_supply")
		}
		newOwnerDebtBalance += op.DeltaDebt
	} else if op.DeltaDebt < 0 {
		newOwnerDebtBalance, err = types.Sub(at, newOwnerDebtBalance, -op.DeltaDebt)
		if err != nil {
			return nil, nil, err
		}
		newSupply, err = types.Sub(at, newSupply, -op.DeltaDebt)
		if err != nil {
			return nil, nil, err
		}
	}

	projected := *order
	projected.Collateral = newCollateral
	projected.Debt = newDebt

	if bd.IsPredictionMarket {
		if newDebt != 0 && newCollateral != newDebt {
			return nil, nil, cerrors.New(cerrors.Consistency, at, "prediction market requires collateral == debt")
		}
	} else if newDebt > 0 {
		increasedRisk := op.DeltaDebt > 0 || op.DeltaCollateral < 0
		if err := checkCollateralization(bd, projected, e.hf, op.BlockTime, increasedRisk); err != nil {
			return nil, nil, err
		}
	}

	owner.SetBalance(backingAsset.ID, newOwnerCollateral)
	owner.SetBalance(op.DebtAsset, newOwnerDebtBalance)
	debtAsset.Dynamic.CurrentSupply = newSupply
	order.Collateral = newCollateral
	order.Debt = newDebt
	if op.TargetCollateralRatio != 0 {
		order.TargetCollateralRatio = op.TargetCollateralRatio
	}

	e.state.PutAsset(debtAsset)
	e.state.PutAccount(owner)
	if newDebt == 0 {
		e.state.RemoveCallOrder(order.ID)
		return nil, nil, nil
	}
	e.state.PutCallOrder(order)
	return order, nil, nil
}

// checkCollateralization enforces §4.3's live-order invariant: CR must
// exceed current_maintenance_collateralization (or there is no valid
// feed, in which case the check is skipped — fails closed only where a
// feed-dependent action requires one). When increasedRisk (debt up or
// collateral down) and the ICR hardfork is active and the feed carries an
// ICR, the stricter CR >= current_initial_collateralization gate also
// applies, at mutation time only (§4.3 rule 2).
func checkCollateralization(bd *types.BitassetData, order types.CallOrder, hf hardfork.Schedule, blockTime int64, increasedRisk bool) error {
	const at = "callorder.check_collateralization"
	if !bd.HasValidFeed {
		return nil
	}
	cr := order.CollateralizationPrice()
	cmp, err := types.Compare(cr, bd.CurrentMaintenanceCollateralization)
	if err != nil {
		return cerrors.Wrap(cerrors.Consistency, at, err, "cannot compare collateralization")
	}
	if cmp <= 0 {
		return cerrors.New(cerrors.Consistency, at, "collateralization ratio not above maintenance threshold")
	}
	if increasedRisk && hf.Active(hardfork.ICR, blockTime) && bd.MedianFeed.ICRPresent() {
		cmp, err := types.Compare(cr, bd.CurrentInitialCollateralization)
		if err != nil {
			return cerrors.Wrap(cerrors.Consistency, at, err, "cannot compare initial collateralization")
		}
		if cmp < 0 {
			return cerrors.New(cerrors.Consistency, at, "collateralization ratio below initial threshold")
		}
	}
	return nil
}

// IsMarginCallable reports whether order is in margin-call territory:
// its CR is at or below current_maintenance_collateralization (the
// invariant requires strict >, so CR == MCR already qualifies, per §8
// boundary behavior).
func IsMarginCallable(bd *types.BitassetData, order types.CallOrder) bool {
	if !bd.HasValidFeed {
		return false
	}
	cr := order.CollateralizationPrice()
	cmp, err := types.Compare(cr, bd.CurrentMaintenanceCollateralization)
	return err == nil && cmp <= 0
}

// MarginCallOrderPrice returns settlement_price * MSSR / 1000, the floor
// price at which a margin call may execute (§4.3).
func MarginCallOrderPrice(bd *types.BitassetData) types.Price {
	return types.MaxShortSqueezePrice(bd.MedianFeed.SettlementPrice, bd.MedianFeed.MSSR)
}

// ExecuteMarginCall liquidates collateral from order against counter (a
// resting limit order offering the debt asset for the collateral asset)
// at max(counter's price, margin_call_order_price) (§4.3 rule 2/§4.4
// rule 2), capped so the order is not drawn down past its
// target_collateral_ratio when one is set. It never forces a trade worse
// than the margin-call floor (§4.4 rule 3): if counter does not cross
// that floor, no fill occurs and (nil, nil) is returned.
func ExecuteMarginCall(bd *types.BitassetData, order *types.CallOrder, counter *types.LimitOrder, feeRate orderbook.FeeRate) (*orderbook.FillLeg, *orderbook.FillLeg, error) {
	const at = "callorder.execute_margin_call"
	floor := MarginCallOrderPrice(bd) // collateral per debt unit
	floorInv, err := floor.Invert()
	if err != nil {
		return nil, nil, cerrors.Wrap(cerrors.Consistency, at, err, "invalid margin call floor price")
	}
	// counter sells debt_asset for collateral_asset at counter.SellPrice
	// (Base=debt, Quote=collateral). The fill executes at counter's own
	// price, and only when that price asks at least as much collateral
	// per debt as the margin-call floor (floorInv); in Base/Quote terms a
	// lower value means more collateral per debt.
	cmp, err := types.Compare(counter.SellPrice, floorInv)
	if err != nil {
		return nil, nil, cerrors.Wrap(cerrors.Consistency, at, err, "cannot compare counter price to margin call floor")
	}
	fillPrice := counter.SellPrice
	if cmp > 0 {
		// Counter asks less collateral per debt than the margin-call
		// floor; the fill cannot execute at counter's price, and
		// tightening to the floor would violate the maker-limit's own
		// price, so this fill is skipped entirely (§4.4 rule 3).
		return nil, nil, nil
	}

	debtAvailable := order.Debt
	if order.TargetCollateralRatio != 0 {
		if capDebt := capDebtForTarget(*order, fillPrice, bd.MedianFeed.SettlementPrice, order.TargetCollateralRatio); capDebt < debtAvailable {
			debtAvailable = capDebt
		}
	}
	if debtAvailable <= 0 {
		return nil, nil, nil
	}

	counterReceivesForAll, err := fillPrice.Multiply(types.AssetAmount{Asset: fillPrice.Base.Asset, Amount: counter.ForSale})
	if err != nil {
		return nil, nil, err
	}

	var debtFilled, collateralPaid types.Amount
	var counterFullyFilled bool
	if counter.ForSale <= debtAvailable {
		debtFilled = counter.ForSale
		collateralPaid = counterReceivesForAll.Amount
		counterFullyFilled = true
	} else {
		inv, _ := fillPrice.Invert()
		callBuys, err := inv.Multiply(types.AssetAmount{Asset: inv.Base.Asset, Amount: debtAvailable})
		if err != nil {
			return nil, nil, err
		}
		debtFilled = debtAvailable
		collateralPaid = callBuys.Amount
		counterFullyFilled = false
	}

	fee := (int64(collateralPaid) * int64(bd.MarginCallFeeRatio)) / 1000
	order.Debt -= debtFilled
	order.Collateral -= collateralPaid
	counter.ForSale -= debtFilled

	slog.Warn("callorder: margin call executed",
		slog.String("order", order.ID.String()),
		slog.String("owner", order.Owner.String()),
		slog.Int64("debt_filled", int64(debtFilled)),
		slog.Int64("collateral_paid", int64(collateralPaid)),
		slog.Bool("fully_covered", order.Debt == 0))

	callLeg := &orderbook.FillLeg{
		OrderID:       order.ID,
		Account:       order.Owner,
		Paid:          types.AssetAmount{Asset: fillPrice.Base.Asset, Amount: debtFilled},
		ReceivedGross: types.AssetAmount{Asset: fillPrice.Quote.Asset, Amount: 0},
		FullyFilled:   order.Debt == 0,
	}
	counterLeg := &orderbook.FillLeg{
		OrderID:       counter.ID,
		Account:       counter.Seller,
		Paid:          types.AssetAmount{Asset: fillPrice.Base.Asset, Amount: debtFilled},
		ReceivedGross: types.AssetAmount{Asset: fillPrice.Quote.Asset, Amount: collateralPaid},
		Fee:           types.Amount(fee),
		ReceivedNet:   types.AssetAmount{Asset: fillPrice.Quote.Asset, Amount: collateralPaid - types.Amount(fee)},
		FullyFilled:   counterFullyFilled,
	}
	return callLeg, counterLeg, nil
}

// capDebtForTarget solves for the debt reduction at fillPrice at which
// the order's collateral ratio (collateral/debt valued at
// settlementPrice) reaches target/1000, i.e. the order ends at the
// owner's requested target ratio rather than being drawn down further
// (§4.3 rule 6). The result is truncated toward zero and clamped to
// [0, order.Debt].
func capDebtForTarget(order types.CallOrder, fillPrice, settlementPrice types.Price, targetPerMille uint16) types.Amount {
	// collateral_after = collateral - debtFilled*price(collateral/debt)
	// debt_after = debt - debtFilled
	// want (collateral_after / debt_after) / (sb/sq) >= target/1000,
	// with settlementPrice = sb collateral per sq debt.
	// Solve via big.Int to avoid overflow on the cross terms.
	c := big.NewInt(int64(order.Collateral))
	d := big.NewInt(int64(order.Debt))
	pn := big.NewInt(int64(fillPrice.Quote.Amount)) // collateral per debt: Quote=collateral
	pd := big.NewInt(int64(fillPrice.Base.Amount))  // Base=debt
	sb := big.NewInt(int64(settlementPrice.Base.Amount))
	sq := big.NewInt(int64(settlementPrice.Quote.Amount))
	if pd.Sign() == 0 || sb.Sign() == 0 || sq.Sign() == 0 {
		return order.Debt
	}
	target := new(big.Int).Mul(big.NewInt(int64(targetPerMille)), sb)
	scale := new(big.Int).Mul(big.NewInt(1000), sq)
	// (c - x*pn/pd) * 1000*sq >= (d - x) * target*sb
	// => x*(target*sb*pd - 1000*sq*pn) >= target*sb*d*pd - 1000*sq*c*pd
	lhsCoeff := new(big.Int).Mul(target, pd)
	lhsCoeff.Sub(lhsCoeff, new(big.Int).Mul(scale, pn))
	rhs := new(big.Int).Mul(target, new(big.Int).Mul(d, pd))
	rhs.Sub(rhs, new(big.Int).Mul(scale, new(big.Int).Mul(c, pd)))
	if lhsCoeff.Sign() == 0 {
		return order.Debt
	}
	x := new(big.Int).Quo(rhs, lhsCoeff)
	if x.Sign() < 0 {
		return 0
	}
	if !x.IsInt64() || x.Int64() > int64(order.Debt) {
		return order.Debt
	}
	return types.Amount(x.Int64())
}
