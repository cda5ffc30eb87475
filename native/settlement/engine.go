// Package settlement implements §4.5's three-part settlement engine:
// delayed, volume-capped force settlement; global settlement (black-swan
// or issuer-forced); and collateral-bid revival. It is grounded on
// native/lending.Engine's Liquidate collateral-seizure/routing math,
// generalized from a single liquidation event into fund seizure, queue
// draining, and pro-rata distribution, and on native/common.Quota's
// epoch-reset-counter technique for the per-maintenance-interval volume
// cap.
package settlement

import (
	"log/slog"
	"sort"

	"github.com/litepresence/bitshares-core/core/events"
	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
	"github.com/litepresence/bitshares-core/native/authz"
)

// State is the persistence surface the engine operates through.
type State interface {
	GetBitasset(id registry.ID) (*types.BitassetData, bool)
	PutBitasset(bd *types.BitassetData)
	GetAsset(id registry.ID) (*types.Asset, bool)
	PutAsset(asset *types.Asset)
	GetAccount(id registry.ID) (*types.Account, bool)
	PutAccount(acc *types.Account)

	QueueForceSettlement(fs *types.ForceSettlement)
	PendingForceSettlements(asset registry.ID) []*types.ForceSettlement
	RemoveForceSettlement(id registry.ID)
	NextForceSettlementID() registry.ID

	// CallOrdersByAsset returns every live call order for debtAsset,
	// ascending by collateralization ratio (least-collateralized first),
	// the order §4.5 processes force settlement and black-swan detection
	// in.
	CallOrdersByAsset(debtAsset registry.ID) []*types.CallOrder
	PutCallOrder(order *types.CallOrder)
	RemoveCallOrder(id registry.ID)

	CollateralBids(asset registry.ID) []*types.CollateralBid
	QueueCollateralBid(bid *types.CollateralBid)
	RemoveCollateralBid(id registry.ID)
	NextCollateralBidID() registry.ID
}

// Engine drives force settlement, global settlement, and revival.
type Engine struct {
	state                  State
	maintenanceIntervalSec int64
	dir                    authz.Directory
	hf                     hardfork.Schedule
}

// New constructs an Engine. maintenanceIntervalSec is the cadence at
// which the per-asset force-settlement volume cap resets and revival is
// (re-)evaluated. dir and hf gate force_settle/bid_collateral the same
// way native/callorder.Engine gates call_order_update.
func New(state State, maintenanceIntervalSec int64, dir authz.Directory, hf hardfork.Schedule) *Engine {
	return &Engine{state: state, maintenanceIntervalSec: maintenanceIntervalSec, dir: dir, hf: hf}
}

// ForceSettle is the force_settle(owner, bitasset_amount) operation
// (§4.5). While the asset is not globally settled, the balance is
// escrowed into a delayed queue. Once globally settled, force_settle
// instead redeems immediately and one-for-one from the settlement fund.
func (e *Engine) ForceSettle(owner, asset registry.ID, amount types.Amount, now int64) (*types.ForceSettlement, []events.VirtualOp, error) {
	const at = "settlement.force_settle"
	if amount <= 0 {
		return nil, nil, cerrors.New(cerrors.Validation, at, "amount must be positive")
	}
	a, ok := e.state.GetAsset(asset)
	if !ok || !a.IsMarketIssued() {
		return nil, nil, cerrors.New(cerrors.Validation, at, "asset must be market-issued")
	}
	bd, ok := e.state.GetBitasset(a.BitassetID)
	if !ok {
		return nil, nil, cerrors.New(cerrors.Consistency, at, "bitasset data missing")
	}
	if bd.IsPredictionMarket && !bd.IsGloballySettled {
		return nil, nil, cerrors.New(cerrors.Lifecycle, at, "prediction markets only redeem through global settlement")
	}
	backing, ok := e.state.GetAsset(bd.BackingAsset)
	if !ok {
		return nil, nil, cerrors.New(cerrors.Consistency, at, "backing asset missing")
	}
	if err := authz.GuardBitasset(e.dir, *a, *backing, owner, e.hf, now); err != nil {
		return nil, nil, cerrors.WithOp(err, at)
	}
	ownerAcc, ok := e.state.GetAccount(owner)
	if !ok {
		return nil, nil, cerrors.New(cerrors.Validation, at, "owner account not found")
	}

	bal, err := types.Sub(at, ownerAcc.Balance(asset), amount)
	if err != nil {
		return nil, nil, err
	}
	ownerAcc.SetBalance(asset, bal)

	if bd.IsGloballySettled {
		collateral, err := redeemFromFund(bd, amount)
		if err != nil {
			ownerAcc.SetBalance(asset, ownerAcc.Balance(asset)+amount)
			return nil, nil, err
		}
		ownerAcc.SetBalance(bd.BackingAsset, ownerAcc.Balance(bd.BackingAsset)+collateral)
		e.state.PutAccount(ownerAcc)
		e.state.PutBitasset(bd)
		return nil, []events.VirtualOp{{
			Kind:            events.VirtualOpForceSettleFill,
			AffectedAccount: owner,
			Attributes:      map[string]string{"mode": "fund_redemption"},
		}}, nil
	}

	fs := &types.ForceSettlement{
		ID:             e.state.NextForceSettlementID(),
		Owner:          owner,
		Asset:          asset,
		Balance:        amount,
		SettlementDate: now + int64(bd.ForceSettlementDelaySec),
	}
	e.state.PutAccount(ownerAcc)
	e.state.QueueForceSettlement(fs)
	return fs, nil, nil
}

// redeemFromFund pays out amount of the bitasset one-for-one against
// bd.SettlementFund at bd.SettlementPrice, decrementing the fund.
func redeemFromFund(bd *types.BitassetData, amount types.Amount) (types.Amount, error) {
	const at = "settlement.redeem_from_fund"
	debtToCollateral, err := bd.SettlementPrice.Invert()
	if err != nil {
		return 0, cerrors.Wrap(cerrors.Consistency, at, err, "invalid settlement price")
	}
	collateral, err := debtToCollateral.Multiply(types.AssetAmount{Asset: bd.AssetID, Amount: amount})
	if err != nil {
		return 0, err
	}
	fund, err := types.Sub(at, bd.SettlementFund, collateral.Amount)
	if err != nil {
		return 0, cerrors.New(cerrors.InsufficientFunds, at, "settlement fund exhausted")
	}
	bd.SettlementFund = fund
	return collateral.Amount, nil
}

// ProcessMaintenance drains bd's force-settlement queue up to the
// per-interval volume cap (§4.5), executing releases against the
// least-collateralized live call orders at the current feed's
// settlement price, and separately evaluates collateral-bid revival if
// bd is globally settled. Called once per maintenance interval per
// bitasset.
func (e *Engine) ProcessMaintenance(bd *types.BitassetData, asset *types.Asset, now int64) ([]events.VirtualOp, error) {
	if bd.IsGloballySettled {
		return e.processRevival(bd, asset, now)
	}
	return e.processForceSettlementQueue(bd, asset, now)
}

func (e *Engine) processForceSettlementQueue(bd *types.BitassetData, asset *types.Asset, now int64) ([]events.VirtualOp, error) {
	const at = "settlement.process_maintenance"
	if e.maintenanceIntervalSec > 0 && now-bd.ForceSettlementIntervalStart >= e.maintenanceIntervalSec {
		bd.ForceSettlementIntervalStart = now
		bd.ForceSettledVolumeThisInterval = 0
	}

	maxVolume := types.Amount(int64(asset.Dynamic.CurrentSupply) * int64(bd.MaxForceSettlementVolume) / 1000)
	remaining := maxVolume - bd.ForceSettledVolumeThisInterval
	if remaining <= 0 {
		return nil, nil
	}

	pending := e.state.PendingForceSettlements(asset.ID)
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].SettlementDate != pending[j].SettlementDate {
			return pending[i].SettlementDate < pending[j].SettlementDate
		}
		return pending[i].ID.Less(pending[j].ID)
	})

	var virtual []events.VirtualOp
	for _, fs := range pending {
		if remaining <= 0 {
			break
		}
		if fs.SettlementDate > now {
			continue
		}
		amount := fs.Balance
		if amount > remaining {
			amount = remaining
		}
		filled, err := e.executeForceSettlement(bd, asset, fs, amount)
		if err != nil {
			return virtual, err
		}
		if filled == 0 {
			continue
		}
		remaining -= filled
		bd.ForceSettledVolumeThisInterval += filled
		fs.Balance -= filled
		virtual = append(virtual, events.VirtualOp{
			Kind:            events.VirtualOpForceSettleFill,
			AffectedAccount: fs.Owner,
			Attributes:      map[string]string{"op": at},
		})
		if fs.Balance == 0 {
			e.state.RemoveForceSettlement(fs.ID)
		}
	}
	return virtual, nil
}

// executeForceSettlement fills up to amount of fs against the
// least-collateralized live call orders at bd's current settlement
// price, paying collateral to fs.Owner and burning the matched debt. It
// returns how much of fs was actually filled (less than amount if the
// available call-order debt runs out first).
func (e *Engine) executeForceSettlement(bd *types.BitassetData, asset *types.Asset, fs *types.ForceSettlement, amount types.Amount) (types.Amount, error) {
	const at = "settlement.execute_force_settlement"
	settlementPrice := bd.MedianFeed.SettlementPrice
	if !settlementPrice.Invertible() {
		return 0, cerrors.New(cerrors.Consistency, at, "no valid settlement price")
	}
	debtToCollateral, err := settlementPrice.Invert()
	if err != nil {
		return 0, cerrors.Wrap(cerrors.Consistency, at, err, "invalid settlement price")
	}

	owner, ok := e.state.GetAccount(fs.Owner)
	if !ok {
		return 0, cerrors.New(cerrors.Consistency, at, "settlement requester account missing")
	}

	orders := e.state.CallOrdersByAsset(asset.ID)
	var filled types.Amount
	for _, order := range orders {
		if filled >= amount {
			break
		}
		take := amount - filled
		if take > order.Debt {
			take = order.Debt
		}
		if take <= 0 {
			continue
		}
		collateralOut, err := debtToCollateral.Multiply(types.AssetAmount{Asset: asset.ID, Amount: take})
		if err != nil {
			return filled, err
		}
		if collateralOut.Amount > order.Collateral {
			collateralOut.Amount = order.Collateral
		}
		order.Debt -= take
		order.Collateral -= collateralOut.Amount
		owner.SetBalance(bd.BackingAsset, owner.Balance(bd.BackingAsset)+collateralOut.Amount)

		newSupply, err := types.Sub(at, asset.Dynamic.CurrentSupply, take)
		if err != nil {
			return filled, err
		}
		asset.Dynamic.CurrentSupply = newSupply

		filled += take
		if order.Debt == 0 {
			e.state.RemoveCallOrder(order.ID)
		} else {
			e.state.PutCallOrder(order)
		}
	}
	e.state.PutAccount(owner)
	e.state.PutAsset(asset)
	return filled, nil
}

// TriggerGlobalSettlement is the black-swan/force_global_settle path of
// §4.5: every live call order for asset is converted into
// settlement_fund at settlementPrice, and the asset is marked globally
// settled so future force_settle redeems immediately from the fund. The
// asset cannot be globally settled twice.
func (e *Engine) TriggerGlobalSettlement(bd *types.BitassetData, asset *types.Asset, settlementPrice types.Price, now int64) error {
	const at = "settlement.trigger_global_settlement"
	if bd.IsGloballySettled {
		return cerrors.New(cerrors.Lifecycle, at, "asset already globally settled")
	}
	if !settlementPrice.Invertible() {
		return cerrors.New(cerrors.Validation, at, "settlement price must be invertible")
	}

	orders := e.state.CallOrdersByAsset(asset.ID)
	var fund types.Amount
	for _, order := range orders {
		fund += order.Collateral
		e.state.RemoveCallOrder(order.ID)
	}

	bd.IsGloballySettled = true
	bd.SettlementPrice = settlementPrice
	bd.SettlementFund = fund
	bd.ForceSettlementIntervalStart = now
	e.state.PutBitasset(bd)

	slog.Warn("settlement: global settlement triggered",
		slog.String("asset", asset.ID.String()),
		slog.Int("orders_closed", len(orders)),
		slog.Int64("settlement_fund", int64(fund)))
	return nil
}

// BidCollateral is the bid_collateral(bidder, collateral_offered,
// debt_covered) operation (§4.5): only admissible while asset is
// globally settled. The bidder's collateral is escrowed immediately.
func (e *Engine) BidCollateral(bidder, asset registry.ID, collateralOffered, debtCovered types.Amount, now int64) (*types.CollateralBid, error) {
	const at = "settlement.bid_collateral"
	if collateralOffered <= 0 || debtCovered <= 0 {
		return nil, cerrors.New(cerrors.Validation, at, "collateral_offered and debt_covered must be positive")
	}
	a, ok := e.state.GetAsset(asset)
	if !ok || !a.IsMarketIssued() {
		return nil, cerrors.New(cerrors.Validation, at, "asset must be market-issued")
	}
	bd, ok := e.state.GetBitasset(a.BitassetID)
	if !ok {
		return nil, cerrors.New(cerrors.Consistency, at, "bitasset data missing")
	}
	if !bd.IsGloballySettled {
		return nil, cerrors.New(cerrors.Lifecycle, at, "collateral bids only accepted while globally settled")
	}
	backing, ok := e.state.GetAsset(bd.BackingAsset)
	if !ok {
		return nil, cerrors.New(cerrors.Consistency, at, "backing asset missing")
	}
	if err := authz.GuardBitasset(e.dir, *a, *backing, bidder, e.hf, now); err != nil {
		return nil, cerrors.WithOp(err, at)
	}
	bidderAcc, ok := e.state.GetAccount(bidder)
	if !ok {
		return nil, cerrors.New(cerrors.Validation, at, "bidder account not found")
	}
	bal, err := types.Sub(at, bidderAcc.Balance(bd.BackingAsset), collateralOffered)
	if err != nil {
		return nil, err
	}
	bidderAcc.SetBalance(bd.BackingAsset, bal)
	e.state.PutAccount(bidderAcc)

	bid := &types.CollateralBid{
		ID:                e.state.NextCollateralBidID(),
		Bidder:            bidder,
		Asset:             asset,
		CollateralOffered: collateralOffered,
		DebtCovered:       debtCovered,
	}
	e.state.QueueCollateralBid(bid)
	return bid, nil
}

// processRevival evaluates §4.5's revival condition: bids ranked
// most-collateralized (highest collateral/debt) first, accumulated until
// their combined debt_covered reaches the asset's outstanding supply,
// provided none of the bids consumed to get there is priced worse than
// settlement_price * MCR / 1000. If met, participating bids become call
// orders, the settlement fund is distributed to them pro-rata by
// collateral contributed, and the asset returns to normal operation.
func (e *Engine) processRevival(bd *types.BitassetData, asset *types.Asset, now int64) ([]events.VirtualOp, error) {
	const at = "settlement.process_revival"
	threshold := types.MaintenanceCollateralization(bd.SettlementPrice, bd.MedianFeed.MCR)

	// Bids are ranked collateral_offered/debt_covered descending: the
	// most-collateralized (safest) bid first.
	bids := e.state.CollateralBids(asset.ID)
	sort.Slice(bids, func(i, j int) bool {
		cmp, err := types.Compare(bids[i].InvSwanPrice(bd.BackingAsset), bids[j].InvSwanPrice(bd.BackingAsset))
		if err != nil || cmp != 0 {
			return cmp > 0
		}
		return bids[i].ID.Less(bids[j].ID)
	})

	outstanding := asset.Dynamic.CurrentSupply
	var covered types.Amount
	var participants []*types.CollateralBid
	for _, bid := range bids {
		price := bid.InvSwanPrice(bd.BackingAsset)
		cmp, err := types.Compare(price, threshold)
		if err != nil {
			return nil, cerrors.Wrap(cerrors.Consistency, at, err, "cannot compare bid price to revival threshold")
		}
		if cmp < 0 {
			// Bids are sorted best-first; once one prices worse than
			// settlement_price*MCR/1000, none of the rest qualify either.
			break
		}
		participants = append(participants, bid)
		covered += bid.DebtCovered
		if covered >= outstanding {
			break
		}
	}
	if covered < outstanding || len(participants) == 0 {
		return nil, nil
	}

	var totalCollateral types.Amount
	for _, bid := range participants {
		totalCollateral += bid.CollateralOffered
	}

	fund := bd.SettlementFund
	var virtual []events.VirtualOp
	var distributed types.Amount
	for i, bid := range participants {
		debtCovered := bid.DebtCovered
		collateralUsed := bid.CollateralOffered
		if i == len(participants)-1 && covered > outstanding {
			// Trim the last (marginal) bid down to exactly what's needed
			// to cover outstanding supply, refunding the unused
			// collateral/debt share proportionally.
			debtCovered -= covered - outstanding
			collateralUsed = types.Amount(int64(bid.CollateralOffered) * int64(debtCovered) / int64(bid.DebtCovered))
		}

		var share types.Amount
		if i == len(participants)-1 {
			share = fund - distributed
		} else {
			share = types.Amount(int64(fund) * int64(bid.CollateralOffered) / int64(totalCollateral))
		}
		distributed += share

		order := &types.CallOrder{
			ID:              registry.ID{Space: registry.SpaceImplementation, Type: registry.TypeCallOrder, Instance: bid.ID.Instance},
			Owner:           bid.Bidder,
			DebtAsset:       asset.ID,
			CollateralAsset: bd.BackingAsset,
			Collateral:      collateralUsed + share,
			Debt:            debtCovered,
		}
		e.state.PutCallOrder(order)
		e.state.RemoveCollateralBid(bid.ID)

		if refund := bid.CollateralOffered - collateralUsed; refund > 0 {
			if bidderAcc, ok := e.state.GetAccount(bid.Bidder); ok {
				bidderAcc.SetBalance(bd.BackingAsset, bidderAcc.Balance(bd.BackingAsset)+refund)
				e.state.PutAccount(bidderAcc)
			}
		}

		virtual = append(virtual, events.VirtualOp{
			Kind:            events.VirtualOpCollateralRevival,
			AffectedAccount: bid.Bidder,
			AffectedOrder:   order.ID,
		})
	}

	bd.IsGloballySettled = false
	bd.SettlementFund = 0
	bd.SettlementPrice = types.Price{}
	e.state.PutBitasset(bd)

	slog.Info("settlement: collateral bid revival completed",
		slog.String("asset", asset.ID.String()),
		slog.Int("participants", len(participants)))
	return virtual, nil
}
