package driver

import (
	"sync"

	"github.com/google/uuid"

	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/events"
	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
	"github.com/litepresence/bitshares-core/native/asset"
	"github.com/litepresence/bitshares-core/native/authz"
	"github.com/litepresence/bitshares-core/native/callorder"
	"github.com/litepresence/bitshares-core/native/common"
	"github.com/litepresence/bitshares-core/native/orderbook"
	"github.com/litepresence/bitshares-core/native/settlement"
	"github.com/litepresence/bitshares-core/native/vesting"
	"github.com/litepresence/bitshares-core/observability/logging"
)

// settableDirectory is the subset of authz.Directory implementations
// (authz.MapDirectory, in this tree) that also record classifications,
// the write side account_whitelist needs.
type settableDirectory interface {
	authz.Directory
	Set(authority, account registry.ID, status authz.Status)
}

// Driver dispatches operations to the per-kind evaluators and assembles
// their effects into a Result, standing in for the teacher's removed
// core/node.go per-kind routing table: each native package keeps its own
// Engine, and Driver only chooses which one an Operation belongs to.
type Driver struct {
	state State
	book  *orderbook.Book
	dir   authz.Directory
	hf    hardfork.Schedule

	callOrders  *callorder.Engine
	settlements *settlement.Engine
	vestings    *vesting.Engine
	assets      *asset.Engine

	pause      common.PauseView
	quotaStore common.Store
	issueQuota common.Quota
}

// logOnce configures the process-wide structured logger the first time a
// Driver is constructed, mirroring the teacher's cmd/nhb/main.go
// single-call-site setup: a driver is this module's composition root, so
// it plays the role that a node's main() plays there.
var logOnce sync.Once

// New wires a Driver over state, a shared order book, an authorization
// directory, and a hardfork schedule. maintenanceIntervalSec is the
// cadence ProcessMaintenance and the force-settlement volume cap use.
func New(state State, book *orderbook.Book, dir authz.Directory, hf hardfork.Schedule, maintenanceIntervalSec int64) *Driver {
	logOnce.Do(func() { logging.Setup("bitshares-core", "") })
	return &Driver{
		state:       state,
		book:        book,
		dir:         dir,
		hf:          hf,
		callOrders:  callorder.New(state, dir, hf),
		settlements: settlement.New(state, maintenanceIntervalSec, dir, hf),
		vestings:    vesting.New(state),
		assets:      asset.New(state, dir, hf),
	}
}

// SetPauseView installs an emergency per-module pause gate, checked
// before every operation is dispatched (the breaker rail the teacher's
// native/common.Guard already provides, generalized from a single
// "module" string to the four coarse module names this ledger
// dispatches operations into). A nil view (the default) never pauses.
func (d *Driver) SetPauseView(p common.PauseView) { d.pause = p }

// SetIssuanceQuota installs a per-issuer, per-epoch cap on asset_issue
// volume, enforced via native/common's epoch-reset-counter technique
// keyed by the issuer's registry id. A zero Quota (the default) disables
// the cap.
func (d *Driver) SetIssuanceQuota(store common.Store, q common.Quota) {
	d.quotaStore = store
	d.issueQuota = q
}

// moduleForOp classifies an Operation into the coarse module name the
// pause gate and future per-module breakers key on.
func moduleForOp(op Operation) string {
	switch op.(type) {
	case Transfer, AccountWhitelist:
		return "accounts"
	case LimitOrderCreate, LimitOrderCancel, CallOrderUpdate, BidCollateral:
		return "trading"
	case AssetCreate, AssetUpdate, AssetUpdateBitasset, AssetUpdateIssuer,
		AssetPublishFeed, AssetUpdateFeedProducers, AssetSettle, AssetGlobalSettle,
		AssetIssue, AssetReserve, AssetFundFeePool:
		return "assets"
	case VestingBalanceCreate, VestingBalanceWithdraw:
		return "vesting"
	default:
		return "unknown"
	}
}

// checkIssuanceQuota enforces the installed per-issuer asset_issue cap,
// epoched by now/EpochSeconds. A nil store or zero quota is a no-op.
func (d *Driver) checkIssuanceQuota(o AssetIssue, now int64) error {
	if d.quotaStore == nil || d.issueQuota.MaxVolumePerEpoch == 0 || d.issueQuota.EpochSeconds == 0 {
		return nil
	}
	epoch := uint64(now) / uint64(d.issueQuota.EpochSeconds)
	addr := []byte(o.ActingIssuer.String())
	if _, err := common.Apply(d.quotaStore, "asset_issue", epoch, addr, d.issueQuota, 1, uint64(o.Amount)); err != nil {
		return cerrors.Wrap(cerrors.Lifecycle, "driver.asset_issue", err, "issuance quota exceeded")
	}
	return nil
}

// feeRate resolves an orderbook.FeeRate from an asset's configured
// market_fee_percent.
func (d *Driver) feeRate(assetID registry.ID) uint32 {
	a, ok := d.state.GetAsset(assetID)
	if !ok {
		return 0
	}
	return a.Options.MarketFeePerMille
}

// applyFillLeg credits a fill's net proceeds to the account that earned
// them and accrues its fee into the asset's Dynamic.AccumulatedFees; a
// call order's leg carries ReceivedGross of zero (its collateral/debt
// were mutated on the order itself, not an account balance) so this is
// a no-op for that side.
func (d *Driver) applyFillLeg(leg orderbook.FillLeg) {
	if leg.ReceivedNet.Amount > 0 {
		acc, ok := d.state.GetAccount(leg.Account)
		if ok {
			acc.SetBalance(leg.ReceivedNet.Asset, acc.Balance(leg.ReceivedNet.Asset)+leg.ReceivedNet.Amount)
			d.state.PutAccount(acc)
		}
	}
	if leg.Fee > 0 {
		if a, ok := d.state.GetAsset(leg.ReceivedGross.Asset); ok {
			a.Dynamic.AccumulatedFees += leg.Fee
			d.state.PutAsset(a)
		}
	}
}

// fillVirtualOps converts matched fill legs into the deterministic
// virtual-operation record §4.6 requires for every trade execution.
func fillVirtualOps(kind string, legs ...orderbook.FillLeg) []events.VirtualOp {
	ops := make([]events.VirtualOp, 0, len(legs))
	for _, leg := range legs {
		ops = append(ops, events.VirtualOp{
			Kind:            kind,
			AffectedAccount: leg.Account,
			AffectedOrder:   leg.OrderID,
		})
	}
	return ops
}

// checkMarginCalls walks debtAsset's live call orders (least-collateralized
// first, per settlement.State.CallOrdersByAsset's contract) and executes
// margin calls against the resting book while they remain callable and a
// counter-order crosses the margin-call floor (§4.3 rule 2, §4.4 rules
// 2-3). It is the driver's responsibility to invoke this after any
// operation that can move a bitasset's feed, a call order's
// collateralization, or the resting book a margin call fills against —
// asset_publish_feed, call_order_update, and limit_order_create.
func (d *Driver) checkMarginCalls(debtAsset registry.ID) ([]events.VirtualOp, error) {
	a, ok := d.state.GetAsset(debtAsset)
	if !ok || !a.IsMarketIssued() {
		return nil, nil
	}
	bd, ok := d.state.GetBitasset(a.BitassetID)
	if !ok || !bd.HasValidFeed {
		return nil, nil
	}
	var virtual []events.VirtualOp
	for _, order := range d.state.CallOrdersByAsset(debtAsset) {
		for callorder.IsMarginCallable(bd, *order) {
			counter, ok := d.book.Best(debtAsset, bd.BackingAsset)
			if !ok {
				break
			}
			callLeg, counterLeg, err := callorder.ExecuteMarginCall(bd, order, counter, d.feeRate)
			if err != nil {
				return virtual, err
			}
			if callLeg == nil {
				break
			}
			d.applyFillLeg(*callLeg)
			d.applyFillLeg(*counterLeg)
			if counter.ForSale == 0 {
				d.book.Remove(counter.ID)
			}
			virtual = append(virtual, events.VirtualOp{
				Kind:            events.VirtualOpMarginCall,
				AffectedAccount: order.Owner,
				AffectedOrder:   order.ID,
			})
			if order.Debt == 0 {
				d.state.RemoveCallOrder(order.ID)
				break
			}
			d.state.PutCallOrder(order)
		}
	}
	return virtual, nil
}

// Apply evaluates one operation and returns its Result, tagged with a
// fresh trace id for cross-referencing logs and downstream consumers.
func (d *Driver) Apply(op Operation, now int64) (*Result, error) {
	traceID := uuid.NewString()
	primary, virtual, changed, err := d.dispatch(op, now)
	if err != nil {
		return nil, cerrors.WithOp(err, "driver.apply:"+op.OpKind())
	}
	return &Result{TraceID: traceID, Primary: primary, Virtual: virtual, Changed: changed}, nil
}

// ApplyBlock evaluates ops strictly sequentially (§5), collecting
// successful Results and tagged Rejections without ever recovering from
// an evaluator error: a rejected operation simply contributes no
// mutation and is recorded, and the block moves on to the next one.
func (d *Driver) ApplyBlock(ops []Operation, now int64) *BlockResult {
	block := &BlockResult{}
	for _, op := range ops {
		res, err := d.Apply(op, now)
		if err != nil {
			rej := &Rejection{OpKind: op.OpKind(), Message: err.Error()}
			if kind, ok := cerrors.KindOf(err); ok {
				rej.Kind = kind.String()
			}
			if kinded, ok := err.(*cerrors.Error); ok {
				rej.Ops = kinded.Ops
			}
			block.Rejections = append(block.Rejections, rej)
			continue
		}
		block.Results = append(block.Results, res)
	}
	return block
}

func (d *Driver) dispatch(op Operation, now int64) (events.Event, []events.Event, []registry.ID, error) {
	if err := common.Guard(d.pause, moduleForOp(op)); err != nil {
		return nil, nil, nil, cerrors.Wrap(cerrors.Lifecycle, "driver.dispatch", err, "module paused")
	}
	switch o := op.(type) {

	case Transfer:
		return d.applyTransfer(o)

	case LimitOrderCreate:
		return d.applyLimitOrderCreate(o)

	case LimitOrderCancel:
		return d.applyLimitOrderCancel(o)

	case CallOrderUpdate:
		return d.applyCallOrderUpdate(o)

	case BidCollateral:
		bid, err := d.settlements.BidCollateral(o.Bidder, o.Asset, o.CollateralOffered, o.DebtCovered, now)
		if err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "collateral_bid", Object: bid}, nil, []registry.ID{bid.ID}, nil

	case AssetCreate:
		a, err := d.assets.Create(o.Issuer, o.Symbol, o.Precision, o.Options, o.BitassetParams)
		if err != nil {
			return nil, nil, nil, err
		}
		changed := []registry.ID{a.ID}
		if a.BitassetID.Valid() {
			changed = append(changed, a.BitassetID)
		}
		return OpResult{Kind: "asset", Object: a}, nil, changed, nil

	case AssetUpdate:
		a, err := d.assets.Update(o.ActingIssuer, o.Asset, o.Options)
		if err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "asset", Object: a}, nil, []registry.ID{a.ID}, nil

	case AssetUpdateBitasset:
		bd, err := d.assets.UpdateBitasset(o.ActingIssuer, o.Asset, o.Params)
		if err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "bitasset_data", Object: bd}, nil, []registry.ID{bd.ID}, nil

	case AssetUpdateIssuer:
		a, err := d.assets.UpdateIssuer(o.ActingIssuer, o.Asset, o.NewIssuer)
		if err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "asset", Object: a}, nil, []registry.ID{a.ID}, nil

	case AssetPublishFeed:
		bd, err := d.assets.PublishFeed(o.Publisher, o.Asset, o.Feed, now, now)
		if err != nil {
			return nil, nil, nil, err
		}
		virtual, err := d.checkMarginCalls(o.Asset)
		if err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "bitasset_data", Object: bd}, virtualEvents(virtual), []registry.ID{bd.ID}, nil

	case AssetUpdateFeedProducers:
		bd, err := d.assets.UpdateFeedProducers(o.ActingIssuer, o.Asset, o.Producers)
		if err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "bitasset_data", Object: bd}, nil, []registry.ID{bd.ID}, nil

	case AssetSettle:
		fs, virtual, err := d.settlements.ForceSettle(o.Owner, o.Asset, o.Amount, now)
		if err != nil {
			return nil, nil, nil, err
		}
		changed := []registry.ID{}
		if fs != nil {
			changed = append(changed, fs.ID)
		}
		return OpResult{Kind: "force_settlement", Object: fs}, virtualEvents(virtual), changed, nil

	case AssetGlobalSettle:
		a, ok := d.state.GetAsset(o.Asset)
		if !ok || !a.IsMarketIssued() {
			return nil, nil, nil, cerrors.New(cerrors.Validation, "driver.asset_global_settle", "asset must be market-issued")
		}
		bd, ok := d.state.GetBitasset(a.BitassetID)
		if !ok {
			return nil, nil, nil, cerrors.New(cerrors.Consistency, "driver.asset_global_settle", "bitasset data missing")
		}
		if err := d.settlements.TriggerGlobalSettlement(bd, a, o.SettlementPrice, now); err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "bitasset_data", Object: bd}, nil, []registry.ID{bd.ID}, nil

	case AssetIssue:
		if err := d.checkIssuanceQuota(o, now); err != nil {
			return nil, nil, nil, err
		}
		if err := d.assets.Issue(o.ActingIssuer, o.Asset, o.To, o.Amount); err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "asset_issue", Object: o}, nil, []registry.ID{o.Asset, o.To}, nil

	case AssetReserve:
		if err := d.assets.Reserve(o.Owner, o.Asset, o.Amount); err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "asset_reserve", Object: o}, nil, []registry.ID{o.Asset, o.Owner}, nil

	case AssetFundFeePool:
		if err := d.assets.FundFeePool(o.Funder, o.Asset, o.CoreAsset, o.Amount); err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "asset_fund_fee_pool", Object: o}, nil, []registry.ID{o.Asset}, nil

	case VestingBalanceCreate:
		return d.applyVestingBalanceCreate(o, now)

	case VestingBalanceWithdraw:
		vb, err := d.vestings.Withdraw(o.VestingBalance, o.Amount, now)
		if err != nil {
			return nil, nil, nil, err
		}
		return OpResult{Kind: "vesting_balance", Object: vb}, nil, []registry.ID{vb.ID}, nil

	case AccountWhitelist:
		dir, ok := d.dir.(settableDirectory)
		if !ok {
			return nil, nil, nil, cerrors.New(cerrors.Consistency, "driver.account_whitelist", "authorization directory does not support writes")
		}
		dir.Set(o.Authority, o.Account, o.Status)
		return OpResult{Kind: "account_whitelist", Object: o}, nil, []registry.ID{o.Account}, nil

	default:
		return nil, nil, nil, cerrors.Newf(cerrors.Validation, "driver.dispatch", "unknown operation kind %q", op.OpKind())
	}
}

// ProcessMaintenance runs §4.5's per-maintenance-interval force-settlement
// drain and collateral-bid revival for a single market-issued asset, then
// re-checks margin calls since a force-settlement fill can move a call
// order's collateralization the same way a fill against the book does.
// It is not dispatched through Apply/ApplyBlock: a transaction carries
// operations, not maintenance ticks, so callers invoke this directly once
// per maintenance interval per bitasset.
func (d *Driver) ProcessMaintenance(assetID registry.ID, now int64) (*Result, error) {
	const at = "driver.process_maintenance"
	a, ok := d.state.GetAsset(assetID)
	if !ok || !a.IsMarketIssued() {
		return nil, cerrors.New(cerrors.Validation, at, "asset must be market-issued")
	}
	bd, ok := d.state.GetBitasset(a.BitassetID)
	if !ok {
		return nil, cerrors.New(cerrors.Consistency, at, "bitasset data missing")
	}
	virtual, err := d.settlements.ProcessMaintenance(bd, a, now)
	if err != nil {
		return nil, cerrors.WithOp(err, at)
	}
	marginVirtual, err := d.checkMarginCalls(assetID)
	if err != nil {
		return nil, cerrors.WithOp(err, at)
	}
	virtual = append(virtual, marginVirtual...)
	return &Result{
		TraceID: uuid.NewString(),
		Primary: OpResult{Kind: "process_maintenance", Object: bd},
		Virtual: virtualEvents(events.Ordering(virtual)),
		Changed: []registry.ID{bd.ID, a.ID},
	}, nil
}

func virtualEvents(ops []events.VirtualOp) []events.Event {
	if len(ops) == 0 {
		return nil
	}
	out := make([]events.Event, len(ops))
	for i, v := range ops {
		out[i] = v
	}
	return out
}

func (d *Driver) applyTransfer(o Transfer) (events.Event, []events.Event, []registry.ID, error) {
	const at = "driver.transfer"
	a, ok := d.state.GetAsset(o.Asset)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if err := authz.Guard(d.dir, *a, o.To); err != nil {
		return nil, nil, nil, cerrors.WithOp(err, at)
	}
	from, ok := d.state.GetAccount(o.From)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Validation, at, "sender account not found")
	}
	to, ok := d.state.GetAccount(o.To)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Validation, at, "recipient account not found")
	}
	bal, err := types.Sub(at, from.Balance(o.Asset), o.Amount)
	if err != nil {
		return nil, nil, nil, err
	}
	from.SetBalance(o.Asset, bal)
	to.SetBalance(o.Asset, to.Balance(o.Asset)+o.Amount)
	d.state.PutAccount(from)
	d.state.PutAccount(to)
	return OpResult{Kind: "transfer", Object: o}, nil, []registry.ID{o.From, o.To}, nil
}

func (d *Driver) applyLimitOrderCreate(o LimitOrderCreate) (events.Event, []events.Event, []registry.ID, error) {
	const at = "driver.limit_order_create"
	order := o.Order
	seller, ok := d.state.GetAccount(order.Seller)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Validation, at, "seller account not found")
	}
	bal, err := types.Sub(at, seller.Balance(order.SellAsset()), order.ForSale)
	if err != nil {
		return nil, nil, nil, err
	}
	seller.SetBalance(order.SellAsset(), bal)
	d.state.PutAccount(seller)

	legsOrder, legsCounter, err := d.book.SubmitLimitOrder(order, d.feeRate)
	if err != nil {
		seller.SetBalance(order.SellAsset(), seller.Balance(order.SellAsset())+order.ForSale)
		d.state.PutAccount(seller)
		return nil, nil, nil, err
	}
	for _, leg := range legsOrder {
		d.applyFillLeg(leg)
	}
	for _, leg := range legsCounter {
		d.applyFillLeg(leg)
	}
	virtual := append(fillVirtualOps(events.VirtualOpFill, legsOrder...), fillVirtualOps(events.VirtualOpFill, legsCounter...)...)

	// A fresh limit order is itself a matching trigger (§4.4 rule 1): a
	// fill against it can move the counter side's settlement-derived
	// collateralization the same way a call_order_update or feed publish
	// does, so any call order now in margin-call territory against this
	// pair must be checked immediately rather than waiting for the next
	// maintenance interval.
	marginVirtual, err := d.checkMarginCalls(order.ReceiveAsset())
	if err != nil {
		return nil, nil, nil, err
	}
	marginVirtual2, err := d.checkMarginCalls(order.SellAsset())
	if err != nil {
		return nil, nil, nil, err
	}
	virtual = append(virtual, marginVirtual...)
	virtual = append(virtual, marginVirtual2...)

	changed := []registry.ID{order.Seller}
	if order.ForSale == 0 {
		changed = []registry.ID{order.ID}
	}
	return OpResult{Kind: "limit_order", Object: order}, virtualEvents(events.Ordering(virtual)), changed, nil
}

func (d *Driver) applyLimitOrderCancel(o LimitOrderCancel) (events.Event, []events.Event, []registry.ID, error) {
	const at = "driver.limit_order_cancel"
	order, ok := d.book.Get(o.OrderID)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Validation, at, "order not found")
	}
	if order.Seller != o.Owner {
		return nil, nil, nil, cerrors.New(cerrors.Authorization, at, "only the seller may cancel this order")
	}
	escrow := orderbook.CancelReturnsEscrow(order)
	if _, err := d.book.Remove(order.ID); err != nil {
		return nil, nil, nil, err
	}
	seller, ok := d.state.GetAccount(o.Owner)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Consistency, at, "seller account not found")
	}
	seller.SetBalance(escrow.Asset, seller.Balance(escrow.Asset)+escrow.Amount)
	d.state.PutAccount(seller)
	return OpResult{Kind: "limit_order_cancel", Object: order}, nil, []registry.ID{o.Owner}, nil
}

func (d *Driver) applyCallOrderUpdate(o CallOrderUpdate) (events.Event, []events.Event, []registry.ID, error) {
	order, virtual, err := d.callOrders.Apply(o.Update)
	if err != nil {
		return nil, nil, nil, err
	}
	marginVirtual, err := d.checkMarginCalls(o.DebtAsset)
	if err != nil {
		return nil, nil, nil, err
	}
	virtual = append(virtual, marginVirtual...)
	changed := []registry.ID{o.Owner}
	return OpResult{Kind: "call_order", Object: order}, virtualEvents(events.Ordering(virtual)), changed, nil
}

func (d *Driver) applyVestingBalanceCreate(o VestingBalanceCreate, now int64) (events.Event, []events.Event, []registry.ID, error) {
	const at = "driver.vesting_balance_create"
	asset, ok := d.state.GetAsset(o.Asset)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if err := authz.Guard(d.dir, *asset, o.Owner); err != nil {
		return nil, nil, nil, cerrors.WithOp(err, at)
	}
	owner, ok := d.state.GetAccount(o.Owner)
	if !ok {
		return nil, nil, nil, cerrors.New(cerrors.Validation, at, "owner account not found")
	}
	bal, err := types.Sub(at, owner.Balance(o.Asset), o.Balance)
	if err != nil {
		return nil, nil, nil, err
	}
	vb, err := d.vestings.Create(o.Owner, o.Asset, o.Balance, o.VestingSeconds, now)
	if err != nil {
		return nil, nil, nil, err
	}
	owner.SetBalance(o.Asset, bal)
	d.state.PutAccount(owner)
	return OpResult{Kind: "vesting_balance", Object: vb}, nil, []registry.ID{vb.ID}, nil
}
