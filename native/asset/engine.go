// Package asset implements the asset lifecycle operations of §6 (create,
// update, bitasset parameter update, issuer transfer, feed publication,
// feed-producer set update, issue, reserve, fee-pool funding), grounded
// on native/lending.Engine's loadAccount/persistAccount balance-mutation
// shape, generalized from a single NHB/ZNHB pair to arbitrary registry
// assets.
package asset

import (
	"github.com/litepresence/bitshares-core/core/hardfork"
	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
	"github.com/litepresence/bitshares-core/native/authz"
	"github.com/litepresence/bitshares-core/native/feed"
)

// State is the persistence surface the engine operates through.
type State interface {
	NextAssetID() registry.ID
	GetAsset(id registry.ID) (*types.Asset, bool)
	PutAsset(a *types.Asset)

	NextBitassetID() registry.ID
	GetBitasset(id registry.ID) (*types.BitassetData, bool)
	PutBitasset(bd *types.BitassetData)

	GetAccount(id registry.ID) (*types.Account, bool)
	PutAccount(acc *types.Account)
}

// Engine evaluates the asset lifecycle operations.
type Engine struct {
	state State
	dir   authz.Directory
	hf    hardfork.Schedule
}

// New constructs an Engine bound to state and an authorization directory.
func New(state State, dir authz.Directory, hf hardfork.Schedule) *Engine {
	return &Engine{state: state, dir: dir, hf: hf}
}

// BitassetParams carries the market-issued-asset parameters supplied at
// creation or by asset_update_bitasset.
type BitassetParams struct {
	BackingAsset                 registry.ID
	FeedLifetimeSec              uint32
	ForceSettlementDelaySec      uint32
	ForceSettlementOfferPermille uint32
	MaxForceSettlementVolume     uint32
	MarginCallFeeRatio           uint32
	MinimumFeeds                 uint32
	IsPredictionMarket           bool
}

// Create is the asset_create(issuer, symbol, precision, options,
// bitasset_params?) operation. When bitassetParams is non-nil the asset
// is market-issued; a prediction market (IsPredictionMarket) requires
// FlagGlobalSettle among the issuer's permissions (§6).
func (e *Engine) Create(issuer registry.ID, symbol string, precision uint8, options types.AssetOptions, bitassetParams *BitassetParams) (*types.Asset, error) {
	const at = "asset.create"
	if symbol == "" {
		return nil, cerrors.New(cerrors.Validation, at, "symbol must not be empty")
	}
	if options.MaxSupply <= 0 {
		return nil, cerrors.New(cerrors.Validation, at, "max_supply must be positive")
	}

	a := &types.Asset{
		ID:        e.state.NextAssetID(),
		Symbol:    symbol,
		Precision: precision,
		Issuer:    issuer,
		Options:   options,
	}

	if bitassetParams != nil {
		if bitassetParams.IsPredictionMarket && options.IssuerPermissions&uint32(types.FlagGlobalSettle) == 0 {
			return nil, cerrors.New(cerrors.Validation, at, "prediction market requires global_settle permission")
		}
		if !bitassetParams.IsPredictionMarket &&
			options.Flags&uint32(types.FlagDisableForceSettle) != 0 &&
			options.Flags&uint32(types.FlagGlobalSettle) != 0 {
			return nil, cerrors.New(cerrors.Validation, at, "disable_force_settle and global_settle may not both be set on a non-prediction-market bitasset")
		}
		if _, ok := e.state.GetAsset(bitassetParams.BackingAsset); !ok {
			return nil, cerrors.New(cerrors.Validation, at, "backing asset not found")
		}
		bd := &types.BitassetData{
			ID:                           e.state.NextBitassetID(),
			AssetID:                      a.ID,
			BackingAsset:                 bitassetParams.BackingAsset,
			FeedLifetimeSec:              bitassetParams.FeedLifetimeSec,
			ForceSettlementDelaySec:      bitassetParams.ForceSettlementDelaySec,
			ForceSettlementOfferPermille: bitassetParams.ForceSettlementOfferPermille,
			MaxForceSettlementVolume:     bitassetParams.MaxForceSettlementVolume,
			MarginCallFeeRatio:           bitassetParams.MarginCallFeeRatio,
			MinimumFeeds:                 bitassetParams.MinimumFeeds,
			IsPredictionMarket:           bitassetParams.IsPredictionMarket,
			Feeds:                        make(map[registry.ID]types.PublishedFeed),
		}
		e.state.PutBitasset(bd)
		a.BitassetID = bd.ID
	}

	e.state.PutAsset(a)
	return a, nil
}

// Update is the asset_update(issuer, asset, new_options) operation: only
// the current issuer may reconfigure an asset's options.
func (e *Engine) Update(actingIssuer, assetID registry.ID, options types.AssetOptions) (*types.Asset, error) {
	const at = "asset.update"
	a, ok := e.state.GetAsset(assetID)
	if !ok {
		return nil, cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if a.Issuer != actingIssuer {
		return nil, cerrors.New(cerrors.Authorization, at, "only the issuer may update asset options")
	}
	if options.MaxSupply < a.Dynamic.CurrentSupply {
		return nil, cerrors.New(cerrors.Consistency, at, "max_supply may not fall below current_supply")
	}
	a.Options = options
	e.state.PutAsset(a)
	return a, nil
}

// UpdateBitasset is the asset_update_bitasset(issuer, asset, new_params)
// operation: rejects changes to knobs the issuer has locked via
// FlagDisableMCRUpdate/FlagDisableICRUpdate/FlagDisableMSSRUpdate. MCR,
// MSSR, ICR themselves are feed-derived (carried per-publisher on
// BitassetData.Feeds, not here); this updates the structural parameters
// (feed lifetime, settlement delay/offer/volume cap, minimum feeds,
// margin-call fee ratio).
func (e *Engine) UpdateBitasset(actingIssuer, assetID registry.ID, params BitassetParams) (*types.BitassetData, error) {
	const at = "asset.update_bitasset"
	a, ok := e.state.GetAsset(assetID)
	if !ok {
		return nil, cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if a.Issuer != actingIssuer {
		return nil, cerrors.New(cerrors.Authorization, at, "only the issuer may update bitasset parameters")
	}
	if !a.IsMarketIssued() {
		return nil, cerrors.New(cerrors.Validation, at, "asset is not market-issued")
	}
	bd, ok := e.state.GetBitasset(a.BitassetID)
	if !ok {
		return nil, cerrors.New(cerrors.Consistency, at, "bitasset data missing")
	}
	bd.FeedLifetimeSec = params.FeedLifetimeSec
	bd.ForceSettlementDelaySec = params.ForceSettlementDelaySec
	bd.ForceSettlementOfferPermille = params.ForceSettlementOfferPermille
	bd.MaxForceSettlementVolume = params.MaxForceSettlementVolume
	bd.MarginCallFeeRatio = params.MarginCallFeeRatio
	bd.MinimumFeeds = params.MinimumFeeds
	e.state.PutBitasset(bd)
	return bd, nil
}

// UpdateIssuer is the asset_update_issuer(asset, acting_issuer, new_issuer)
// operation.
func (e *Engine) UpdateIssuer(actingIssuer, assetID, newIssuer registry.ID) (*types.Asset, error) {
	const at = "asset.update_issuer"
	a, ok := e.state.GetAsset(assetID)
	if !ok {
		return nil, cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if a.Issuer != actingIssuer {
		return nil, cerrors.New(cerrors.Authorization, at, "only the issuer may transfer issuance rights")
	}
	a.Issuer = newIssuer
	e.state.PutAsset(a)
	return a, nil
}

// UpdateFeedProducers is the asset_update_feed_producers(issuer, asset,
// producers) operation.
func (e *Engine) UpdateFeedProducers(actingIssuer, assetID registry.ID, producers []registry.ID) (*types.BitassetData, error) {
	const at = "asset.update_feed_producers"
	a, ok := e.state.GetAsset(assetID)
	if !ok {
		return nil, cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if a.Issuer != actingIssuer {
		return nil, cerrors.New(cerrors.Authorization, at, "only the issuer may update feed producers")
	}
	if !a.IsMarketIssued() {
		return nil, cerrors.New(cerrors.Validation, at, "asset is not market-issued")
	}
	bd, ok := e.state.GetBitasset(a.BitassetID)
	if !ok {
		return nil, cerrors.New(cerrors.Consistency, at, "bitasset data missing")
	}
	bd.FeedProducers = producers
	e.state.PutBitasset(bd)
	return bd, nil
}

// PublishFeed is the asset_publish_feed(publisher, asset, feed) operation
// (§4.2, §6): publisher must be a registered feed producer or the issuer;
// ICR may be set only once the ICR hardfork is active. Re-aggregates the
// median feed immediately after recording the publication.
func (e *Engine) PublishFeed(publisher, assetID registry.ID, f types.Feed, now int64, blockTime int64) (*types.BitassetData, error) {
	const at = "asset.publish_feed"
	a, ok := e.state.GetAsset(assetID)
	if !ok || !a.IsMarketIssued() {
		return nil, cerrors.New(cerrors.Validation, at, "asset is not market-issued")
	}
	bd, ok := e.state.GetBitasset(a.BitassetID)
	if !ok {
		return nil, cerrors.New(cerrors.Consistency, at, "bitasset data missing")
	}
	if !bd.IsFeedProducer(publisher) && publisher != a.Issuer {
		return nil, cerrors.New(cerrors.Authorization, at, "publisher is not an authorized feed producer")
	}
	if f.ICRPresent() && !e.hf.Active(hardfork.ICR, blockTime) {
		return nil, cerrors.New(cerrors.Validation, at, "initial_collateral_ratio may not be set before the ICR hardfork")
	}
	if !f.Valid() {
		return nil, cerrors.New(cerrors.Validation, at, "feed ratios out of permitted range")
	}
	if bd.Feeds == nil {
		bd.Feeds = make(map[registry.ID]types.PublishedFeed)
	}
	bd.Feeds[publisher] = types.PublishedFeed{Publisher: publisher, PublishedAt: now, Feed: f}
	e.state.PutBitasset(bd)
	feed.Aggregate(bd, now, e.hf, blockTime)
	e.state.PutBitasset(bd)
	return bd, nil
}

// Issue is the asset_issue(issuer, asset, to, amount) operation: mints
// amount of asset into to's balance, subject to max_supply.
func (e *Engine) Issue(actingIssuer, assetID, to registry.ID, amount types.Amount) error {
	const at = "asset.issue"
	if amount <= 0 {
		return cerrors.New(cerrors.Validation, at, "amount must be positive")
	}
	a, ok := e.state.GetAsset(assetID)
	if !ok {
		return cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if a.Issuer != actingIssuer {
		return cerrors.New(cerrors.Authorization, at, "only the issuer may issue new supply")
	}
	if a.IsMarketIssued() {
		return cerrors.New(cerrors.Lifecycle, at, "asset_issue not permitted on a market-issued asset")
	}
	if err := authz.Guard(e.dir, *a, to); err != nil {
		return cerrors.WithOp(err, at)
	}
	newSupply, err := types.Add(at, a.Dynamic.CurrentSupply, amount)
	if err != nil {
		return err
	}
	if newSupply > a.Options.MaxSupply {
		return cerrors.New(cerrors.Consistency, at, "issuance would exceed max_supply")
	}
	recipient, ok := e.state.GetAccount(to)
	if !ok {
		return cerrors.New(cerrors.Validation, at, "recipient account not found")
	}
	a.Dynamic.CurrentSupply = newSupply
	recipient.SetBalance(assetID, recipient.Balance(assetID)+amount)
	e.state.PutAsset(a)
	e.state.PutAccount(recipient)
	return nil
}

// Reserve is the asset_reserve(owner, asset, amount) (burn) operation.
// Market-issued assets may never be reserved this way — their supply is
// controlled exclusively by the call-order/settlement engines — which is
// a LifecycleError per §7.
func (e *Engine) Reserve(owner, assetID registry.ID, amount types.Amount) error {
	const at = "asset.reserve"
	if amount <= 0 {
		return cerrors.New(cerrors.Validation, at, "amount must be positive")
	}
	a, ok := e.state.GetAsset(assetID)
	if !ok {
		return cerrors.New(cerrors.Validation, at, "asset not found")
	}
	if a.IsMarketIssued() {
		return cerrors.New(cerrors.Lifecycle, at, "asset_reserve not permitted on a market-issued asset")
	}
	acc, ok := e.state.GetAccount(owner)
	if !ok {
		return cerrors.New(cerrors.Validation, at, "owner account not found")
	}
	bal, err := types.Sub(at, acc.Balance(assetID), amount)
	if err != nil {
		return err
	}
	newSupply, err := types.Sub(at, a.Dynamic.CurrentSupply, amount)
	if err != nil {
		return err
	}
	acc.SetBalance(assetID, bal)
	a.Dynamic.CurrentSupply = newSupply
	e.state.PutAccount(acc)
	e.state.PutAsset(a)
	return nil
}

// FundFeePool is the asset_fund_fee_pool(funder, asset, amount)
// operation: moves amount of the core asset from funder into asset's
// core-denominated fee pool.
func (e *Engine) FundFeePool(funder, assetID, coreAsset registry.ID, amount types.Amount) error {
	const at = "asset.fund_fee_pool"
	if amount <= 0 {
		return cerrors.New(cerrors.Validation, at, "amount must be positive")
	}
	a, ok := e.state.GetAsset(assetID)
	if !ok {
		return cerrors.New(cerrors.Validation, at, "asset not found")
	}
	funderAcc, ok := e.state.GetAccount(funder)
	if !ok {
		return cerrors.New(cerrors.Validation, at, "funder account not found")
	}
	bal, err := types.Sub(at, funderAcc.Balance(coreAsset), amount)
	if err != nil {
		return err
	}
	newPool, err := types.Add(at, a.Dynamic.FeePool, amount)
	if err != nil {
		return err
	}
	funderAcc.SetBalance(coreAsset, bal)
	a.Dynamic.FeePool = newPool
	e.state.PutAccount(funderAcc)
	e.state.PutAsset(a)
	return nil
}
