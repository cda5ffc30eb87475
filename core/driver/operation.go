// Package driver implements the transaction dispatch layer of §4.6: a
// tagged Operation sum type routed through a per-kind evaluator table,
// mirroring the teacher's now-removed core/node.go per-kind routing
// (each module kept its own Engine; node.go only chose which one to
// call). Operation is an interface rather than a single struct with an
// optional-field-per-kind shape, since the nineteen operation kinds
// carry genuinely disjoint fields.
package driver

import (
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
	"github.com/litepresence/bitshares-core/native/asset"
	"github.com/litepresence/bitshares-core/native/authz"
	"github.com/litepresence/bitshares-core/native/callorder"
)

// Operation is one of the nineteen kinds declared below. OpKind returns a
// stable, human-readable tag used in Rejection and logging, never
// parsed back into a type.
type Operation interface {
	OpKind() string
}

// Transfer moves amount of asset from the sender to the recipient,
// subject to the recipient's authorization gate (§4.1).
type Transfer struct {
	From, To, Asset registry.ID
	Amount          types.Amount
}

func (Transfer) OpKind() string { return "transfer" }

// LimitOrderCreate is limit_order_create: Order.ID, Order.Seller, and
// Order.SellPrice/ForSale must already be populated by the caller (ids
// are allocated from the registry before an operation reaches the
// driver, matching every other native engine's convention).
type LimitOrderCreate struct {
	Order *types.LimitOrder
}

func (LimitOrderCreate) OpKind() string { return "limit_order_create" }

// LimitOrderCancel is limit_order_cancel(owner, order).
type LimitOrderCancel struct {
	Owner   registry.ID
	OrderID registry.ID
}

func (LimitOrderCancel) OpKind() string { return "limit_order_cancel" }

// CallOrderUpdate is call_order_update, reusing native/callorder.Update
// verbatim since its fields already match §6's operation signature.
type CallOrderUpdate struct {
	callorder.Update
}

func (CallOrderUpdate) OpKind() string { return "call_order_update" }

// BidCollateral is bid_collateral(bidder, asset, collateral_offered,
// debt_covered), submitted while asset is globally settled.
type BidCollateral struct {
	Bidder            registry.ID
	Asset             registry.ID
	CollateralOffered types.Amount
	DebtCovered       types.Amount
}

func (BidCollateral) OpKind() string { return "bid_collateral" }

// AssetCreate is asset_create(issuer, symbol, precision, options,
// bitasset_params?).
type AssetCreate struct {
	Issuer         registry.ID
	Symbol         string
	Precision      uint8
	Options        types.AssetOptions
	BitassetParams *asset.BitassetParams
}

func (AssetCreate) OpKind() string { return "asset_create" }

// AssetUpdate is asset_update(issuer, asset, new_options).
type AssetUpdate struct {
	ActingIssuer registry.ID
	Asset        registry.ID
	Options      types.AssetOptions
}

func (AssetUpdate) OpKind() string { return "asset_update" }

// AssetUpdateBitasset is asset_update_bitasset(issuer, asset, new_params).
type AssetUpdateBitasset struct {
	ActingIssuer registry.ID
	Asset        registry.ID
	Params       asset.BitassetParams
}

func (AssetUpdateBitasset) OpKind() string { return "asset_update_bitasset" }

// AssetUpdateIssuer is asset_update_issuer(asset, acting_issuer, new_issuer).
type AssetUpdateIssuer struct {
	ActingIssuer registry.ID
	Asset        registry.ID
	NewIssuer    registry.ID
}

func (AssetUpdateIssuer) OpKind() string { return "asset_update_issuer" }

// AssetPublishFeed is asset_publish_feed(publisher, asset, feed).
type AssetPublishFeed struct {
	Publisher registry.ID
	Asset     registry.ID
	Feed      types.Feed
}

func (AssetPublishFeed) OpKind() string { return "asset_publish_feed" }

// AssetUpdateFeedProducers is asset_update_feed_producers(issuer, asset,
// producers).
type AssetUpdateFeedProducers struct {
	ActingIssuer registry.ID
	Asset        registry.ID
	Producers    []registry.ID
}

func (AssetUpdateFeedProducers) OpKind() string { return "asset_update_feed_producers" }

// AssetSettle is force_settle(owner, asset, amount).
type AssetSettle struct {
	Owner  registry.ID
	Asset  registry.ID
	Amount types.Amount
}

func (AssetSettle) OpKind() string { return "asset_settle" }

// AssetGlobalSettle is global_settle(asset, settlement_price). It carries
// no acting account, so the driver applies it without an issuer check;
// nothing in the driver submits it automatically on black-swan detection.
type AssetGlobalSettle struct {
	Asset           registry.ID
	SettlementPrice types.Price
}

func (AssetGlobalSettle) OpKind() string { return "asset_global_settle" }

// AssetIssue is asset_issue(issuer, asset, to, amount).
type AssetIssue struct {
	ActingIssuer registry.ID
	Asset        registry.ID
	To           registry.ID
	Amount       types.Amount
}

func (AssetIssue) OpKind() string { return "asset_issue" }

// AssetReserve is asset_reserve(owner, asset, amount) (burn).
type AssetReserve struct {
	Owner  registry.ID
	Asset  registry.ID
	Amount types.Amount
}

func (AssetReserve) OpKind() string { return "asset_reserve" }

// AssetFundFeePool is asset_fund_fee_pool(funder, asset, amount), paid in
// the asset's core exchange asset.
type AssetFundFeePool struct {
	Funder    registry.ID
	Asset     registry.ID
	CoreAsset registry.ID
	Amount    types.Amount
}

func (AssetFundFeePool) OpKind() string { return "asset_fund_fee_pool" }

// VestingBalanceCreate is vesting_balance_create(owner, asset, balance,
// vesting_seconds); the driver escrows balance out of owner's account
// before the vesting engine records the policy.
type VestingBalanceCreate struct {
	Owner          registry.ID
	Asset          registry.ID
	Balance        types.Amount
	VestingSeconds int64
}

func (VestingBalanceCreate) OpKind() string { return "vesting_balance_create" }

// VestingBalanceWithdraw is vesting_balance_withdraw(vesting_balance, amount).
type VestingBalanceWithdraw struct {
	VestingBalance registry.ID
	Amount         types.Amount
}

func (VestingBalanceWithdraw) OpKind() string { return "vesting_balance_withdraw" }

// AccountWhitelist is account_whitelist(authority, account, new_status).
type AccountWhitelist struct {
	Authority registry.ID
	Account   registry.ID
	Status    authz.Status
}

func (AccountWhitelist) OpKind() string { return "account_whitelist" }
