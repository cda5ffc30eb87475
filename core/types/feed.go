package types

import "github.com/litepresence/bitshares-core/core/registry"

// Feed is one publisher's submission for a bitasset: a settlement price,
// a core exchange rate, and the collateralization ratios (per-mille) that
// govern the asset while this feed contributes to the median.
type Feed struct {
	SettlementPrice  Price
	CoreExchangeRate Price
	MCR              uint32 // maintenance collateral ratio, 1/1000
	MSSR             uint32 // maximum short squeeze ratio, 1/1000
	ICR              uint32 // initial collateral ratio, 1/1000; 0 = absent
}

// ICRPresent reports whether this feed carries an initial collateral
// ratio (only meaningful post-BSIP77).
func (f Feed) ICRPresent() bool { return f.ICR != 0 }

// Valid checks the per-mille bounds from §3: MCR and MSSR in
// [1001,32000]; ICR, when present, in the same range.
func (f Feed) Valid() bool {
	if f.MCR < 1001 || f.MCR > 32000 {
		return false
	}
	if f.MSSR < 1001 || f.MSSR > 32000 {
		return false
	}
	if f.ICR != 0 && (f.ICR < 1001 || f.ICR > 32000) {
		return false
	}
	return true
}

// PublishedFeed is one producer's feed together with its publication
// timestamp, used to age feeds out once older than feed_lifetime_sec.
type PublishedFeed struct {
	Publisher   registry.ID
	PublishedAt int64
	Feed        Feed
}

// BitassetData is the market-issued-asset metadata attached to a bitasset
// Asset via Asset.BitassetID.
type BitassetData struct {
	ID                           registry.ID
	AssetID                      registry.ID
	BackingAsset                 registry.ID
	FeedLifetimeSec              uint32
	ForceSettlementDelaySec      uint32
	ForceSettlementOfferPermille uint32
	MaxForceSettlementVolume     uint32 // per-mille of current_supply, per maintenance interval
	MarginCallFeeRatio           uint32 // per-mille of seized collateral
	MinimumFeeds                 uint32
	IsPredictionMarket           bool

	FeedProducers []registry.ID
	Feeds         map[registry.ID]PublishedFeed

	MedianFeed                 Feed
	CurrentFeed                Feed
	HasValidFeed               bool
	CurrentFeedPublicationTime int64

	CurrentMaintenanceCollateralization Price
	CurrentInitialCollateralization     Price

	IsGloballySettled bool
	SettlementPrice   Price
	SettlementFund    Amount

	IndividualSettlementDebt Amount
	IndividualSettlementFund Amount

	ForceSettledVolumeThisInterval Amount
	ForceSettlementIntervalStart   int64
}

// IsFeedProducer reports whether account is authorized to publish feeds
// for this bitasset (feed-producer set, or the issuer via asset.Issuer —
// checked by the caller since BitassetData does not hold the issuer id).
func (b *BitassetData) IsFeedProducer(account registry.ID) bool {
	for _, p := range b.FeedProducers {
		if p == account {
			return true
		}
	}
	return false
}
