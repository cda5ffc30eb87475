package types

import "github.com/litepresence/bitshares-core/core/registry"

// AssetFlag is a bit in the issuer-permission / enabled-flags bitsets
// that gate what an asset's issuer may do, and what is currently active.
type AssetFlag uint32

const (
	FlagChargeMarketFee AssetFlag = 1 << iota
	FlagWhiteList
	FlagOverrideAuthority
	FlagTransferRestricted
	FlagDisableForceSettle
	FlagGlobalSettle
	FlagDisableConfidential
	FlagWitnessFedAsset
	FlagCommitteeFedAsset
	FlagLockMaxSupply
	FlagDisableNewSupply
	FlagDisableMCRUpdate
	FlagDisableICRUpdate
	FlagDisableMSSRUpdate
	FlagDisableCollateralBidding
)

// Has reports whether flag is set in bits.
func (f AssetFlag) Has(bits uint32) bool { return uint32(f)&bits == uint32(f) }

// AssetOptions holds the issuer-configurable, mostly-static knobs of an
// asset: supply ceiling, market fee, the subset of flags the issuer may
// still toggle, the subset currently active, the core exchange rate used
// to value fees paid in this asset, and the authorization lists §4.1
// evaluates.
type AssetOptions struct {
	MaxSupply            Amount
	MarketFeePerMille    uint32
	IssuerPermissions    uint32
	Flags                uint32
	CoreExchangeRate     Price
	WhitelistAuthorities []registry.ID
	BlacklistAuthorities []registry.ID
	WhitelistMarkets     []registry.ID
	BlacklistMarkets     []registry.ID
}

// AssetDynamicData holds the mutable counters that change on every
// transfer, issue, reserve, or fee accrual.
type AssetDynamicData struct {
	CurrentSupply             Amount
	ConfidentialSupply        Amount
	AccumulatedFees           Amount
	AccumulatedCollateralFees Amount
	FeePool                   Amount // core-asset denominated
}

// Asset is the top-level asset record. BitassetID is the zero ID for a
// plain UIA; a non-zero BitassetID marks the asset as market-issued (or
// a prediction market, see BitassetData.IsPredictionMarket).
type Asset struct {
	ID         registry.ID
	Symbol     string
	Precision  uint8
	Issuer     registry.ID
	Options    AssetOptions
	Dynamic    AssetDynamicData
	BitassetID registry.ID
}

// IsMarketIssued reports whether this asset has bitasset data attached.
func (a Asset) IsMarketIssued() bool { return a.BitassetID.Valid() }

// WhitelistEnabled reports whether the asset gates holders via an
// explicit whitelist (as opposed to a bare blacklist, or no gate).
func (o AssetOptions) WhitelistEnabled() bool { return len(o.WhitelistAuthorities) > 0 }
