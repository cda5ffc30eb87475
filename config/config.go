// Package config loads the node's static configuration: the hardfork
// activation schedule, a template of default risk parameters for
// bitassets, and a list of bootstrap assets. Only the hardfork schedule
// is consumed elsewhere in this module (via Schedule); nothing here or in
// the engines applies the risk template or creates the bootstrap assets.
// It is grounded on the teacher's config.Load/
// createDefault idiom (encode-on-first-run, BurntSushi/toml struct
// tags), generalized from a single node-address/validator-key record to
// the ledger's own bootstrap knobs.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/litepresence/bitshares-core/core/hardfork"
)

// Config is the on-disk node configuration.
type Config struct {
	DataDir                string           `toml:"DataDir"`
	MaintenanceIntervalSec int64            `toml:"MaintenanceIntervalSec"`
	Hardfork               map[string]int64 `toml:"Hardfork"`
	RiskDefaults           RiskDefaults     `toml:"RiskDefaults"`
	BootstrapAssets        []BootstrapAsset `toml:"BootstrapAsset"`
}

// RiskDefaults is a template of bitasset parameter values, mirroring
// native/asset.BitassetParams minus the per-asset BackingAsset and
// IsPredictionMarket fields, which a template cannot sensibly default.
// It is only decoded and stored: asset_create does not consult it, and a
// bitasset parameter the creator leaves at zero stays zero.
type RiskDefaults struct {
	FeedLifetimeSec              uint32 `toml:"FeedLifetimeSec"`
	ForceSettlementDelaySec      uint32 `toml:"ForceSettlementDelaySec"`
	ForceSettlementOfferPermille uint32 `toml:"ForceSettlementOfferPermille"`
	MaxForceSettlementVolume     uint32 `toml:"MaxForceSettlementVolume"`
	MarginCallFeeRatio           uint32 `toml:"MarginCallFeeRatio"`
	MinimumFeeds                 uint32 `toml:"MinimumFeeds"`
}

// BootstrapAsset describes one asset of a fresh ledger's genesis set,
// the core asset among them (IsBitasset false, BackingSymbol unused).
// This package only decodes the list; it does not create the assets.
type BootstrapAsset struct {
	Symbol             string `toml:"Symbol"`
	Precision          uint8  `toml:"Precision"`
	MaxSupply          int64  `toml:"MaxSupply"`
	MarketFeePerMille  uint32 `toml:"MarketFeePerMille"`
	IsBitasset         bool   `toml:"IsBitasset"`
	BackingSymbol      string `toml:"BackingSymbol"`
	IsPredictionMarket bool   `toml:"IsPredictionMarket"`
}

// Load reads the TOML configuration at path, creating a default file in
// its place if none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyZeroDefaults()
	return cfg, nil
}

// createDefault writes and returns the ledger's default configuration:
// every named hardfork active from genesis, conservative risk defaults,
// and a single core asset.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:                "./ledger-data",
		MaintenanceIntervalSec: 3600,
		Hardfork: map[string]int64{
			string(hardfork.ICR):                             1,
			string(hardfork.BitassetAuthGate):                1,
			string(hardfork.FeedExpiryFix):                   1,
			string(hardfork.PredictionMarketBlackSwanExempt): 1,
		},
		RiskDefaults: RiskDefaults{
			FeedLifetimeSec:              86400,
			ForceSettlementDelaySec:      86400,
			ForceSettlementOfferPermille: 100,
			MaxForceSettlementVolume:     2000,
			MarginCallFeeRatio:           50,
			MinimumFeeds:                 1,
		},
		BootstrapAssets: []BootstrapAsset{
			{Symbol: "CORE", Precision: 5, MaxSupply: 1_000_000_000_000},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyZeroDefaults fills in fields a hand-edited config may have left at
// their zero value, mirroring the teacher's post-decode normalization
// pass rather than rejecting an incomplete file outright.
func (c *Config) applyZeroDefaults() {
	if c.MaintenanceIntervalSec == 0 {
		c.MaintenanceIntervalSec = 3600
	}
	if c.RiskDefaults.MinimumFeeds == 0 {
		c.RiskDefaults.MinimumFeeds = 1
	}
}

// Schedule converts the decoded hardfork table into a core/hardfork
// Schedule, the form every native engine actually consumes.
func (c *Config) Schedule() hardfork.Schedule {
	s := make(hardfork.Schedule, len(c.Hardfork))
	for name, ts := range c.Hardfork {
		s[hardfork.Name(name)] = ts
	}
	return s
}
