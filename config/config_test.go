package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/litepresence/bitshares-core/core/hardfork"
)

func TestLoadWritesDefaultFileWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "expected a default config file to be written")
	require.Len(t, cfg.BootstrapAssets, 1)
	require.Equal(t, "CORE", cfg.BootstrapAssets[0].Symbol)
	require.EqualValues(t, 3600, cfg.MaintenanceIntervalSec)
}

func TestLoadRoundTripsAHandEditedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.toml")
	contents := `DataDir = "./mainnet-data"
MaintenanceIntervalSec = 1800

[RiskDefaults]
FeedLifetimeSec = 43200
ForceSettlementDelaySec = 7200
ForceSettlementOfferPermille = 50
MaxForceSettlementVolume = 1000
MarginCallFeeRatio = 30
MinimumFeeds = 3

[Hardfork]
icr_bsip77 = 500

[[BootstrapAsset]]
Symbol = "CORE"
Precision = 5
MaxSupply = 1000000000000

[[BootstrapAsset]]
Symbol = "USD"
Precision = 4
MaxSupply = 500000000
IsBitasset = true
BackingSymbol = "CORE"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 1800, cfg.MaintenanceIntervalSec)
	require.EqualValues(t, 3, cfg.RiskDefaults.MinimumFeeds)
	require.Len(t, cfg.BootstrapAssets, 2)
	require.True(t, cfg.BootstrapAssets[1].IsBitasset)

	schedule := cfg.Schedule()
	require.True(t, schedule.Active(hardfork.ICR, 500), "expected the ICR hardfork active at its configured timestamp")
	require.False(t, schedule.Active(hardfork.ICR, 499), "expected the ICR hardfork inactive before its configured timestamp")
	require.False(t, schedule.Active(hardfork.BitassetAuthGate, 1), "expected an unconfigured hardfork to default to never-active")
}

func TestLoadAppliesZeroDefaultsToPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(`DataDir = "./data"`+"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 3600, cfg.MaintenanceIntervalSec)
	require.EqualValues(t, 1, cfg.RiskDefaults.MinimumFeeds)
}
