package authz

import (
	"testing"

	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
)

func acct(n uint64) registry.ID {
	return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAccount, Instance: n}
}

func TestAuthorizedWhitelistRequiresMembership(t *testing.T) {
	dir := NewMapDirectory()
	authority := acct(1)
	good, bad := acct(2), acct(3)
	dir.Set(authority, good, StatusWhitelisted)

	opts := types.AssetOptions{WhitelistAuthorities: []registry.ID{authority}}

	if !Authorized(dir, opts, good) {
		t.Fatalf("expected whitelisted account to be authorized")
	}
	if Authorized(dir, opts, bad) {
		t.Fatalf("expected non-whitelisted account to be rejected")
	}
}

func TestAuthorizedWhitelistBlacklistOverrides(t *testing.T) {
	dir := NewMapDirectory()
	a1, a2 := acct(1), acct(2)
	account := acct(3)
	dir.Set(a1, account, StatusWhitelisted)
	dir.Set(a2, account, StatusBlacklisted)

	opts := types.AssetOptions{WhitelistAuthorities: []registry.ID{a1, a2}}
	if Authorized(dir, opts, account) {
		t.Fatalf("expected a single blacklisting authority to veto whitelisting")
	}
}

func TestAuthorizedBlacklistOnlyBlocksListed(t *testing.T) {
	dir := NewMapDirectory()
	authority := acct(1)
	blocked, free := acct(2), acct(3)
	dir.Set(authority, blocked, StatusBlacklisted)

	opts := types.AssetOptions{BlacklistAuthorities: []registry.ID{authority}}
	if Authorized(dir, opts, blocked) {
		t.Fatalf("expected blacklisted account to be rejected")
	}
	if !Authorized(dir, opts, free) {
		t.Fatalf("expected unlisted account to be authorized")
	}
}

func TestAuthorizedNoAuthoritiesPermitsAll(t *testing.T) {
	dir := NewMapDirectory()
	if !Authorized(dir, types.AssetOptions{}, acct(9)) {
		t.Fatalf("expected an asset with no whitelist/blacklist to permit any account")
	}
}

func TestGuardBitassetPreHardforkSkipsBackingCheck(t *testing.T) {
	dir := NewMapDirectory()
	backingAuthority := acct(1)
	account := acct(2)
	dir.Set(backingAuthority, account, StatusBlacklisted)

	bitasset := types.Asset{ID: acct(10)}
	backing := types.Asset{ID: acct(11), Options: types.AssetOptions{BlacklistAuthorities: []registry.ID{backingAuthority}}}

	hf := hardfork.Schedule{hardfork.BitassetAuthGate: 1000}

	if err := GuardBitasset(dir, bitasset, backing, account, hf, 500); err != nil {
		t.Fatalf("expected pre-hardfork gate to ignore backing-asset blacklist, got: %v", err)
	}
	if err := GuardBitasset(dir, bitasset, backing, account, hf, 1000); err == nil {
		t.Fatalf("expected post-hardfork gate to enforce backing-asset blacklist")
	}
}
