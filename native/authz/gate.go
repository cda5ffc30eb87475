// Package authz implements the per-asset whitelist/blacklist
// authorization gate (§4.1), generalized from native/common.Guard's
// single module-pause boolean into a per-authority whitelist/blacklist
// evaluation over an account.
package authz

import (
	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
)

// Status is one authority's classification of one account.
type Status int

const (
	StatusNeutral Status = iota
	StatusWhitelisted
	StatusBlacklisted
)

// Directory resolves an authority's classification of an account. It is
// evaluated at the time of the operation, never cached, since whitelists
// are mutable (§4.1).
type Directory interface {
	Status(authority, account registry.ID) Status
}

// Authorized evaluates §4.1's asymmetric rule for a single asset's
// options against account:
//
//   - non-empty whitelist_authorities: account must be whitelisted by at
//     least one authority and blacklisted by none of them.
//   - otherwise, non-empty blacklist_authorities: account must not be
//     blacklisted by any of them.
//   - otherwise: permitted.
func Authorized(dir Directory, opts types.AssetOptions, account registry.ID) bool {
	if opts.WhitelistEnabled() {
		whitelisted := false
		for _, auth := range opts.WhitelistAuthorities {
			switch dir.Status(auth, account) {
			case StatusBlacklisted:
				return false
			case StatusWhitelisted:
				whitelisted = true
			}
		}
		return whitelisted
	}
	if len(opts.BlacklistAuthorities) > 0 {
		for _, auth := range opts.BlacklistAuthorities {
			if dir.Status(auth, account) == StatusBlacklisted {
				return false
			}
		}
		return true
	}
	return true
}

// Guard is the §4.1 entry point for a plain (non-bitasset) asset
// operation: transfer, asset_issue, vesting_balance_create, or any
// operation whose fee is paid in a non-core asset.
func Guard(dir Directory, asset types.Asset, account registry.ID) error {
	if !Authorized(dir, asset.Options, account) {
		return cerrors.Newf(cerrors.Authorization, "authz.guard", "account %s not authorized for asset %s", account, asset.ID)
	}
	return nil
}

// GuardBitasset is the §4.1 entry point for operations against a
// market-issued asset (borrow/call_order_update, force_settle,
// bid_collateral): both the bitasset and its backing asset must
// authorize the account, but only from the BitassetAuthGate hardfork
// onward. Before activation only the bitasset was checked — reproduced
// exactly here, per the §9 open question, rather than "fixed".
func GuardBitasset(dir Directory, bitasset, backing types.Asset, account registry.ID, hf hardfork.Schedule, blockTime int64) error {
	if !Authorized(dir, bitasset.Options, account) {
		return cerrors.Newf(cerrors.Authorization, "authz.guard_bitasset", "account %s not authorized for bitasset %s", account, bitasset.ID)
	}
	if hf.Active(hardfork.BitassetAuthGate, blockTime) {
		if !Authorized(dir, backing.Options, account) {
			return cerrors.Newf(cerrors.Authorization, "authz.guard_bitasset", "account %s not authorized for backing asset %s", account, backing.ID)
		}
	}
	return nil
}

// MapDirectory is an in-memory Directory keyed by (authority, account).
// It is the registry-less test/reference implementation; a real ledger
// stores this classification as part of account objects instead.
type MapDirectory map[registry.ID]map[registry.ID]Status

// NewMapDirectory returns an empty MapDirectory.
func NewMapDirectory() MapDirectory { return make(MapDirectory) }

// Status implements Directory.
func (m MapDirectory) Status(authority, account registry.ID) Status {
	byAccount, ok := m[authority]
	if !ok {
		return StatusNeutral
	}
	return byAccount[account]
}

// Set records authority's classification of account, implementing the
// account_whitelist operation (§6).
func (m MapDirectory) Set(authority, account registry.ID, status Status) {
	byAccount, ok := m[authority]
	if !ok {
		byAccount = make(map[registry.ID]Status)
		m[authority] = byAccount
	}
	byAccount[account] = status
}
