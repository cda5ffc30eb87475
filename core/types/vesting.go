package types

import (
	"math/big"

	"github.com/litepresence/bitshares-core/core/registry"
)

// CDDPolicy is the coin-days-destroyed vesting policy: coins vest once
// they have accumulated balance*vesting_seconds of "coin-seconds".
// CoinSecondsEarned is big.Int-scaled rather than Amount because
// balance*vesting_seconds routinely exceeds the int64 range that bounds
// a plain Amount.
type CDDPolicy struct {
	VestingSeconds              int64
	CoinSecondsEarned           *big.Int
	CoinSecondsEarnedLastUpdate int64
}

// Clone returns a deep copy, safe to mutate independently of the source.
func (p CDDPolicy) Clone() CDDPolicy {
	earned := new(big.Int)
	if p.CoinSecondsEarned != nil {
		earned.Set(p.CoinSecondsEarned)
	}
	return CDDPolicy{
		VestingSeconds:              p.VestingSeconds,
		CoinSecondsEarned:           earned,
		CoinSecondsEarnedLastUpdate: p.CoinSecondsEarnedLastUpdate,
	}
}

// VestingBalance is an owner's escrowed balance governed by a CDD
// policy. Deposits add to Balance without touching CoinSecondsEarned;
// withdrawals require enough aged coin-seconds (see native/vesting).
type VestingBalance struct {
	ID      registry.ID
	Owner   registry.ID
	Asset   registry.ID
	Balance Amount
	Policy  CDDPolicy
}

// Clone returns a deep copy of v, including its policy's big.Int.
func (v VestingBalance) Clone() VestingBalance {
	clone := v
	clone.Policy = v.Policy.Clone()
	return clone
}
