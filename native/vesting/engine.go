// Package vesting implements the coin-days-destroyed accrual and
// withdrawal admissibility rules of §4.7, grounded on native/lending's
// ray-scaled interest-index accrual technique (aging a stored value
// against elapsed time on every read/mutation rather than on a
// schedule), retargeted at the CDD formula in place of compound
// interest.
package vesting

import (
	"math/big"

	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
)

// State is the persistence surface the engine operates through.
type State interface {
	GetVestingBalance(id registry.ID) (*types.VestingBalance, bool)
	PutVestingBalance(vb *types.VestingBalance)
	NextVestingBalanceID() registry.ID

	GetAccount(id registry.ID) (*types.Account, bool)
	PutAccount(acc *types.Account)
}

// Engine applies CDD aging and admissibility checks to vesting balances.
type Engine struct {
	state State
}

// New constructs an Engine bound to state.
func New(state State) *Engine {
	return &Engine{state: state}
}

// Age applies §4.7's aging formula to policy as of time t, mutating it
// in place:
//
//	Δ = min(t - last_update, vesting_seconds)
//	coin_seconds_earned = min(coin_seconds_earned + Δ*balance, balance*vesting_seconds)
//	last_update = t
//
// Age is idempotent for repeated calls at the same t (Δ collapses to
// zero), and is always called before a balance is read or mutated so
// coin_seconds_earned is never stale.
func Age(policy *types.CDDPolicy, balance types.Amount, t int64) {
	if policy.CoinSecondsEarned == nil {
		policy.CoinSecondsEarned = new(big.Int)
	}
	delta := t - policy.CoinSecondsEarnedLastUpdate
	if delta < 0 {
		delta = 0
	}
	if delta > policy.VestingSeconds {
		delta = policy.VestingSeconds
	}

	earned := new(big.Int).Add(policy.CoinSecondsEarned, new(big.Int).Mul(big.NewInt(delta), big.NewInt(int64(balance))))
	ceiling := new(big.Int).Mul(big.NewInt(int64(balance)), big.NewInt(policy.VestingSeconds))
	if earned.Cmp(ceiling) > 0 {
		earned = ceiling
	}
	policy.CoinSecondsEarned = earned
	policy.CoinSecondsEarnedLastUpdate = t
}

// Create is the vesting_balance_create(owner, asset, balance,
// vesting_seconds) operation: a fresh balance starts fully unvested
// (coin_seconds_earned = 0), aged from creation time.
func (e *Engine) Create(owner, asset registry.ID, balance types.Amount, vestingSeconds int64, now int64) (*types.VestingBalance, error) {
	const at = "vesting.create"
	if balance <= 0 {
		return nil, cerrors.New(cerrors.Validation, at, "balance must be positive")
	}
	if vestingSeconds <= 0 {
		return nil, cerrors.New(cerrors.Validation, at, "vesting_seconds must be positive")
	}
	vb := &types.VestingBalance{
		ID:      e.state.NextVestingBalanceID(),
		Owner:   owner,
		Asset:   asset,
		Balance: balance,
		Policy: types.CDDPolicy{
			VestingSeconds:              vestingSeconds,
			CoinSecondsEarned:           new(big.Int),
			CoinSecondsEarnedLastUpdate: now,
		},
	}
	e.state.PutVestingBalance(vb)
	return vb, nil
}

// Deposit adds amount to vb.Balance without touching coin_seconds_earned
// (§4.7): the aging cap (balance*vesting_seconds) naturally grows, so
// the deposited portion starts fully unvested.
func (e *Engine) Deposit(id registry.ID, amount types.Amount, now int64) (*types.VestingBalance, error) {
	const at = "vesting.deposit"
	if amount <= 0 {
		return nil, cerrors.New(cerrors.Validation, at, "amount must be positive")
	}
	vb, ok := e.state.GetVestingBalance(id)
	if !ok {
		return nil, cerrors.New(cerrors.Validation, at, "vesting balance not found")
	}
	Age(&vb.Policy, vb.Balance, now)
	newBalance, err := types.Add(at, vb.Balance, amount)
	if err != nil {
		return nil, err
	}
	vb.Balance = newBalance
	e.state.PutVestingBalance(vb)
	return vb, nil
}

// Withdraw is the vesting_balance_withdraw(owner, w) operation: ages the
// policy to now, then admits the withdrawal iff w <= balance and
// w*vesting_seconds <= coin_seconds_earned, paying w to owner and
// debiting coin_seconds_earned by the matured amount exactly consumed.
func (e *Engine) Withdraw(id registry.ID, w types.Amount, now int64) (*types.VestingBalance, error) {
	const at = "vesting.withdraw"
	if w <= 0 {
		return nil, cerrors.New(cerrors.Validation, at, "withdrawal amount must be positive")
	}
	vb, ok := e.state.GetVestingBalance(id)
	if !ok {
		return nil, cerrors.New(cerrors.Validation, at, "vesting balance not found")
	}
	if w > vb.Balance {
		return nil, cerrors.New(cerrors.InsufficientFunds, at, "withdrawal exceeds balance")
	}

	Age(&vb.Policy, vb.Balance, now)

	required := new(big.Int).Mul(big.NewInt(int64(w)), big.NewInt(vb.Policy.VestingSeconds))
	if vb.Policy.CoinSecondsEarned.Cmp(required) < 0 {
		return nil, cerrors.New(cerrors.Lifecycle, at, "insufficient matured coin-seconds")
	}

	owner, ok := e.state.GetAccount(vb.Owner)
	if !ok {
		return nil, cerrors.New(cerrors.Consistency, at, "owner account not found")
	}

	vb.Policy.CoinSecondsEarned.Sub(vb.Policy.CoinSecondsEarned, required)
	vb.Balance -= w
	owner.SetBalance(vb.Asset, owner.Balance(vb.Asset)+w)

	e.state.PutAccount(owner)
	e.state.PutVestingBalance(vb)
	return vb, nil
}
