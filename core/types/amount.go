// Package types holds the core's data model: fixed-point amounts and
// prices, asset records, and the per-object-kind records (call orders,
// limit orders, force-settlement requests, collateral bids, vesting
// balances) the native engines operate on.
package types

import (
	cerrors "github.com/litepresence/bitshares-core/core/errors"
)

// Amount is a signed integer count of the smallest unit of some asset.
// Ledger arithmetic is always exact integer arithmetic; no floating
// point value is ever produced from or fed into an Amount.
type Amount int64

// MaxShareSupply bounds the on-hand quantity of any single asset, matching
// the source ledger's share-supply ceiling.
const MaxShareSupply Amount = 1_000_000_000_000_000

// Valid reports whether a is within [0, MaxShareSupply]. Debts and
// collateral, like balances, are never negative.
func (a Amount) Valid() bool {
	return a >= 0 && a <= MaxShareSupply
}

// Add returns a+b, failing with a ConsistencyError if the sum overflows,
// exceeds MaxShareSupply or goes negative.
func Add(op string, a, b Amount) (Amount, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, cerrors.New(cerrors.Consistency, op, "amount overflow")
	}
	if !sum.Valid() {
		return 0, cerrors.New(cerrors.Consistency, op, "amount out of range")
	}
	return sum, nil
}

// Sub returns a-b, failing with InsufficientFundsError if the result
// would be negative.
func Sub(op string, a, b Amount) (Amount, error) {
	diff := a - b
	if diff < 0 {
		return 0, cerrors.New(cerrors.InsufficientFunds, op, "amount would go negative")
	}
	if !diff.Valid() {
		return 0, cerrors.New(cerrors.Consistency, op, "amount out of range")
	}
	return diff, nil
}
