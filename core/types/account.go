package types

import "github.com/litepresence/bitshares-core/core/registry"

// Account is the ledger-visible side of an account: its per-asset
// balances. Identity, authority, and signature verification are external
// collaborators; this record exists purely so evaluators have somewhere
// to move asset balances.
type Account struct {
	ID       registry.ID
	Balances map[registry.ID]Amount
}

// Balance returns the account's balance of asset, or zero if it holds
// none.
func (a *Account) Balance(asset registry.ID) Amount {
	if a == nil || a.Balances == nil {
		return 0
	}
	return a.Balances[asset]
}

// SetBalance sets the account's balance of asset.
func (a *Account) SetBalance(asset registry.ID, amount Amount) {
	if a.Balances == nil {
		a.Balances = make(map[registry.ID]Amount)
	}
	a.Balances[asset] = amount
}

// Clone returns a deep copy of a, safe to mutate independently.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	balances := make(map[registry.ID]Amount, len(a.Balances))
	for k, v := range a.Balances {
		balances[k] = v
	}
	return &Account{ID: a.ID, Balances: balances}
}
