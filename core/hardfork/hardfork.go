// Package hardfork centralizes the named activation timestamps the core
// branches on, generalizing the teacher's single PauseView boolean gate
// (native/common.Guard) to a timestamp-keyed schedule: every conditional
// branch queries Active(name, blockTime) rather than comparing against a
// hardcoded date, so historical blocks replay under the rules that were
// active when they were produced.
package hardfork

import "math"

// Name identifies one hardfork activation point.
type Name string

const (
	// ICR (BSIP77): feed may carry an initial_collateral_ratio, enforced
	// at call-order mutation time in addition to the maintenance ratio.
	ICR Name = "icr_bsip77"
	// BitassetAuthGate: both the bitasset and its backing asset must
	// authorize the account on force_settle/bid_collateral. Before this
	// activates, only the bitasset was checked — a bug the core must
	// reproduce exactly for historical blocks (§9 open question).
	BitassetAuthGate Name = "bitasset_auth_gate"
	// FeedExpiryFix (#615): corrects an off-by-one in feed_is_expired's
	// comparison sense. Before this activates, the flipped comparison
	// must be preserved (§9 open question).
	FeedExpiryFix Name = "feed_expiry_fix_615"
	// PredictionMarketBlackSwanExempt names the prediction-market
	// black-swan exemption activation point. No engine in this module
	// branches on it: it is only carried in schedules, and feeds on a
	// prediction market are neither rejected nor ignored on its account.
	PredictionMarketBlackSwanExempt Name = "pm_black_swan_exempt"
)

// Schedule maps hardfork names to their activation timestamp (unix
// seconds). A name absent from the schedule, or mapped to 0, is treated
// as never-active.
type Schedule map[Name]int64

// Active reports whether the hardfork named by name is active at time t.
// A schedule is supplied by the caller (the collaborator owning block
// time), never read from ambient global state.
func (s Schedule) Active(name Name, t int64) bool {
	ts, ok := s[name]
	if !ok || ts == 0 {
		return false
	}
	return t >= ts
}

// Default returns a schedule with every hardfork activated at the
// earliest representable time (0 itself means never-active), i.e. always
// active, block time 0 included — the convenient default for tests and
// fresh ledgers that want current-rules-only behavior.
func Default() Schedule {
	return Schedule{
		ICR:                             math.MinInt64,
		BitassetAuthGate:                math.MinInt64,
		FeedExpiryFix:                   math.MinInt64,
		PredictionMarketBlackSwanExempt: math.MinInt64,
	}
}
