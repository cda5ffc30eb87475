package events

import "github.com/litepresence/bitshares-core/core/registry"

// VirtualOp is a side-effect the engine produced that was not itself a
// user-submitted operation (a margin-call fill, a forced settlement, a
// global-settlement seizure, a fee accrual). Virtual operations never
// appear in a submitted transaction body: the driver's Operation kinds
// include none of them.
type VirtualOp struct {
	Kind            string
	AffectedAccount registry.ID
	AffectedOrder   registry.ID
	Attributes      map[string]string
}

// EventType implements Event.
func (v VirtualOp) EventType() string { return "virtual_op:" + v.Kind }

const (
	VirtualOpMarginCall        = "margin_call"
	VirtualOpForceSettleFill   = "force_settlement_fill"
	VirtualOpGlobalSettleFund  = "global_settlement_seizure"
	VirtualOpCollateralRevival = "collateral_bid_revival"
	VirtualOpFeeAccrual        = "fee_accrual"
	VirtualOpFill              = "fill_order"
)

// Ordering sorts virtual operations into the deterministic sub-order
// §4.6 requires: by affected-account id, then by affected-order id.
func Ordering(ops []VirtualOp) []VirtualOp {
	sorted := make([]VirtualOp, len(ops))
	copy(sorted, ops)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && lessVirtualOp(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}

func lessVirtualOp(a, b VirtualOp) bool {
	if a.AffectedAccount != b.AffectedAccount {
		return a.AffectedAccount.Less(b.AffectedAccount)
	}
	return a.AffectedOrder.Less(b.AffectedOrder)
}
