package driver

import (
	"github.com/litepresence/bitshares-core/core/events"
	"github.com/litepresence/bitshares-core/core/registry"
)

// OpResult wraps any operation's primary effect (the object it created
// or mutated) as an events.Event, so Result.Primary has one slot
// regardless of which of the nineteen kinds produced it.
type OpResult struct {
	Kind   string
	Object any
}

// EventType implements events.Event.
func (o OpResult) EventType() string { return "op_result:" + o.Kind }

// Result is one operation's outcome: its primary effect, any virtual
// operations it produced (margin calls, fills, fee accrual), and the
// distinct object ids it touched, in the order §4.6/§6 requires
// collaborators to observe them.
type Result struct {
	TraceID string
	Primary events.Event
	Virtual []events.Event
	Changed []registry.ID
}

// Rejection is a failed operation's tagged outcome: the core's error
// classification plus its op chain, never a swallowed error.
type Rejection struct {
	TraceID string
	OpKind  string
	Kind    string
	Ops     []string
	Message string
}

// BlockResult aggregates one block's per-transaction outcomes in
// application order.
type BlockResult struct {
	Results    []*Result
	Rejections []*Rejection
}
