package driver

import (
	"github.com/litepresence/bitshares-core/native/asset"
	"github.com/litepresence/bitshares-core/native/callorder"
	"github.com/litepresence/bitshares-core/native/settlement"
	"github.com/litepresence/bitshares-core/native/vesting"
)

// State is the combined persistence surface every per-kind evaluator
// needs. The embedded State interfaces overlap on GetAsset/PutAsset/
// GetAccount/PutAccount/GetBitasset/PutBitasset — embedding interfaces
// that declare identical method signatures for the same name is legal
// in Go, so a single backing store can satisfy all four at once.
type State interface {
	callorder.State
	settlement.State
	vesting.State
	asset.State
}
