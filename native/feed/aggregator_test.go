package feed

import (
	"testing"

	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
)

func publisher(n uint64) registry.ID {
	return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAccount, Instance: n}
}

func priceOf(n int64) types.Price {
	return types.Price{
		Base:  types.AssetAmount{Asset: registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAsset, Instance: 1}, Amount: types.Amount(n)},
		Quote: types.AssetAmount{Asset: registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAsset, Instance: 2}, Amount: 100},
	}
}

func newBitasset(feeds map[registry.ID]types.PublishedFeed, minFeeds uint32) *types.BitassetData {
	return &types.BitassetData{
		FeedLifetimeSec: 3600,
		MinimumFeeds:    minFeeds,
		Feeds:           feeds,
	}
}

func TestAggregateMedianOddCount(t *testing.T) {
	feeds := map[registry.ID]types.PublishedFeed{
		publisher(1): {Publisher: publisher(1), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(100), MCR: 1750, MSSR: 1100}},
		publisher(2): {Publisher: publisher(2), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(200), MCR: 1500, MSSR: 1200}},
		publisher(3): {Publisher: publisher(3), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(300), MCR: 2000, MSSR: 1300}},
	}
	bd := newBitasset(feeds, 3)
	Aggregate(bd, 100, hardfork.Default(), 100)

	if !bd.HasValidFeed {
		t.Fatalf("expected a valid feed with 3/3 live publishers")
	}
	if bd.MedianFeed.SettlementPrice.Base.Amount != 200 {
		t.Fatalf("expected median settlement price base 200, got %d", bd.MedianFeed.SettlementPrice.Base.Amount)
	}
	if bd.MedianFeed.MCR != 1750 {
		t.Fatalf("expected median MCR 1750, got %d", bd.MedianFeed.MCR)
	}
}

func TestAggregateMedianEvenCountTakesLowerMiddle(t *testing.T) {
	feeds := map[registry.ID]types.PublishedFeed{
		publisher(1): {Publisher: publisher(1), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(100), MCR: 1100, MSSR: 1100}},
		publisher(2): {Publisher: publisher(2), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(200), MCR: 1200, MSSR: 1100}},
		publisher(3): {Publisher: publisher(3), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(300), MCR: 1300, MSSR: 1100}},
		publisher(4): {Publisher: publisher(4), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(400), MCR: 1400, MSSR: 1100}},
	}
	bd := newBitasset(feeds, 4)
	Aggregate(bd, 100, hardfork.Default(), 100)

	if bd.MedianFeed.SettlementPrice.Base.Amount != 200 {
		t.Fatalf("expected lower-middle settlement price 200 for 4 feeds, got %d", bd.MedianFeed.SettlementPrice.Base.Amount)
	}
	if bd.MedianFeed.MCR != 1200 {
		t.Fatalf("expected lower-middle MCR 1200 for 4 feeds, got %d", bd.MedianFeed.MCR)
	}
}

func TestAggregateBelowMinimumFeedsHasNoValidFeed(t *testing.T) {
	feeds := map[registry.ID]types.PublishedFeed{
		publisher(1): {Publisher: publisher(1), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(100), MCR: 1750, MSSR: 1100}},
	}
	bd := newBitasset(feeds, 2)
	Aggregate(bd, 100, hardfork.Default(), 100)

	if bd.HasValidFeed {
		t.Fatalf("expected no valid feed with 1 live publisher below minimum of 2")
	}
}

func TestFeedExpiryPreAndPostFix(t *testing.T) {
	feeds := map[registry.ID]types.PublishedFeed{
		publisher(1): {Publisher: publisher(1), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(100), MCR: 1750, MSSR: 1100}},
	}
	bd := newBitasset(feeds, 1)

	hf := hardfork.Schedule{hardfork.FeedExpiryFix: 5000}

	// Pre-fix: age exactly equal to lifetime is (incorrectly) expired.
	Aggregate(bd, 3600, hf, 100)
	if bd.HasValidFeed {
		t.Fatalf("expected pre-fix off-by-one to treat age==lifetime as expired")
	}

	// Post-fix: age exactly equal to lifetime is still live.
	bd2 := newBitasset(feeds, 1)
	Aggregate(bd2, 3600, hf, 5000)
	if !bd2.HasValidFeed {
		t.Fatalf("expected post-fix comparison to treat age==lifetime as still live")
	}
}

func TestAggregateDerivesMaintenanceAndInitialCollateralization(t *testing.T) {
	feeds := map[registry.ID]types.PublishedFeed{
		publisher(1): {Publisher: publisher(1), PublishedAt: 0, Feed: types.Feed{SettlementPrice: priceOf(100), MCR: 1750, MSSR: 1100, ICR: 2000}},
	}
	bd := newBitasset(feeds, 1)
	Aggregate(bd, 100, hardfork.Default(), 100)

	if bd.CurrentMaintenanceCollateralization.Base.Amount == 0 {
		t.Fatalf("expected a derived maintenance collateralization price")
	}
	if bd.CurrentInitialCollateralization.Base.Amount == 0 {
		t.Fatalf("expected a derived initial collateralization price when ICR is present")
	}
}
