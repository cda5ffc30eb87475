// Package feed implements the per-publisher feed aggregation and
// deterministic median derivation of §4.2, grounded on
// core/pricing.DefaultPriceFeed's freshness/deviation guard shape and
// native/swap.OracleAggregator's priority-ordered publisher bookkeeping,
// generalized from a single upstream oracle to a per-publisher map with
// per-field median aggregation.
package feed

import (
	"sort"

	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/types"
)

// feedExpired reproduces the pre-#615 off-by-one exactly: before the
// FeedExpiryFix hardfork, a feed published exactly feed_lifetime_sec ago
// was (incorrectly) already considered expired (>=); from the hardfork
// onward the comparison is the corrected strict > (§9 open question).
func feedExpired(publishedAt, now int64, lifetimeSec uint32, expiryFixed bool) bool {
	age := now - publishedAt
	if expiryFixed {
		return age > int64(lifetimeSec)
	}
	return age >= int64(lifetimeSec)
}

// sortedMiddleIndex returns the index of the sorted-middle element for n
// live values: the middle for odd n, the lower-middle for even n (§3,
// §8 I5). (n-1)/2 with integer division yields both.
func sortedMiddleIndex(n int) int {
	if n == 0 {
		return 0
	}
	return (n - 1) / 2
}

// Aggregate recomputes bd's median/current feed and derived
// collateralization prices from its live (non-expired) publisher feeds,
// per §4.2 steps 1-5. Called on feed update, feed expiry sweep, or
// feed-producer-set change.
func Aggregate(bd *types.BitassetData, now int64, hf hardfork.Schedule, blockTime int64) {
	expiryFixed := hf.Active(hardfork.FeedExpiryFix, blockTime)

	live := make([]types.PublishedFeed, 0, len(bd.Feeds))
	for _, pf := range bd.Feeds {
		if !feedExpired(pf.PublishedAt, now, bd.FeedLifetimeSec, expiryFixed) {
			live = append(live, pf)
		}
	}

	if uint32(len(live)) < bd.MinimumFeeds || len(live) == 0 {
		bd.HasValidFeed = false
		bd.MedianFeed = types.Feed{}
		bd.CurrentFeed = types.Feed{}
		bd.CurrentFeedPublicationTime = 0
		bd.CurrentMaintenanceCollateralization = types.Price{}
		bd.CurrentInitialCollateralization = types.Price{}
		return
	}

	median := medianFeed(live)
	bd.MedianFeed = median
	bd.CurrentFeed = median
	bd.HasValidFeed = true

	oldest := live[0].PublishedAt
	for _, pf := range live[1:] {
		if pf.PublishedAt < oldest {
			oldest = pf.PublishedAt
		}
	}
	bd.CurrentFeedPublicationTime = oldest

	bd.CurrentMaintenanceCollateralization = types.MaintenanceCollateralization(median.SettlementPrice, median.MCR)
	if median.ICRPresent() {
		bd.CurrentInitialCollateralization = types.InitialCollateralization(median.SettlementPrice, median.ICR)
	} else {
		bd.CurrentInitialCollateralization = types.Price{}
	}
}

func medianFeed(live []types.PublishedFeed) types.Feed {
	prices := make([]types.Price, len(live))
	exchangeRates := make([]types.Price, len(live))
	mcrs := make([]uint32, len(live))
	mssrs := make([]uint32, len(live))
	icrs := make([]uint32, 0, len(live))

	for i, pf := range live {
		prices[i] = pf.Feed.SettlementPrice
		exchangeRates[i] = pf.Feed.CoreExchangeRate
		mcrs[i] = pf.Feed.MCR
		mssrs[i] = pf.Feed.MSSR
		if pf.Feed.ICRPresent() {
			icrs = append(icrs, pf.Feed.ICR)
		}
	}

	sort.Slice(prices, func(i, j int) bool {
		cmp, _ := types.Compare(prices[i], prices[j])
		return cmp < 0
	})
	sort.Slice(exchangeRates, func(i, j int) bool {
		cmp, _ := types.Compare(exchangeRates[i], exchangeRates[j])
		return cmp < 0
	})
	sort.Slice(mcrs, func(i, j int) bool { return mcrs[i] < mcrs[j] })
	sort.Slice(mssrs, func(i, j int) bool { return mssrs[i] < mssrs[j] })
	sort.Slice(icrs, func(i, j int) bool { return icrs[i] < icrs[j] })

	result := types.Feed{
		SettlementPrice:  prices[sortedMiddleIndex(len(prices))],
		CoreExchangeRate: exchangeRates[sortedMiddleIndex(len(exchangeRates))],
		MCR:              mcrs[sortedMiddleIndex(len(mcrs))],
		MSSR:             mssrs[sortedMiddleIndex(len(mssrs))],
	}
	if len(icrs) > 0 {
		result.ICR = icrs[sortedMiddleIndex(len(icrs))]
	}
	return result
}
