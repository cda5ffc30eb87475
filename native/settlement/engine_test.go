package settlement

import (
	"sort"
	"testing"

	"github.com/litepresence/bitshares-core/core/hardfork"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
	"github.com/litepresence/bitshares-core/native/authz"
)

type mockState struct {
	assets     map[registry.ID]*types.Asset
	bitassets  map[registry.ID]*types.BitassetData
	accounts   map[registry.ID]*types.Account
	callOrders map[registry.ID]*types.CallOrder
	forceSet   map[registry.ID]*types.ForceSettlement
	bids       map[registry.ID]*types.CollateralBid
	nextFS     uint64
	nextBid    uint64
}

func newMockState() *mockState {
	return &mockState{
		assets:     make(map[registry.ID]*types.Asset),
		bitassets:  make(map[registry.ID]*types.BitassetData),
		accounts:   make(map[registry.ID]*types.Account),
		callOrders: make(map[registry.ID]*types.CallOrder),
		forceSet:   make(map[registry.ID]*types.ForceSettlement),
		bids:       make(map[registry.ID]*types.CollateralBid),
	}
}

func (m *mockState) GetBitasset(id registry.ID) (*types.BitassetData, bool) { bd, ok := m.bitassets[id]; return bd, ok }
func (m *mockState) PutBitasset(bd *types.BitassetData)                    { m.bitassets[bd.ID] = bd }
func (m *mockState) GetAsset(id registry.ID) (*types.Asset, bool)          { a, ok := m.assets[id]; return a, ok }
func (m *mockState) PutAsset(a *types.Asset)                               { m.assets[a.ID] = a }
func (m *mockState) GetAccount(id registry.ID) (*types.Account, bool)      { a, ok := m.accounts[id]; return a, ok }
func (m *mockState) PutAccount(a *types.Account)                          { m.accounts[a.ID] = a }

func (m *mockState) QueueForceSettlement(fs *types.ForceSettlement) { m.forceSet[fs.ID] = fs }
func (m *mockState) PendingForceSettlements(asset registry.ID) []*types.ForceSettlement {
	var out []*types.ForceSettlement
	for _, fs := range m.forceSet {
		if fs.Asset == asset {
			out = append(out, fs)
		}
	}
	return out
}
func (m *mockState) RemoveForceSettlement(id registry.ID) { delete(m.forceSet, id) }
func (m *mockState) NextForceSettlementID() registry.ID {
	id := m.nextFS
	m.nextFS++
	return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeForceSettlement, Instance: id}
}

func (m *mockState) CallOrdersByAsset(debtAsset registry.ID) []*types.CallOrder {
	var out []*types.CallOrder
	for _, o := range m.callOrders {
		if o.DebtAsset == debtAsset {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		cmp, err := types.Compare(out[i].CollateralizationPrice(), out[j].CollateralizationPrice())
		if err != nil || cmp != 0 {
			return cmp < 0
		}
		return out[i].ID.Less(out[j].ID)
	})
	return out
}
func (m *mockState) PutCallOrder(o *types.CallOrder)   { m.callOrders[o.ID] = o }
func (m *mockState) RemoveCallOrder(id registry.ID)    { delete(m.callOrders, id) }

func (m *mockState) CollateralBids(asset registry.ID) []*types.CollateralBid {
	var out []*types.CollateralBid
	for _, b := range m.bids {
		if b.Asset == asset {
			out = append(out, b)
		}
	}
	return out
}
func (m *mockState) QueueCollateralBid(b *types.CollateralBid) { m.bids[b.ID] = b }
func (m *mockState) RemoveCollateralBid(id registry.ID)        { delete(m.bids, id) }
func (m *mockState) NextCollateralBidID() registry.ID {
	id := m.nextBid
	m.nextBid++
	return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeCollateralBid, Instance: id}
}

func coreID() registry.ID   { return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAsset, Instance: 1} }
func usdBitID() registry.ID { return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAsset, Instance: 2} }
func bdID() registry.ID {
	return registry.ID{Space: registry.SpaceImplementation, Type: registry.TypeBitassetData, Instance: 1}
}
func ownerID() registry.ID { return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAccount, Instance: 1} }
func requesterID() registry.ID {
	return registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeAccount, Instance: 2}
}

func settlementPrice1to1() types.Price {
	return types.Price{
		Base:  types.AssetAmount{Asset: coreID(), Amount: 1000},
		Quote: types.AssetAmount{Asset: usdBitID(), Amount: 1000},
	}
}

func newEngine(state *mockState) *Engine {
	return New(state, 3600, authz.NewMapDirectory(), hardfork.Default())
}

func putCoreAsset(state *mockState) {
	state.PutAsset(&types.Asset{ID: coreID(), Symbol: "CORE", Options: types.AssetOptions{MaxSupply: types.MaxShareSupply}})
}

func TestTriggerGlobalSettlementSeizesAllCollateral(t *testing.T) {
	state := newMockState()
	bd := &types.BitassetData{ID: bdID(), AssetID: usdBitID(), BackingAsset: coreID()}
	state.PutBitasset(bd)
	asset := &types.Asset{ID: usdBitID(), BitassetID: bdID(), Dynamic: types.AssetDynamicData{CurrentSupply: 5_000}}
	state.PutAsset(asset)
	state.PutCallOrder(&types.CallOrder{
		ID:              registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeCallOrder, Instance: 1},
		Owner:           ownerID(),
		DebtAsset:       usdBitID(),
		CollateralAsset: coreID(),
		Collateral:      9_000,
		Debt:            5_000,
	})

	engine := newEngine(state)
	if err := engine.TriggerGlobalSettlement(bd, asset, settlementPrice1to1(), 1_000); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !bd.IsGloballySettled {
		t.Fatalf("expected globally settled")
	}
	if bd.SettlementFund != 9_000 {
		t.Fatalf("unexpected settlement fund: %d", bd.SettlementFund)
	}
	if len(state.callOrders) != 0 {
		t.Fatalf("expected call orders seized, got %d remaining", len(state.callOrders))
	}

	if err := engine.TriggerGlobalSettlement(bd, asset, settlementPrice1to1(), 2_000); err == nil {
		t.Fatalf("expected error settling an already-settled asset twice")
	}
}

func TestForceSettleQueuesThenReleases(t *testing.T) {
	state := newMockState()
	bd := &types.BitassetData{
		ID: bdID(), AssetID: usdBitID(), BackingAsset: coreID(),
		ForceSettlementDelaySec:  86_400,
		MaxForceSettlementVolume: 1000, // 100% of supply per interval
		MedianFeed:               types.Feed{SettlementPrice: settlementPrice1to1()},
	}
	state.PutBitasset(bd)
	asset := &types.Asset{ID: usdBitID(), BitassetID: bdID(), Dynamic: types.AssetDynamicData{CurrentSupply: 5_000}}
	state.PutAsset(asset)
	state.PutCallOrder(&types.CallOrder{
		ID:              registry.ID{Space: registry.SpaceProtocol, Type: registry.TypeCallOrder, Instance: 1},
		Owner:           ownerID(),
		DebtAsset:       usdBitID(),
		CollateralAsset: coreID(),
		Collateral:      9_000,
		Debt:            5_000,
	})
	requester := &types.Account{ID: requesterID(), Balances: map[registry.ID]types.Amount{usdBitID(): 2_000}}
	state.PutAccount(requester)
	putCoreAsset(state)

	engine := newEngine(state)
	fs, _, err := engine.ForceSettle(requesterID(), usdBitID(), 2_000, 0)
	if err != nil {
		t.Fatalf("force settle: %v", err)
	}
	if fs.SettlementDate != 86_400 {
		t.Fatalf("unexpected settlement date: %d", fs.SettlementDate)
	}
	if requester.Balance(usdBitID()) != 0 {
		t.Fatalf("expected balance escrowed, got %d", requester.Balance(usdBitID()))
	}

	virtual, err := engine.ProcessMaintenance(bd, asset, 90_000)
	if err != nil {
		t.Fatalf("process maintenance: %v", err)
	}
	if len(virtual) != 1 {
		t.Fatalf("expected one settlement fill, got %d", len(virtual))
	}
	if requester.Balance(coreID()) != 2_000 {
		t.Fatalf("unexpected collateral paid to requester: %d", requester.Balance(coreID()))
	}
	if asset.Dynamic.CurrentSupply != 3_000 {
		t.Fatalf("unexpected current supply after settlement: %d", asset.Dynamic.CurrentSupply)
	}
	if len(state.forceSet) != 0 {
		t.Fatalf("expected force settlement queue drained")
	}
}

func TestForceSettleRejectsPredictionMarketBeforeGlobalSettle(t *testing.T) {
	state := newMockState()
	bd := &types.BitassetData{
		ID: bdID(), AssetID: usdBitID(), BackingAsset: coreID(),
		IsPredictionMarket: true,
	}
	state.PutBitasset(bd)
	asset := &types.Asset{ID: usdBitID(), BitassetID: bdID(), Dynamic: types.AssetDynamicData{CurrentSupply: 1_000}}
	state.PutAsset(asset)
	requester := &types.Account{ID: requesterID(), Balances: map[registry.ID]types.Amount{usdBitID(): 1_000}}
	state.PutAccount(requester)
	putCoreAsset(state)

	engine := newEngine(state)
	if _, _, err := engine.ForceSettle(requesterID(), usdBitID(), 1_000, 0); err == nil {
		t.Fatalf("expected force_settle on a not-yet-globally-settled prediction market to be rejected")
	}
	if requester.Balance(usdBitID()) != 1_000 {
		t.Fatalf("expected the rejected force_settle to leave the balance untouched, got %d", requester.Balance(usdBitID()))
	}

	bd.IsGloballySettled = true
	bd.SettlementPrice = types.Price{Base: types.AssetAmount{Asset: coreID(), Amount: 95}, Quote: types.AssetAmount{Asset: usdBitID(), Amount: 100}}
	bd.SettlementFund = 950
	if _, _, err := engine.ForceSettle(requesterID(), usdBitID(), 1_000, 0); err != nil {
		t.Fatalf("expected force_settle to succeed once the prediction market is globally settled: %v", err)
	}
	if requester.Balance(coreID()) != 950 {
		t.Fatalf("expected the requester credited 0.95 CORE per PM share, got %d", requester.Balance(coreID()))
	}
}

func TestCollateralBidRevival(t *testing.T) {
	state := newMockState()
	bd := &types.BitassetData{
		ID: bdID(), AssetID: usdBitID(), BackingAsset: coreID(),
		IsGloballySettled: true,
		SettlementPrice:   settlementPrice1to1(),
		SettlementFund:    9_000,
		MedianFeed:        types.Feed{SettlementPrice: settlementPrice1to1(), MCR: 1750},
	}
	state.PutBitasset(bd)
	asset := &types.Asset{ID: usdBitID(), BitassetID: bdID(), Dynamic: types.AssetDynamicData{CurrentSupply: 5_000}}
	state.PutAsset(asset)

	bidder := &types.Account{ID: ownerID(), Balances: map[registry.ID]types.Amount{coreID(): 20_000}}
	state.PutAccount(bidder)
	putCoreAsset(state)

	engine := newEngine(state)
	if _, err := engine.BidCollateral(ownerID(), usdBitID(), 10_000, 5_000, 0); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if bidder.Balance(coreID()) != 10_000 {
		t.Fatalf("expected collateral escrowed, got %d", bidder.Balance(coreID()))
	}

	virtual, err := engine.ProcessMaintenance(bd, asset, 1_000)
	if err != nil {
		t.Fatalf("process maintenance: %v", err)
	}
	if len(virtual) != 1 {
		t.Fatalf("expected one revival virtual op, got %d", len(virtual))
	}
	if bd.IsGloballySettled {
		t.Fatalf("expected asset revived")
	}
	if len(state.callOrders) != 1 {
		t.Fatalf("expected bid converted into a call order")
	}
}
