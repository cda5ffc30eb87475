// Package orderbook implements limit-order insertion, cancellation, and
// price-time walk-matching (§4.4), grounded on native/escrow.TradeEngine's
// two-leg settlement math (computeSettlementAmounts' floor-rounded cross
// multiplication, slippage-style bounds checking) generalized from a
// single bilateral trade to a standing, price-sorted book.
package orderbook

import (
	"sort"

	cerrors "github.com/litepresence/bitshares-core/core/errors"
	"github.com/litepresence/bitshares-core/core/registry"
	"github.com/litepresence/bitshares-core/core/types"
)

// PairKey identifies one side of a market: orders selling Sell for
// Receive.
type PairKey struct {
	Sell    registry.ID
	Receive registry.ID
}

// Book holds all resting limit orders, indexed per (sell,receive) pair
// and kept sorted best-price-first, oldest-first on ties — which,
// because registry ids are allocated monotonically, is simply ascending
// order id (§4.4 tie-break rule).
type Book struct {
	orders map[registry.ID]*types.LimitOrder
	index  map[PairKey][]registry.ID
}

// New returns an empty book.
func New() *Book {
	return &Book{orders: make(map[registry.ID]*types.LimitOrder), index: make(map[PairKey][]registry.ID)}
}

func keyOf(o *types.LimitOrder) PairKey {
	return PairKey{Sell: o.SellAsset(), Receive: o.ReceiveAsset()}
}

// Insert adds order to the book. The caller has already allocated
// order.ID from the registry, so insertion order is implied by id order.
func (b *Book) Insert(order *types.LimitOrder) error {
	if order.ForSale <= 0 {
		return cerrors.New(cerrors.Validation, "orderbook.insert", "for_sale must be positive")
	}
	if !order.SellPrice.Invertible() {
		return cerrors.New(cerrors.Validation, "orderbook.insert", "sell price must be strictly positive on both sides")
	}
	if order.SellAsset() == order.ReceiveAsset() {
		return cerrors.New(cerrors.Validation, "orderbook.insert", "sell and receive asset must differ")
	}
	pk := keyOf(order)
	b.orders[order.ID] = order
	list := append(b.index[pk], order.ID)
	sortPair(b.orders, list)
	b.index[pk] = list
	return nil
}

// sortPair sorts ids best-price-first (descending sell price — more
// units of Sell offered per unit of Receive is better for a taker), then
// oldest-first (ascending id) on ties.
func sortPair(orders map[registry.ID]*types.LimitOrder, ids []registry.ID) {
	sort.Slice(ids, func(i, j int) bool {
		oi, oj := orders[ids[i]], orders[ids[j]]
		cmp, err := types.Compare(oi.SellPrice, oj.SellPrice)
		if err != nil || cmp != 0 {
			return cmp > 0
		}
		return ids[i].Instance < ids[j].Instance
	})
}

// Remove deletes order id from the book and returns it.
func (b *Book) Remove(id registry.ID) (*types.LimitOrder, error) {
	order, ok := b.orders[id]
	if !ok {
		return nil, cerrors.New(cerrors.Validation, "orderbook.remove", "order not found")
	}
	delete(b.orders, id)
	pk := keyOf(order)
	list := b.index[pk]
	for i, oid := range list {
		if oid == id {
			b.index[pk] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return order, nil
}

// Get returns the live order at id.
func (b *Book) Get(id registry.ID) (*types.LimitOrder, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Best returns the best (highest sell-price, oldest-on-tie) resting order
// selling sellAsset for receiveAsset.
func (b *Book) Best(sellAsset, receiveAsset registry.ID) (*types.LimitOrder, bool) {
	list := b.index[PairKey{Sell: sellAsset, Receive: receiveAsset}]
	if len(list) == 0 {
		return nil, false
	}
	return b.orders[list[0]], true
}

// FillLeg describes one side of an executed trade.
type FillLeg struct {
	OrderID       registry.ID
	Account       registry.ID
	Paid          types.AssetAmount
	ReceivedGross types.AssetAmount
	Fee           types.Amount
	ReceivedNet   types.AssetAmount
	FullyFilled   bool
}

// FeeRate resolves the market fee (per-mille) charged on the asset an
// account receives in a fill.
type FeeRate func(asset registry.ID) uint32

// crosses reports whether a (sell A, receive B) crosses b (sell B,
// receive A): a.sell_price >= invert(b.sell_price), per §4.4 rule 1.
func crosses(a, b *types.LimitOrder) bool {
	invB, err := b.SellPrice.Invert()
	if err != nil {
		return false
	}
	cmp, err := types.Compare(a.SellPrice, invB)
	return err == nil && cmp >= 0
}

// makerPrice returns the resting price to fill at: the older (lower id)
// order's sell price, re-expressed as (sell a.SellAsset / receive
// a.ReceiveAsset) regardless of which side is maker.
func makerPrice(a, b *types.LimitOrder) types.Price {
	var maker *types.LimitOrder
	if a.ID.Instance <= b.ID.Instance {
		maker = a
	} else {
		maker = b
	}
	if maker == a {
		return a.SellPrice
	}
	inv, _ := maker.SellPrice.Invert()
	return inv
}

// matchOnce executes a single fill between crossing orders a (sells A for
// B) and b (sells B for A) at the maker's price, floor-rounding the
// smaller side's counter-amount (§4.4 rule 4) and writing off any
// resulting dust. feeRate, when non-nil, deducts a market fee from each
// side's gross receipt (§4.4 rule 5).
func matchOnce(a, b *types.LimitOrder, feeRate FeeRate) (FillLeg, FillLeg, error) {
	price := makerPrice(a, b) // Base=A, Quote=B
	invPrice, err := price.Invert()
	if err != nil {
		return FillLeg{}, FillLeg{}, cerrors.New(cerrors.Consistency, "orderbook.match", "maker price not invertible")
	}

	aReceivesForAll, err := price.Multiply(types.AssetAmount{Asset: price.Base.Asset, Amount: a.ForSale})
	if err != nil {
		return FillLeg{}, FillLeg{}, err
	}

	var aPay, bPay types.Amount
	var aFullyFilled, bFullyFilled bool
	if aReceivesForAll.Amount <= b.ForSale {
		aPay = a.ForSale
		bPay = aReceivesForAll.Amount
		aFullyFilled = true
		bFullyFilled = bPay == b.ForSale
	} else {
		bPay = b.ForSale
		bReceivesForAll, err := invPrice.Multiply(types.AssetAmount{Asset: invPrice.Base.Asset, Amount: b.ForSale})
		if err != nil {
			return FillLeg{}, FillLeg{}, err
		}
		aPay = bReceivesForAll.Amount
		bFullyFilled = true
		aFullyFilled = false
	}

	a.ForSale -= aPay
	b.ForSale -= bPay

	aFee := marketFee(feeRate, price.Quote.Asset, bPay)
	bFee := marketFee(feeRate, price.Base.Asset, aPay)

	legA := FillLeg{
		OrderID:       a.ID,
		Account:       a.Seller,
		Paid:          types.AssetAmount{Asset: price.Base.Asset, Amount: aPay},
		ReceivedGross: types.AssetAmount{Asset: price.Quote.Asset, Amount: bPay},
		Fee:           aFee,
		ReceivedNet:   types.AssetAmount{Asset: price.Quote.Asset, Amount: bPay - aFee},
		FullyFilled:   aFullyFilled,
	}
	legB := FillLeg{
		OrderID:       b.ID,
		Account:       b.Seller,
		Paid:          types.AssetAmount{Asset: price.Quote.Asset, Amount: bPay},
		ReceivedGross: types.AssetAmount{Asset: price.Base.Asset, Amount: aPay},
		Fee:           bFee,
		ReceivedNet:   types.AssetAmount{Asset: price.Base.Asset, Amount: aPay - bFee},
		FullyFilled:   bFullyFilled,
	}
	return legA, legB, nil
}

// marketFee computes floor(amount*rate/1000); a resulting dust fee below
// 1 unit is written off (rounds to 0), matching §4.4 rule 5.
func marketFee(feeRate FeeRate, asset registry.ID, amount types.Amount) types.Amount {
	if feeRate == nil || amount <= 0 {
		return 0
	}
	rate := feeRate(asset)
	if rate == 0 {
		return 0
	}
	fee := int64(amount) * int64(rate) / 1000
	return types.Amount(fee)
}

// MatchAll walks every crossing pair in the book from best outward,
// executing fills until no pair crosses or one side of each pair is
// exhausted. It returns the fills in the order they were executed.
func (b *Book) MatchAll(feeRate FeeRate) ([]FillLeg, []FillLeg, error) {
	var legsSell, legsReceive []FillLeg
	progressed := true
	for progressed {
		progressed = false
		for pk := range b.index {
			opp := PairKey{Sell: pk.Receive, Receive: pk.Sell}
			for {
				a, ok1 := b.Best(pk.Sell, pk.Receive)
				bo, ok2 := b.Best(opp.Sell, opp.Receive)
				if !ok1 || !ok2 || !crosses(a, bo) {
					break
				}
				legA, legB, err := matchOnce(a, bo, feeRate)
				if err != nil {
					return legsSell, legsReceive, err
				}
				legsSell = append(legsSell, legA)
				legsReceive = append(legsReceive, legB)
				progressed = true
				if a.ForSale == 0 {
					b.Remove(a.ID)
				}
				if bo.ForSale == 0 {
					b.Remove(bo.ID)
				}
				if a.ForSale > 0 && bo.ForSale > 0 {
					// Remaining amount too small to cross further at
					// this price pairing; re-sort and continue outer
					// loop rather than spin on the same pair.
					break
				}
			}
		}
	}
	return legsSell, legsReceive, nil
}

// matchPairOnly repeatedly matches order against the best resting
// counter-order until it stops crossing or order is exhausted, without
// touching any other pair in the book.
func (b *Book) matchPairOnly(order *types.LimitOrder, feeRate FeeRate) ([]FillLeg, []FillLeg, error) {
	var legsOrder, legsCounter []FillLeg
	for order.ForSale > 0 {
		opp, ok := b.Best(order.ReceiveAsset(), order.SellAsset())
		if !ok || !crosses(order, opp) {
			break
		}
		legA, legB, err := matchOnce(order, opp, feeRate)
		if err != nil {
			return legsOrder, legsCounter, err
		}
		legsOrder = append(legsOrder, legA)
		legsCounter = append(legsCounter, legB)
		if opp.ForSale == 0 {
			b.Remove(opp.ID)
		}
	}
	return legsOrder, legsCounter, nil
}

// SubmitLimitOrder inserts order and immediately matches it against the
// resting book (§4.4). A fill-or-kill order that is not fully filled is
// removed and the operation fails (§4.4 fill-or-kill rule, §8 boundary:
// FOK on an empty book rejects; on an exactly matching book fills
// fully).
func (b *Book) SubmitLimitOrder(order *types.LimitOrder, feeRate FeeRate) ([]FillLeg, []FillLeg, error) {
	if err := b.Insert(order); err != nil {
		return nil, nil, err
	}
	legsOrder, legsCounter, err := b.matchPairOnly(order, feeRate)
	if err != nil {
		return nil, nil, err
	}
	if order.ForSale == 0 {
		b.Remove(order.ID)
		return legsOrder, legsCounter, nil
	}
	if order.FillOrKill {
		b.Remove(order.ID)
		return nil, nil, cerrors.New(cerrors.Lifecycle, "orderbook.submit", "fill-or-kill order not fully filled")
	}
	return legsOrder, legsCounter, nil
}

// CancelReturnsEscrow reports the full remaining for_sale amount that
// cancellation returns to the seller (§8 R2): cancellation never retains
// any of it.
func CancelReturnsEscrow(order *types.LimitOrder) types.AssetAmount {
	return types.AssetAmount{Asset: order.SellAsset(), Amount: order.ForSale}
}
