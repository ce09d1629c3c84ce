package store

import (
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
)

// buyLess orders the buy side: price descending, then created_at
// ascending, then contract order id ascending. Ascend() therefore
// visits the best bid first with strict FIFO inside a price level.
func buyLess(a, b *domain.IndexEntry) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ContractOrderID < b.ContractOrderID
}

// sellLess orders the sell side: price ascending, then created_at
// ascending, then contract order id ascending.
func sellLess(a, b *domain.IndexEntry) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ContractOrderID < b.ContractOrderID
}

// propertyBook holds both sides of one property's mirrored order state
// plus a secondary index for O(log n) access by contract order id.
type propertyBook struct {
	buys  *btree.BTreeG[*domain.IndexEntry]
	sells *btree.BTreeG[*domain.IndexEntry]
	byID  map[uint64]*domain.IndexEntry
}

func newPropertyBook() *propertyBook {
	const degree = 32
	return &propertyBook{
		buys:  btree.NewG[*domain.IndexEntry](degree, buyLess),
		sells: btree.NewG[*domain.IndexEntry](degree, sellLess),
		byID:  make(map[uint64]*domain.IndexEntry),
	}
}

func (b *propertyBook) tree(side domain.OrderSide) *btree.BTreeG[*domain.IndexEntry] {
	if side == domain.OrderSideBuy {
		return b.buys
	}
	return b.sells
}

// IndexStore is the off-chain mirror of on-chain order state: the
// canonical source for order queries. Entries enter only through
// Upsert with authority-confirmed state; matching never reads the
// chain directly.
type IndexStore struct {
	mu    sync.RWMutex
	books map[string]*propertyBook
}

// NewIndexStore creates an empty index.
func NewIndexStore() *IndexStore {
	return &IndexStore{books: make(map[string]*propertyBook)}
}

// book returns the property's book, creating it on first use. Callers
// must hold the write lock: the lazy insert mutates s.books.
func (s *IndexStore) book(propertyID string) *propertyBook {
	b, ok := s.books[propertyID]
	if !ok {
		b = newPropertyBook()
		s.books[propertyID] = b
	}
	return b
}

// lookup returns the property's book without creating one, safe under
// the read lock.
func (s *IndexStore) lookup(propertyID string) (*propertyBook, bool) {
	b, ok := s.books[propertyID]
	return b, ok
}

// Upsert inserts or replaces the mirror entry for a confirmed order
// state. Never called speculatively: the caller must hold a state the
// authority has confirmed. A confirmed upsert clears any
// pending-confirmation mark.
func (s *IndexStore) Upsert(entry domain.IndexEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.PendingConfirm = false
	b := s.book(entry.PropertyID)
	if prev, ok := b.byID[entry.ContractOrderID]; ok {
		b.tree(prev.Side).Delete(prev)
	}
	e := &entry
	b.byID[entry.ContractOrderID] = e
	b.tree(entry.Side).ReplaceOrInsert(e)
}

// Get returns a copy of the entry for the given contract order id.
func (s *IndexStore) Get(propertyID string, orderID uint64) (domain.IndexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.lookup(propertyID)
	if !ok {
		return domain.IndexEntry{}, false
	}
	e, ok := b.byID[orderID]
	if !ok {
		return domain.IndexEntry{}, false
	}
	return *e, true
}

// Delete purges an entry, typically a detected phantom. Reports whether
// an entry existed.
func (s *IndexStore) Delete(propertyID string, orderID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.lookup(propertyID)
	if !ok {
		return false
	}
	e, ok := b.byID[orderID]
	if !ok {
		return false
	}
	delete(b.byID, orderID)
	b.tree(e.Side).Delete(e)
	return true
}

// MarkCancelled flags an entry as cancelled without waiting for the
// next reconciliation pass, so it stops serving as a maker candidate
// promptly.
func (s *IndexStore) MarkCancelled(propertyID string, orderID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.lookup(propertyID)
	if !ok {
		return
	}
	if e, ok := b.byID[orderID]; ok {
		e.Status = domain.OrderStatusCancelled
	}
}

// MarkPending flags an entry whose last execution attempt had an
// unknown outcome (timeout). It is excluded from matching until a
// confirmed upsert or reconciliation clears it.
func (s *IndexStore) MarkPending(propertyID string, orderID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.lookup(propertyID)
	if !ok {
		return
	}
	if e, ok := b.byID[orderID]; ok {
		e.PendingConfirm = true
	}
}

// QueryOpen returns matchable entries on the given side, best price
// first with FIFO inside a price level. priceBound trims the walk: for
// sells only entries priced at or below the bound are returned, for
// buys at or above. A nil bound returns the whole side. limit 0 means
// no limit.
func (s *IndexStore) QueryOpen(propertyID string, side domain.OrderSide, priceBound *decimal.Decimal, limit int) []domain.IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.lookup(propertyID)
	if !ok {
		return nil
	}

	var out []domain.IndexEntry
	b.tree(side).Ascend(func(e *domain.IndexEntry) bool {
		if priceBound != nil {
			if side == domain.OrderSideSell && e.Price.GreaterThan(*priceBound) {
				return false
			}
			if side == domain.OrderSideBuy && e.Price.LessThan(*priceBound) {
				return false
			}
		}
		if !e.Matchable() {
			return true
		}
		out = append(out, *e)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// All returns copies of every entry for the property, used by
// reconciliation.
func (s *IndexStore) All(propertyID string) []domain.IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.lookup(propertyID)
	if !ok {
		return nil
	}
	out := make([]domain.IndexEntry, 0, len(b.byID))
	for _, e := range b.byID {
		out = append(out, *e)
	}
	return out
}

// Len returns the number of mirrored entries for the property.
func (s *IndexStore) Len(propertyID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.lookup(propertyID)
	if !ok {
		return 0
	}
	return len(b.byID)
}
