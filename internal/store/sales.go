package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/easytech-h/fashion-to-yoncell/internal/activity"
	"github.com/easytech-h/fashion-to-yoncell/internal/domain"
	"github.com/easytech-h/fashion-to-yoncell/internal/kv"
	"github.com/easytech-h/fashion-to-yoncell/internal/xid"
)

const salesKey = "sales"

// SalesStore holds the ordered sequence of completed sales. Append-only from
// its own perspective: records are never updated, only added or cleared.
type SalesStore struct {
	mu       sync.RWMutex
	kv       kv.Store
	activity activity.Logger
	logger   *zap.Logger
	sales    []domain.Sale

	subMu   sync.Mutex
	subs    map[int]func([]domain.Sale)
	nextSub int
}

// NewSalesStore loads the persisted sequence. An absent key starts the store
// empty; so does an unreadable value, which is logged and discarded rather
// than propagated.
func NewSalesStore(ctx context.Context, store kv.Store, act activity.Logger, logger *zap.Logger) (*SalesStore, error) {
	if act == nil {
		act = activity.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SalesStore{
		kv:       store,
		activity: act,
		logger:   logger,
		subs:     make(map[int]func([]domain.Sale)),
	}

	raw, ok, err := store.Get(ctx, salesKey)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s.sales); err != nil {
			logger.Warn("persisted sales unreadable, starting empty", zap.Error(err))
			s.sales = nil
		}
	}

	return s, nil
}

// Add fills missing numeric fields with zero, assigns a fresh id and the
// current timestamp, appends and persists. The returned sale is committed in
// memory even when the returned error is non-nil; an error matching
// ErrPersist means only the persisted copy is behind.
func (s *SalesStore) Add(ctx context.Context, input domain.SaleInput) (domain.Sale, error) {
	items := make([]domain.SaleItem, len(input.Items))
	copy(items, input.Items)

	sale := domain.Sale{
		ID:                   xid.New("sale"),
		Items:                items,
		SubtotalCents:        input.SubtotalCents,
		TotalCents:           input.TotalCents,
		DiscountCents:        input.DiscountCents,
		PaymentReceivedCents: input.PaymentReceivedCents,
		ChangeCents:          input.ChangeCents,
		Date:                 time.Now().UTC(),
		Cashier:              input.Cashier,
		StoreLocation:        input.StoreLocation,
	}

	s.mu.Lock()
	s.sales = append(s.sales, sale)
	persistErr := s.persistLocked(ctx)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)

	actor := sale.Cashier
	if actor == "" {
		actor = domain.DefaultActor
	}
	s.activity.Log(ctx, actor, domain.EventSaleRecorded,
		fmt.Sprintf("sale %s recorded, total %d", sale.ID, sale.TotalCents))

	if persistErr != nil {
		s.logger.Warn("sales persist failed, in-memory state is ahead of storage",
			zap.String("sale_id", sale.ID),
			zap.Error(persistErr))
		return sale, fmt.Errorf("%w: %v", ErrPersist, persistErr)
	}
	return sale, nil
}

// GetByID scans the sequence for the first matching sale.
func (s *SalesStore) GetByID(_ context.Context, id string) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id {
			return sale, nil
		}
	}
	return domain.Sale{}, ErrNotFound
}

// List returns a snapshot copy of the sequence in insertion order.
func (s *SalesStore) List(_ context.Context) []domain.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Clear resets the sequence and removes the persisted key. The in-memory
// clear happens regardless of whether the removal succeeds.
func (s *SalesStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.sales = nil
	deleteErr := s.kv.Delete(ctx, salesKey)
	s.mu.Unlock()

	s.notify(nil)
	s.activity.Log(ctx, domain.DefaultActor, domain.EventSalesCleared, "all sales cleared")

	if deleteErr != nil {
		s.logger.Warn("clearing persisted sales failed", zap.Error(deleteErr))
		return fmt.Errorf("%w: %v", ErrPersist, deleteErr)
	}
	return nil
}

// Subscribe registers fn to be called with a snapshot after every commit.
// The returned func unregisters it.
func (s *SalesStore) Subscribe(fn func([]domain.Sale)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *SalesStore) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(s.sales)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, salesKey, string(payload))
}

func (s *SalesStore) snapshotLocked() []domain.Sale {
	snapshot := make([]domain.Sale, len(s.sales))
	copy(snapshot, s.sales)
	return snapshot
}

func (s *SalesStore) notify(snapshot []domain.Sale) {
	s.subMu.Lock()
	listeners := make([]func([]domain.Sale), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
