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

const ordersKey = "orders"

// OrderStore holds the ordered sequence of customer orders and owns the
// derivation workflow: when an order transitions to completed, a sale record
// is materialized through the sales store, exactly once per order. The
// derivation runs on a work queue after the triggering update has committed,
// never inline with it.
type OrderStore struct {
	mu            sync.RWMutex
	kv            kv.Store
	sales         *SalesStore
	activity      activity.Logger
	logger        *zap.Logger
	storeLocation string
	orders        []domain.Order

	queue *taskQueue

	// derivingMu guards deriving, the set of order ids whose sale derivation
	// is currently in flight. It protects against reentrant scheduling (two
	// rapid completed transitions queuing two tasks for the same order), the
	// SaleCreated recheck inside deriveSale handles everything else.
	derivingMu sync.Mutex
	deriving   map[string]struct{}

	subMu   sync.Mutex
	subs    map[int]func([]domain.Order)
	nextSub int
}

// NewOrderStore loads the persisted sequence and starts the derivation
// worker. Unlike the sales store, an unreadable persisted value is an error:
// orders are live obligations and silently dropping them would lose track of
// pending derivations.
func NewOrderStore(ctx context.Context, store kv.Store, sales *SalesStore, act activity.Logger, logger *zap.Logger, storeLocation string) (*OrderStore, error) {
	if act == nil {
		act = activity.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if storeLocation == "" {
		storeLocation = "Main Store"
	}

	s := &OrderStore{
		kv:            store,
		sales:         sales,
		activity:      act,
		logger:        logger,
		storeLocation: storeLocation,
		deriving:      make(map[string]struct{}),
		subs:          make(map[int]func([]domain.Order)),
	}

	raw, ok, err := store.Get(ctx, ordersKey)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s.orders); err != nil {
			return nil, fmt.Errorf("load orders: %w", err)
		}
	}

	s.queue = newTaskQueue()
	return s, nil
}

// Add assigns a fresh id and timestamp, forces SaleCreated to false, appends
// and persists. Empty status and payment method default to pending and cash;
// anything else outside the known enums is rejected.
func (s *OrderStore) Add(ctx context.Context, input domain.OrderInput) (domain.Order, error) {
	if input.Status == "" {
		input.Status = domain.OrderStatusPending
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = domain.PaymentMethodCash
	}
	if !domain.IsValidOrderStatus(input.Status) {
		return domain.Order{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, input.Status)
	}
	if !domain.IsValidPaymentMethod(input.PaymentMethod) {
		return domain.Order{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, input.PaymentMethod)
	}

	items := make([]domain.OrderItem, len(input.Items))
	copy(items, input.Items)

	order := domain.Order{
		ID:                  xid.New("order"),
		CustomerName:        input.CustomerName,
		ContactNumber:       input.ContactNumber,
		Email:               input.Email,
		DeliveryAddress:     input.DeliveryAddress,
		Items:               items,
		SubtotalCents:       input.SubtotalCents,
		TotalCents:          input.TotalCents,
		DiscountCents:       input.DiscountCents,
		Status:              input.Status,
		PaymentMethod:       input.PaymentMethod,
		OrderDate:           time.Now().UTC(),
		Notes:               input.Notes,
		CreatedBy:           input.CreatedBy,
		FinalAmountCents:    input.FinalAmountCents,
		AdvancePaymentCents: input.AdvancePaymentCents,
		SaleCreated:         false,
	}

	s.mu.Lock()
	s.orders = append(s.orders, order)
	persistErr := s.persistLocked(ctx)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)

	actor := order.CreatedBy
	if actor == "" {
		actor = domain.DefaultActor
	}
	s.activity.Log(ctx, actor, domain.EventOrderCreated,
		fmt.Sprintf("order %s created for %s", order.ID, order.CustomerName))

	if persistErr != nil {
		s.logger.Warn("orders persist failed, in-memory state is ahead of storage",
			zap.String("order_id", order.ID),
			zap.Error(persistErr))
		return order, fmt.Errorf("%w: %v", ErrPersist, persistErr)
	}
	return order, nil
}

// Update applies the non-nil fields of patch onto the matching order as a
// shallow overwrite, persists, and schedules the sale derivation when the
// status transitions to completed on an order whose sale does not exist yet.
// The derivation sees the post-update snapshot and runs after Update returns.
func (s *OrderStore) Update(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error) {
	if patch.Status != nil && !domain.IsValidOrderStatus(*patch.Status) {
		return domain.Order{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, *patch.Status)
	}
	if patch.PaymentMethod != nil && !domain.IsValidPaymentMethod(*patch.PaymentMethod) {
		return domain.Order{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, *patch.PaymentMethod)
	}

	s.mu.Lock()
	idx := -1
	for i := range s.orders {
		if s.orders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return domain.Order{}, ErrNotFound
	}

	previous := s.orders[idx]
	updated := applyPatch(previous, patch)
	s.orders[idx] = updated
	persistErr := s.persistLocked(ctx)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)

	statusChanged := patch.Status != nil && previous.Status != updated.Status
	if statusChanged {
		actor := updated.CreatedBy
		if actor == "" {
			actor = domain.DefaultActor
		}
		s.activity.Log(ctx, actor, domain.EventOrderStatusUpdated,
			fmt.Sprintf("order %s status %s -> %s", updated.ID, previous.Status, updated.Status))
	}

	if statusChanged && updated.Status == domain.OrderStatusCompleted && !updated.SaleCreated {
		derived := updated
		s.queue.Enqueue(func() { s.deriveSale(derived) })
	}

	if persistErr != nil {
		s.logger.Warn("orders persist failed, in-memory state is ahead of storage",
			zap.String("order_id", updated.ID),
			zap.Error(persistErr))
		return updated, fmt.Errorf("%w: %v", ErrPersist, persistErr)
	}
	return updated, nil
}

// Delete logs the deletion when the order exists, then removes it. The log
// emission and the removal are separate steps; the activity logger is
// fire-and-forget, so removal always proceeds.
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	var existing *domain.Order
	for i := range s.orders {
		if s.orders[i].ID == id {
			order := s.orders[i]
			existing = &order
			break
		}
	}
	s.mu.RUnlock()

	if existing != nil {
		actor := existing.CreatedBy
		if actor == "" {
			actor = domain.DefaultActor
		}
		s.activity.Log(ctx, actor, domain.EventOrderDeleted,
			fmt.Sprintf("order %s deleted", id))
	}

	s.mu.Lock()
	kept := s.orders[:0]
	for _, order := range s.orders {
		if order.ID != id {
			kept = append(kept, order)
		}
	}
	s.orders = kept
	persistErr := s.persistLocked(ctx)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)

	if persistErr != nil {
		s.logger.Warn("orders persist failed after delete",
			zap.String("order_id", id),
			zap.Error(persistErr))
		return fmt.Errorf("%w: %v", ErrPersist, persistErr)
	}
	return nil
}

// GetByID scans the sequence for the first matching order.
func (s *OrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, order := range s.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return domain.Order{}, ErrNotFound
}

// List returns a snapshot copy of the sequence in insertion order.
func (s *OrderStore) List(_ context.Context) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to be called with a snapshot after every commit.
// The returned func unregisters it.
func (s *OrderStore) Subscribe(fn func([]domain.Order)) func() {
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

// Flush blocks until every derivation scheduled so far has run.
func (s *OrderStore) Flush() {
	s.queue.Flush()
}

// Close drains pending derivations and stops the worker.
func (s *OrderStore) Close() {
	s.queue.Close()
}

// deriveSale materializes the sale for a completed order. Runs on the queue
// worker. The in-flight marker plus the SaleCreated recheck make the
// derivation idempotent: two queued tasks for the same order yield one sale.
func (s *OrderStore) deriveSale(order domain.Order) {
	ctx := context.Background()

	s.derivingMu.Lock()
	if _, busy := s.deriving[order.ID]; busy {
		s.derivingMu.Unlock()
		return
	}
	s.deriving[order.ID] = struct{}{}
	s.derivingMu.Unlock()

	defer func() {
		s.derivingMu.Lock()
		delete(s.deriving, order.ID)
		s.derivingMu.Unlock()
	}()

	current, err := s.GetByID(ctx, order.ID)
	if err != nil || current.SaleCreated || current.Status != domain.OrderStatusCompleted {
		return
	}

	items := make([]domain.SaleItem, 0, len(current.Items))
	for _, item := range current.Items {
		items = append(items, domain.SaleItem{
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceCents: item.PriceCents,
		})
	}

	paymentReceived := current.AdvancePaymentCents
	if paymentReceived == 0 {
		paymentReceived = current.FinalAmountCents
	}
	cashier := current.CreatedBy
	if cashier == "" {
		cashier = domain.DefaultCashier
	}

	sale, err := s.sales.Add(ctx, domain.SaleInput{
		Items:                items,
		SubtotalCents:        current.TotalCents,
		TotalCents:           current.FinalAmountCents,
		DiscountCents:        current.DiscountCents,
		PaymentReceivedCents: paymentReceived,
		ChangeCents:          0,
		Cashier:              cashier,
		StoreLocation:        s.storeLocation,
	})
	if err != nil {
		// The sale is committed in memory even when its persist failed;
		// the order is still considered materialized.
		s.logger.Warn("derived sale persist failed",
			zap.String("order_id", current.ID),
			zap.String("sale_id", sale.ID),
			zap.Error(err))
	}

	s.activity.Log(ctx, cashier, domain.EventSaleCreatedFromOrder,
		fmt.Sprintf("sale %s created from order %s", sale.ID, current.ID))

	s.markSaleCreated(ctx, current.ID)
}

func (s *OrderStore) markSaleCreated(ctx context.Context, id string) {
	s.mu.Lock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].SaleCreated = true
			break
		}
	}
	persistErr := s.persistLocked(ctx)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)

	if persistErr != nil {
		s.logger.Warn("orders persist failed after sale derivation",
			zap.String("order_id", id),
			zap.Error(persistErr))
	}
}

func applyPatch(order domain.Order, patch domain.OrderPatch) domain.Order {
	if patch.CustomerName != nil {
		order.CustomerName = *patch.CustomerName
	}
	if patch.ContactNumber != nil {
		order.ContactNumber = *patch.ContactNumber
	}
	if patch.Email != nil {
		order.Email = *patch.Email
	}
	if patch.DeliveryAddress != nil {
		order.DeliveryAddress = *patch.DeliveryAddress
	}
	if patch.Items != nil {
		items := make([]domain.OrderItem, len(*patch.Items))
		copy(items, *patch.Items)
		order.Items = items
	}
	if patch.SubtotalCents != nil {
		order.SubtotalCents = *patch.SubtotalCents
	}
	if patch.TotalCents != nil {
		order.TotalCents = *patch.TotalCents
	}
	if patch.DiscountCents != nil {
		order.DiscountCents = *patch.DiscountCents
	}
	if patch.Status != nil {
		order.Status = *patch.Status
	}
	if patch.PaymentMethod != nil {
		order.PaymentMethod = *patch.PaymentMethod
	}
	if patch.Notes != nil {
		order.Notes = *patch.Notes
	}
	if patch.FinalAmountCents != nil {
		order.FinalAmountCents = *patch.FinalAmountCents
	}
	if patch.AdvancePaymentCents != nil {
		order.AdvancePaymentCents = *patch.AdvancePaymentCents
	}
	return order
}

func (s *OrderStore) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(s.orders)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, ordersKey, string(payload))
}

func (s *OrderStore) snapshotLocked() []domain.Order {
	snapshot := make([]domain.Order, len(s.orders))
	copy(snapshot, s.orders)
	return snapshot
}

func (s *OrderStore) notify(snapshot []domain.Order) {
	s.subMu.Lock()
	listeners := make([]func([]domain.Order), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
