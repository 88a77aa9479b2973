package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/kkkkikiki/groupbuy/internal/model"
	"github.com/kkkkikiki/groupbuy/internal/repository"
)

// memLedger is an in-memory stand-in for the PostgreSQL ledger. Units of work
// are serialised behind one mutex and roll back by restoring a snapshot, which
// is enough to observe atomicity and the counter rules without a database.
type memLedger struct {
	mu    sync.Mutex
	state *ledgerState

	// hooks run once, right before the named store call, and act like a
	// concurrent writer that committed first: they survive a rollback
	hooks map[string]func(s *ledgerState)
	// failures make the named store call return the error once
	failures map[string]error
	// commitErr makes the next Commit fail and roll back
	commitErr error

	begins int
}

type ledgerState struct {
	campaigns map[string]model.Campaign
	offers    map[string]model.Offer
	orders    map[string]model.Order
	clock     time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{
		state: &ledgerState{
			campaigns: make(map[string]model.Campaign),
			offers:    make(map[string]model.Offer),
			orders:    make(map[string]model.Order),
			clock:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		hooks:    make(map[string]func(s *ledgerState)),
		failures: make(map[string]error),
	}
}

func (s *ledgerState) clone() *ledgerState {
	c := &ledgerState{
		campaigns: make(map[string]model.Campaign, len(s.campaigns)),
		offers:    make(map[string]model.Offer, len(s.offers)),
		orders:    make(map[string]model.Order, len(s.orders)),
		clock:     s.clock,
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.offers {
		c.offers[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// tick advances the ledger clock so rows get distinct, ordered timestamps
func (s *ledgerState) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (l *memLedger) putCampaign(c model.Campaign) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.campaigns[c.ID] = c
}

func (l *memLedger) putOffer(o model.Offer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.offers[o.ID] = o
}

func (l *memLedger) campaign(id string) model.Campaign {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.campaigns[id]
}

func (l *memLedger) offer(id string) model.Offer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.offers[id]
}

func (l *memLedger) orders() []model.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Order, 0, len(l.state.orders))
	for _, o := range l.state.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *memLedger) beginCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.begins
}

func (l *memLedger) hook(op string, fn func(s *ledgerState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks[op] = fn
}

func (l *memLedger) fail(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = err
}

// before runs with the state already locked. snapshot is nil outside a unit of work.
func (l *memLedger) before(op string, snapshot *ledgerState) error {
	if fn, ok := l.hooks[op]; ok {
		delete(l.hooks, op)
		fn(l.state)
		if snapshot != nil {
			fn(snapshot)
		}
	}
	if err, ok := l.failures[op]; ok {
		delete(l.failures, op)
		return err
	}
	return nil
}

// Begin implements UnitOfWorkFactory
func (l *memLedger) Begin(ctx context.Context) (repository.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	l.mu.Lock()
	l.begins++
	return &memTx{ledger: l, snapshot: l.state.clone()}, nil
}

// Reader implements UnitOfWorkFactory
func (l *memLedger) Reader() repository.DBExecutor {
	return &memReader{ledger: l}
}

var errRawSQL = errors.New("memory ledger does not execute SQL")

// memExecutor gives the memory stores access to the ledger state under the
// right locking for the executor they were handed
type memExecutor interface {
	repository.DBExecutor
	with(op string, fn func(s *ledgerState) error) error
}

type rawSQL struct{}

func (rawSQL) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errRawSQL
}

func (rawSQL) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errRawSQL
}

func (rawSQL) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errRawSQL
}

type memReader struct {
	rawSQL
	ledger *memLedger
}

func (r *memReader) with(op string, fn func(s *ledgerState) error) error {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	if err := r.ledger.before(op, nil); err != nil {
		return err
	}
	return fn(r.ledger.state)
}

type memTx struct {
	rawSQL
	ledger   *memLedger
	snapshot *ledgerState
	done     bool
}

func (t *memTx) with(op string, fn func(s *ledgerState) error) error {
	if t.done {
		return sql.ErrTxDone
	}
	if err := t.ledger.before(op, t.snapshot); err != nil {
		return err
	}
	return fn(t.ledger.state)
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	defer t.ledger.mu.Unlock()
	if err := t.ledger.commitErr; err != nil {
		t.ledger.commitErr = nil
		t.ledger.state = t.snapshot
		return err
	}
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.ledger.state = t.snapshot
	t.ledger.mu.Unlock()
	return nil
}

func executor(db repository.DBExecutor) memExecutor {
	return db.(memExecutor)
}

func floorAdd(v, delta int64) int64 {
	if v+delta < 0 {
		return 0
	}
	return v + delta
}

// memCampaigns implements CampaignStore
type memCampaigns struct{}

func (memCampaigns) GetCampaign(ctx context.Context, db repository.DBExecutor, id string) (*model.Campaign, error) {
	var out *model.Campaign
	err := executor(db).with("GetCampaign", func(s *ledgerState) error {
		c, ok := s.campaigns[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (memCampaigns) IncrementTotals(ctx context.Context, db repository.DBExecutor, id string, d repository.CampaignDeltas) error {
	if d == (repository.CampaignDeltas{}) {
		return nil
	}
	return executor(db).with("IncrementTotals", func(s *ledgerState) error {
		c, ok := s.campaigns[id]
		if !ok {
			return repository.ErrNotFound
		}
		c.TotalOrderedQuantity = floorAdd(c.TotalOrderedQuantity, d.Ordered)
		c.TotalConfirmedQuantity = floorAdd(c.TotalConfirmedQuantity, d.Confirmed)
		c.ParticipantCount = floorAdd(c.ParticipantCount, d.Participants)
		c.UpdatedAt = s.tick()
		s.campaigns[id] = c
		return nil
	})
}

// memOffers implements OfferStore
type memOffers struct{}

func (memOffers) GetOffer(ctx context.Context, db repository.DBExecutor, id string) (*model.Offer, error) {
	var out *model.Offer
	err := executor(db).with("GetOffer", func(s *ledgerState) error {
		o, ok := s.offers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (memOffers) IncrementOrdered(ctx context.Context, db repository.DBExecutor, id string, delta int64) (*model.Offer, error) {
	var out *model.Offer
	err := executor(db).with("IncrementOrdered", func(s *ledgerState) error {
		o, ok := s.offers[id]
		if !ok {
			return repository.ErrNotFound
		}
		if !o.MaxTotalQuantity.Admits(o.OrderedQuantity, delta) {
			return repository.ErrConditionFailed
		}
		o.OrderedQuantity = floorAdd(o.OrderedQuantity, delta)
		o.UpdatedAt = s.tick()
		s.offers[id] = o
		out = &o
		return nil
	})
	return out, err
}

func (memOffers) IncrementConfirmed(ctx context.Context, db repository.DBExecutor, id string, delta int64) (*model.Offer, error) {
	var out *model.Offer
	err := executor(db).with("IncrementConfirmed", func(s *ledgerState) error {
		o, ok := s.offers[id]
		if !ok {
			return repository.ErrNotFound
		}
		o.ConfirmedQuantity = floorAdd(o.ConfirmedQuantity, delta)
		o.UpdatedAt = s.tick()
		s.offers[id] = o
		out = &o
		return nil
	})
	return out, err
}

func (memOffers) TransitionStatus(ctx context.Context, db repository.DBExecutor, id string, from, to model.OfferStatus) error {
	return executor(db).with("OfferTransitionStatus", func(s *ledgerState) error {
		o, ok := s.offers[id]
		if !ok || o.Status != from {
			return repository.ErrConditionFailed
		}
		o.Status = to
		o.UpdatedAt = s.tick()
		s.offers[id] = o
		return nil
	})
}

// memOrders implements OrderStore
type memOrders struct{}

func activeOrder(s *ledgerState, offerID, participantID string) (model.Order, bool) {
	for _, o := range s.orders {
		if o.OfferID == offerID && o.ParticipantID == participantID && o.Status != model.OrderStatusCancelled {
			return o, true
		}
	}
	return model.Order{}, false
}

func (memOrders) CreateOrder(ctx context.Context, db repository.DBExecutor, order *model.Order) error {
	return executor(db).with("CreateOrder", func(s *ledgerState) error {
		if _, exists := activeOrder(s, order.OfferID, order.ParticipantID); exists {
			return repository.ErrActiveOrderExists
		}
		now := s.tick()
		order.CreatedAt, order.UpdatedAt = now, now
		s.orders[order.ID] = *order
		return nil
	})
}

func (memOrders) GetOrder(ctx context.Context, db repository.DBExecutor, id string) (*model.Order, error) {
	var out *model.Order
	err := executor(db).with("GetOrder", func(s *ledgerState) error {
		o, ok := s.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (memOrders) FindActiveOrder(ctx context.Context, db repository.DBExecutor, offerID, participantID string) (*model.Order, error) {
	var out *model.Order
	err := executor(db).with("FindActiveOrder", func(s *ledgerState) error {
		o, ok := activeOrder(s, offerID, participantID)
		if !ok {
			return repository.ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (memOrders) LockActiveOrder(ctx context.Context, db repository.DBExecutor, offerID, participantID string) (*model.Order, error) {
	var out *model.Order
	err := executor(db).with("LockActiveOrder", func(s *ledgerState) error {
		o, ok := activeOrder(s, offerID, participantID)
		if !ok {
			return repository.ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (memOrders) HasOtherCampaignOrder(ctx context.Context, db repository.DBExecutor, campaignID, participantID, excludeID string) (bool, error) {
	var seen bool
	err := executor(db).with("HasOtherCampaignOrder", func(s *ledgerState) error {
		for _, o := range s.orders {
			if o.CampaignID == campaignID && o.ParticipantID == participantID && o.ID != excludeID {
				seen = true
				return nil
			}
		}
		return nil
	})
	return seen, err
}

func (memOrders) UpdateOrder(ctx context.Context, db repository.DBExecutor, id string, quantity int64, orderedBy *string, metadata types.NullJSONText) (*model.Order, error) {
	var out *model.Order
	err := executor(db).with("UpdateOrder", func(s *ledgerState) error {
		o, ok := s.orders[id]
		if !ok || o.Status != model.OrderStatusPending {
			return repository.ErrConditionFailed
		}
		o.Quantity = quantity
		if orderedBy != nil {
			by := *orderedBy
			o.OrderedBy = &by
		}
		if metadata.Valid {
			o.Metadata = metadata
		}
		o.UpdatedAt = s.tick()
		s.orders[id] = o
		out = &o
		return nil
	})
	return out, err
}

func (memOrders) TransitionStatus(ctx context.Context, db repository.DBExecutor, id string, from, to model.OrderStatus, fulfillmentOrderID *string) (*model.Order, error) {
	var out *model.Order
	err := executor(db).with("OrderTransitionStatus", func(s *ledgerState) error {
		o, ok := s.orders[id]
		if !ok || o.Status != from {
			return repository.ErrConditionFailed
		}
		o.Status = to
		if fulfillmentOrderID != nil {
			linkage := *fulfillmentOrderID
			o.FulfillmentOrderID = &linkage
		}
		o.UpdatedAt = s.tick()
		s.orders[id] = o
		out = &o
		return nil
	})
	return out, err
}

func (memOrders) list(db repository.DBExecutor, match func(o model.Order) bool) ([]model.Order, error) {
	out := make([]model.Order, 0)
	err := executor(db).with("ListOrders", func(s *ledgerState) error {
		for _, o := range s.orders {
			if match(o) {
				out = append(out, o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func matchesFilter(f model.OrderFilter, o model.Order) bool {
	return (f.CampaignID == "" || o.CampaignID == f.CampaignID) &&
		(f.Status == "" || o.Status == f.Status) &&
		(f.SupplierID == "" || o.SupplierID == f.SupplierID)
}

func (m memOrders) ListOrdersByParticipant(ctx context.Context, db repository.DBExecutor, participantID string, filter model.OrderFilter) ([]model.Order, error) {
	return m.list(db, func(o model.Order) bool {
		return o.ParticipantID == participantID && matchesFilter(filter, o)
	})
}

func (m memOrders) ListOrdersByCampaign(ctx context.Context, db repository.DBExecutor, campaignID string, filter model.OrderFilter) ([]model.Order, error) {
	filter.CampaignID = ""
	return m.list(db, func(o model.Order) bool {
		return o.CampaignID == campaignID && matchesFilter(filter, o)
	})
}

func (memOrders) QuantitySummary(ctx context.Context, db repository.DBExecutor, campaignID string) (*model.QuantitySummary, error) {
	summary := &model.QuantitySummary{
		BySupplier: make([]model.SupplierQuantity, 0),
		ByProduct:  make([]model.ProductQuantity, 0),
	}
	err := executor(db).with("QuantitySummary", func(s *ledgerState) error {
		bySupplier := make(map[string]int64)
		byProduct := make(map[[2]string]int64)
		for _, o := range s.orders {
			if o.CampaignID != campaignID || o.Status == model.OrderStatusCancelled {
				continue
			}
			summary.TotalQuantity += o.Quantity
			bySupplier[o.SupplierID] += o.Quantity
			byProduct[[2]string{s.offers[o.OfferID].ProductID, o.SupplierID}] += o.Quantity
		}
		for supplier, q := range bySupplier {
			summary.BySupplier = append(summary.BySupplier, model.SupplierQuantity{SupplierID: supplier, Quantity: q})
		}
		for key, q := range byProduct {
			summary.ByProduct = append(summary.ByProduct, model.ProductQuantity{ProductID: key[0], SupplierID: key[1], Quantity: q})
		}
		return nil
	})
	sort.Slice(summary.BySupplier, func(i, j int) bool { return summary.BySupplier[i].SupplierID < summary.BySupplier[j].SupplierID })
	sort.Slice(summary.ByProduct, func(i, j int) bool {
		a, b := summary.ByProduct[i], summary.ByProduct[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.SupplierID < b.SupplierID
	})
	return summary, err
}

func (memOrders) QuantityByParticipant(ctx context.Context, db repository.DBExecutor, campaignID string) ([]model.ParticipantQuantity, error) {
	totals := make(map[string]int64)
	err := executor(db).with("QuantityByParticipant", func(s *ledgerState) error {
		for _, o := range s.orders {
			if o.CampaignID == campaignID && o.Status != model.OrderStatusCancelled {
				totals[o.ParticipantID] += o.Quantity
			}
		}
		return nil
	})
	out := make([]model.ParticipantQuantity, 0, len(totals))
	for p, q := range totals {
		out = append(out, model.ParticipantQuantity{ParticipantID: p, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, err
}
