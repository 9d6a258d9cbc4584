package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// =============================================================================
// Storage Port
// =============================================================================

// Storage is a durable key-value slot store.
// Read reports found=false when nothing has been written under key.
type Storage interface {
	Read(ctx context.Context, key string) (payload []byte, found bool, err error)
	Write(ctx context.Context, key string, payload []byte) error
}

// PersistError is returned by a mutation whose in-memory change succeeded
// but could not be written to storage.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist cart %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Store
// =============================================================================

// Store is the authoritative cart for one key.
// It is not safe for concurrent use; give each owner its own Store.
type Store struct {
	storage Storage
	key     string
	logger  *slog.Logger

	items  []LineItem
	loaded bool

	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn func([]LineItem)
}

// New creates a cart store for key. A nil storage disables persistence.
func New(storage Storage, key string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage:     storage,
		key:         key,
		logger:      logger.With("cart_key", key),
		items:       []LineItem{},
	}
}

// Key returns the slot key this store persists to.
func (s *Store) Key() string {
	return s.key
}

// Load reads the persisted snapshot into memory. Only the first call does
// any work. A missing, unreadable or malformed snapshot leaves the cart
// empty and is logged, never returned.
func (s *Store) Load(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	if s.storage == nil {
		return
	}

	payload, found, err := s.storage.Read(ctx, s.key)
	if err != nil {
		s.logger.Warn("cart snapshot unreadable, starting empty", "error", err)
		return
	}
	if !found || len(payload) == 0 {
		return
	}

	var items []LineItem
	if err := json.Unmarshal(payload, &items); err != nil {
		s.logger.Warn("cart snapshot malformed, starting empty", "error", err)
		return
	}
	if err := validateSnapshot(items); err != nil {
		s.logger.Warn("cart snapshot rejected, starting empty", "error", err)
		return
	}

	if len(items) == 0 {
		return
	}
	for i := range items {
		items[i].Quantity = ClampQuantity(items[i].Quantity)
	}
	s.items = items
	s.notify()
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of distinct line items.
func (s *Store) Len() int {
	return len(s.items)
}

// Count returns the total number of units across all line items.
func (s *Store) Count() int {
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// =============================================================================
// Mutations
// =============================================================================
//
// Each mutation loads the persisted snapshot first if Load has not run, so a
// fresh Store never overwrites a saved cart. A non-nil error is always a
// *PersistError: the change is kept in memory regardless.

// AddItem increments the quantity of product if present, otherwise appends
// it. Deltas are clamped like quantities and the merged quantity saturates
// at MaxQuantity.
func (s *Store) AddItem(ctx context.Context, p Product, quantityDelta int) error {
	s.Load(ctx)

	delta := ClampQuantity(quantityDelta)
	if i := s.indexOf(p.ID); i >= 0 {
		s.items[i].Quantity = addQuantity(s.items[i].Quantity, delta)
	} else {
		s.items = append(s.items, LineItem{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			ImageRef:    p.ImageRef,
			UnitPrice:   p.UnitPrice,
			Quantity:    delta,
		})
	}
	return s.commit(ctx)
}

// UpdateQuantity sets the quantity of id to quantity clamped into
// [MinQuantity, MaxQuantity].
// An absent id is a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	s.Load(ctx)

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	quantity = ClampQuantity(quantity)
	if s.items[i].Quantity == quantity {
		return nil
	}
	s.items[i].Quantity = quantity
	return s.commit(ctx)
}

// RemoveItem deletes id from the cart. An absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.Load(ctx)

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return s.commit(ctx)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.Load(ctx)

	if len(s.items) == 0 {
		return nil
	}
	s.items = []LineItem{}
	return s.commit(ctx)
}

// =============================================================================
// Subscriptions
// =============================================================================

// Subscribe registers fn to receive a snapshot after every change.
// Subscribers are called in the order they subscribed. The returned
// function removes the subscription; calling it again is a no-op.
func (s *Store) Subscribe(fn func([]LineItem)) (unsubscribe func()) {
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// =============================================================================
// Internal
// =============================================================================

func (s *Store) indexOf(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// commit persists and notifies after a state change.
func (s *Store) commit(ctx context.Context) error {
	err := s.persist(ctx)
	s.notify()
	return err
}

// persist writes the current list to storage. Without storage it does nothing.
func (s *Store) persist(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	payload, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("failed to encode cart", "error", err)
		return &PersistError{Key: s.key, Err: err}
	}

	if err := s.storage.Write(ctx, s.key, payload); err != nil {
		s.logger.Error("failed to persist cart", "error", err)
		return &PersistError{Key: s.key, Err: err}
	}
	return nil
}

func (s *Store) notify() {
	if len(s.subscribers) == 0 {
		return
	}
	for _, sub := range s.subscribers {
		sub.fn(s.Items())
	}
}
