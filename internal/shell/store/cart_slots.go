package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// =============================================================================
// Cart Slot Functions
// =============================================================================

func getCartSlot(ctx context.Context, exec executor, key string) ([]byte, error) {
	var payload []byte
	err := exec.GetContext(ctx, &payload, `SELECT payload FROM cart_slots WHERE slot_key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetCartSlot", "cart_slot", key, "slot not found", ErrNotFound)
		}
		return nil, NewStoreError("GetCartSlot", "cart_slot", key, err.Error(), err)
	}
	return payload, nil
}

func putCartSlot(ctx context.Context, exec executor, key string, payload []byte) error {
	query := `
		INSERT INTO cart_slots (slot_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(slot_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`

	if _, err := exec.ExecContext(ctx, query, key, string(payload), formatTime(time.Now())); err != nil {
		return NewStoreError("PutCartSlot", "cart_slot", key, err.Error(), err)
	}
	return nil
}

func deleteCartSlot(ctx context.Context, exec executor, key string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM cart_slots WHERE slot_key = ?`, key)
	if err != nil {
		return NewStoreError("DeleteCartSlot", "cart_slot", key, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteCartSlot", "cart_slot", key, "slot not found", ErrNotFound)
	}
	return nil
}

func deleteCartSlotsBefore(ctx context.Context, exec executor, before time.Time) (int64, error) {
	result, err := exec.ExecContext(ctx, `DELETE FROM cart_slots WHERE updated_at < ?`, formatTime(before))
	if err != nil {
		return 0, NewStoreError("DeleteCartSlotsBefore", "cart_slot", "", err.Error(), err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// =============================================================================
// CartSlots - cart.Storage adapter
// =============================================================================

// CartSlots exposes the cart_slots table as a durable key-value slot store
// for cart.Store.
type CartSlots struct {
	store Store
}

// NewCartSlots wraps s as cart storage.
func NewCartSlots(s Store) *CartSlots {
	return &CartSlots{store: s}
}

// Read returns the payload under key, or found=false if the slot is empty.
func (c *CartSlots) Read(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.store.GetCartSlot(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

// Write replaces the payload under key.
func (c *CartSlots) Write(ctx context.Context, key string, payload []byte) error {
	return c.store.PutCartSlot(ctx, key, payload)
}
