// Package state keeps the per-stream cursor, cooldown marker and last alerted
// value on top of a small key-value backend with TTL support.
//
// Every entry is addressed by a typed Key (chain, stream, field) so streams and
// chains can be added without key collisions. Each stream owns its keys
// exclusively; the store itself does no locking beyond what the backend's single
// operations guarantee.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nft-alerts/internal/market"
)

// ErrUnknownStream is returned for streams the store does not recognise.
var ErrUnknownStream = errors.New("state: unknown stream")

// Backend is the key-value cache the store is built on. A zero ttl means the
// value never expires. Get reports ok=false for absent or expired keys.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Field names one entry of a stream's state.
type Field string

const (
	FieldCursor    Field = "cursor"
	FieldCooldown  Field = "cooldown"
	FieldLastValue Field = "last_value"
)

// Key addresses a single state entry.
type Key struct {
	Chain  string
	Stream market.Stream
	Field  Field
}

func (k Key) String() string {
	return fmt.Sprintf("%s%s:%s", KeyPrefix(k.Chain), k.Stream, k.Field)
}

// KeyPrefix is the common prefix of every key of a chain.
func KeyPrefix(chain string) string {
	return "nftalerts:" + chain + ":"
}

// Cursor is the persisted id of the newest event already processed for a stream.
// Set is false for the null cursor: never polled, or reset after a gap.
type Cursor struct {
	Stream     market.Stream
	LastSeenID string
	Set        bool
}

// StreamState is a read-only view of everything stored for one stream.
type StreamState struct {
	Cursor         Cursor
	CooldownActive bool
	LastValue      decimal.NullDecimal
}

// Store is the typed facade over a Backend for one chain.
type Store struct {
	backend Backend
	chain   string
}

// NewStore binds a backend to a chain namespace.
func NewStore(backend Backend, chain string) *Store {
	return &Store{backend: backend, chain: chain}
}

// Chain returns the namespace the store writes under.
func (s *Store) Chain() string { return s.chain }

func (s *Store) key(stream market.Stream, field Field) (string, error) {
	if _, err := market.ParseStream(string(stream)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	return Key{Chain: s.chain, Stream: stream, Field: field}.String(), nil
}

// Cursor loads a stream's cursor.
func (s *Store) Cursor(ctx context.Context, stream market.Stream) (Cursor, error) {
	key, err := s.key(stream, FieldCursor)
	if err != nil {
		return Cursor{}, err
	}
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return Cursor{}, fmt.Errorf("get cursor %s: %w", stream, err)
	}
	if !ok || value == "" {
		return Cursor{Stream: stream}, nil
	}
	return Cursor{Stream: stream, LastSeenID: value, Set: true}, nil
}

// SetCursor records id as the newest processed event.
func (s *Store) SetCursor(ctx context.Context, stream market.Stream, id string) error {
	if id == "" {
		return fmt.Errorf("set cursor %s: empty id", stream)
	}
	key, err := s.key(stream, FieldCursor)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, key, id, 0); err != nil {
		return fmt.Errorf("set cursor %s: %w", stream, err)
	}
	return nil
}

// ClearCursor returns a stream to its first-run state.
func (s *Store) ClearCursor(ctx context.Context, stream market.Stream) error {
	key, err := s.key(stream, FieldCursor)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear cursor %s: %w", stream, err)
	}
	return nil
}

// CooldownActive reports whether the stream's cooldown marker is present.
func (s *Store) CooldownActive(ctx context.Context, stream market.Stream) (bool, error) {
	key, err := s.key(stream, FieldCooldown)
	if err != nil {
		return false, err
	}
	_, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get cooldown %s: %w", stream, err)
	}
	return ok, nil
}

// ArmCooldown sets the cooldown marker for ttl. A non-positive ttl disables the
// cooldown by removing any marker.
func (s *Store) ArmCooldown(ctx context.Context, stream market.Stream, ttl time.Duration) error {
	key, err := s.key(stream, FieldCooldown)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		if err := s.backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear cooldown %s: %w", stream, err)
		}
		return nil
	}
	if err := s.backend.Set(ctx, key, "true", ttl); err != nil {
		return fmt.Errorf("arm cooldown %s: %w", stream, err)
	}
	return nil
}

// LastValue loads the last alerted value. ok is false when nothing has been
// alerted yet or the stored value is unreadable.
func (s *Store) LastValue(ctx context.Context, stream market.Stream) (decimal.Decimal, bool, error) {
	key, err := s.key(stream, FieldLastValue)
	if err != nil {
		return decimal.Zero, false, err
	}
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get last value %s: %w", stream, err)
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, nil
	}
	return value, true, nil
}

// SetLastValue records the value of the latest alert.
func (s *Store) SetLastValue(ctx context.Context, stream market.Stream, value decimal.Decimal) error {
	key, err := s.key(stream, FieldLastValue)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, key, value.String(), 0); err != nil {
		return fmt.Errorf("set last value %s: %w", stream, err)
	}
	return nil
}

// Snapshot reads every entry of a stream.
func (s *Store) Snapshot(ctx context.Context, stream market.Stream) (StreamState, error) {
	cursor, err := s.Cursor(ctx, stream)
	if err != nil {
		return StreamState{}, err
	}
	active, err := s.CooldownActive(ctx, stream)
	if err != nil {
		return StreamState{}, err
	}
	value, ok, err := s.LastValue(ctx, stream)
	if err != nil {
		return StreamState{}, err
	}
	return StreamState{
		Cursor:         cursor,
		CooldownActive: active,
		LastValue:      decimal.NullDecimal{Decimal: value, Valid: ok},
	}, nil
}

// Reset removes every entry of a stream.
func (s *Store) Reset(ctx context.Context, stream market.Stream) error {
	for _, field := range []Field{FieldCursor, FieldCooldown, FieldLastValue} {
		key, err := s.key(stream, field)
		if err != nil {
			return err
		}
		if err := s.backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset %s %s: %w", stream, field, err)
		}
	}
	return nil
}
