package store

import (
	"context"
	"errors"
)

// KV is the durable key-value contract every backend implements.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	// SetMany writes all entries or none.
	SetMany(ctx context.Context, entries map[string][]byte) error
}

// CheckedKV is implemented by backends shared between service instances.
// SetManyIfUnchanged writes entries only if every key in seen still holds
// the value the caller read, nil meaning absent. Otherwise it returns
// ErrConflict and writes nothing.
type CheckedKV interface {
	SetManyIfUnchanged(ctx context.Context, seen, entries map[string][]byte) error
}

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("store changed during update")
)

const keyPrefix = "sharecrop:"

const (
	KeyFarms        = keyPrefix + "farms"
	KeyFields       = keyPrefix + "fields"
	KeyFarmerFields = keyPrefix + "farmer_fields"
	KeyOrders       = keyPrefix + "orders"
	KeyRentedFields = keyPrefix + "rented_fields"
	KeyFarmOrders   = keyPrefix + "farm_orders"
)

func NotificationsKey(userID string) string {
	return keyPrefix + "notifications:" + userID
}

func CoinsKey(userID string) string {
	return keyPrefix + "coins:" + userID
}
