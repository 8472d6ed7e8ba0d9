package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

// Store exposes the typed marketplace collections on top of a KV backend.
// Every user-scoped call takes the user id explicitly.
type Store struct {
	kv            KV
	log           *logger.Logger
	startingCoins int64

	// serializes read-modify-write cycles made through Update
	mu sync.Mutex
}

func New(kv KV, log *logger.Logger, startingCoins int64) *Store {
	return &Store{kv: kv, log: log, startingCoins: startingCoins}
}

func (s *Store) KV() KV {
	return s.kv
}

const maxUpdateAttempts = 5

// Update runs fn against a staged view of the store and commits every
// staged write in one SetMany call. If fn or the commit fails, nothing is
// applied. On a CheckedKV backend the commit is rejected when another
// writer changed a key fn read, and fn is run again on fresh data, so fn
// must not have side effects outside tx.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	checked, shared := s.kv.(CheckedKV)
	for attempt := 1; ; attempt++ {
		tx := &Tx{ctx: ctx, s: s, staged: make(map[string][]byte), seen: make(map[string][]byte)}
		if err := fn(tx); err != nil {
			return err
		}
		if len(tx.staged) == 0 {
			return nil
		}

		var err error
		if shared {
			err = checked.SetManyIfUnchanged(ctx, tx.seen, tx.staged)
		} else {
			err = s.kv.SetMany(ctx, tx.staged)
		}
		if errors.Is(err, ErrConflict) && attempt < maxUpdateAttempts {
			s.log.LogStore("RETRY", fmt.Sprintf("%d keys", len(tx.staged)), fmt.Sprintf("conflict on attempt %d", attempt))
			continue
		}
		if err != nil {
			return fmt.Errorf("commit %d keys: %w", len(tx.staged), err)
		}
		s.log.LogStore("COMMIT", fmt.Sprintf("%d keys", len(tx.staged)), "batch written")
		return nil
	}
}

// View runs fn against the current state without staging writes.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return fn(&Tx{ctx: ctx, s: s, readOnly: true})
}

// Tx is a staged unit of work handed to Update.
type Tx struct {
	ctx      context.Context
	s        *Store
	staged   map[string][]byte
	seen     map[string][]byte
	readOnly bool
}

func (tx *Tx) read(key string) ([]byte, bool, error) {
	if v, ok := tx.staged[key]; ok {
		return v, true, nil
	}
	v, ok, err := tx.s.kv.Get(tx.ctx, key)
	if err != nil {
		return nil, false, err
	}
	if tx.seen != nil {
		if _, recorded := tx.seen[key]; !recorded {
			tx.seen[key] = v
		}
	}
	return v, ok, nil
}

func (tx *Tx) stage(key string, v any) error {
	if tx.readOnly {
		return fmt.Errorf("write to %s in read-only view", key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tx.staged[key] = data
	return nil
}

// loadList decodes a JSON list. A missing key yields an empty list; an
// unparseable value is logged and treated as empty.
func loadList[T any](tx *Tx, key string) ([]T, error) {
	raw, ok, err := tx.read(key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		tx.s.log.Warn("STORE", fmt.Sprintf("corrupt value at %s, using empty list: %v", key, err))
		return []T{}, nil
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (tx *Tx) Farms() ([]models.Farm, error) { return loadList[models.Farm](tx, KeyFarms) }

func (tx *Tx) PutFarms(farms []models.Farm) error { return tx.stage(KeyFarms, farms) }

func (tx *Tx) Fields() ([]models.Listing, error) { return loadList[models.Listing](tx, KeyFields) }

func (tx *Tx) PutFields(fields []models.Listing) error { return tx.stage(KeyFields, fields) }

func (tx *Tx) FarmerFields() ([]models.Listing, error) {
	return loadList[models.Listing](tx, KeyFarmerFields)
}

func (tx *Tx) PutFarmerFields(fields []models.Listing) error {
	return tx.stage(KeyFarmerFields, fields)
}

func (tx *Tx) Orders() ([]models.Order, error) { return loadList[models.Order](tx, KeyOrders) }

func (tx *Tx) PutOrders(orders []models.Order) error { return tx.stage(KeyOrders, orders) }

func (tx *Tx) RentedFields() ([]models.RentedField, error) {
	return loadList[models.RentedField](tx, KeyRentedFields)
}

func (tx *Tx) PutRentedFields(fields []models.RentedField) error {
	return tx.stage(KeyRentedFields, fields)
}

func (tx *Tx) FarmOrders() ([]models.FarmOrder, error) {
	return loadList[models.FarmOrder](tx, KeyFarmOrders)
}

func (tx *Tx) PutFarmOrders(orders []models.FarmOrder) error {
	return tx.stage(KeyFarmOrders, orders)
}

func (tx *Tx) Notifications(userID string) ([]models.Notification, error) {
	return loadList[models.Notification](tx, NotificationsKey(userID))
}

func (tx *Tx) PutNotifications(userID string, notes []models.Notification) error {
	return tx.stage(NotificationsKey(userID), notes)
}

// Coins returns the user's balance, or the starting balance for a new or
// unreadable wallet.
func (tx *Tx) Coins(userID string) (int64, error) {
	key := CoinsKey(userID)
	raw, ok, err := tx.read(key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return tx.s.startingCoins, nil
	}
	var coins int64
	if err := json.Unmarshal(raw, &coins); err != nil {
		tx.s.log.Warn("STORE", fmt.Sprintf("corrupt value at %s, using starting balance: %v", key, err))
		return tx.s.startingCoins, nil
	}
	return coins, nil
}

func (tx *Tx) PutCoins(userID string, coins int64) error {
	return tx.stage(CoinsKey(userID), coins)
}

// Convenience wrappers over View/Update.

func (s *Store) Farms(ctx context.Context) (farms []models.Farm, err error) {
	err = s.View(ctx, func(tx *Tx) error { farms, err = tx.Farms(); return err })
	return farms, err
}

func (s *Store) UserFarms(ctx context.Context, ownerID string) ([]models.Farm, error) {
	farms, err := s.Farms(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Farm{}
	for _, f := range farms {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) AddFarm(ctx context.Context, farm models.Farm) error {
	return s.Update(ctx, func(tx *Tx) error {
		farms, err := tx.Farms()
		if err != nil {
			return err
		}
		return tx.PutFarms(append(farms, farm))
	})
}

func (s *Store) Fields(ctx context.Context) (fields []models.Listing, err error) {
	err = s.View(ctx, func(tx *Tx) error { fields, err = tx.Fields(); return err })
	return fields, err
}

func (s *Store) AddField(ctx context.Context, field models.Listing) error {
	return s.Update(ctx, func(tx *Tx) error {
		fields, err := tx.Fields()
		if err != nil {
			return err
		}
		return tx.PutFields(append(fields, field))
	})
}

// UpdateField replaces the stored field with the same id.
func (s *Store) UpdateField(ctx context.Context, field models.Listing) error {
	return s.Update(ctx, func(tx *Tx) error {
		fields, err := tx.Fields()
		if err != nil {
			return err
		}
		for i := range fields {
			if fields[i].ID == field.ID {
				fields[i] = field
				return tx.PutFields(fields)
			}
		}
		return fmt.Errorf("field %s: %w", field.ID, ErrNotFound)
	})
}

func (s *Store) FarmerFields(ctx context.Context) (fields []models.Listing, err error) {
	err = s.View(ctx, func(tx *Tx) error { fields, err = tx.FarmerFields(); return err })
	return fields, err
}

func (s *Store) AddFarmerField(ctx context.Context, field models.Listing) error {
	return s.Update(ctx, func(tx *Tx) error {
		fields, err := tx.FarmerFields()
		if err != nil {
			return err
		}
		return tx.PutFarmerFields(append(fields, field))
	})
}

func (s *Store) Orders(ctx context.Context) (orders []models.Order, err error) {
	err = s.View(ctx, func(tx *Tx) error { orders, err = tx.Orders(); return err })
	return orders, err
}

func (s *Store) UserOrders(ctx context.Context, buyerID string) ([]models.Order, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Order{}
	for _, o := range orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) AddOrder(ctx context.Context, order models.Order) error {
	return s.Update(ctx, func(tx *Tx) error {
		orders, err := tx.Orders()
		if err != nil {
			return err
		}
		return tx.PutOrders(append(orders, order))
	})
}

func (s *Store) UpdateOrder(ctx context.Context, order models.Order) error {
	return s.Update(ctx, func(tx *Tx) error {
		orders, err := tx.Orders()
		if err != nil {
			return err
		}
		for i := range orders {
			if orders[i].ID == order.ID {
				orders[i] = order
				return tx.PutOrders(orders)
			}
		}
		return fmt.Errorf("order %s: %w", order.ID, ErrNotFound)
	})
}

func (s *Store) RentedFields(ctx context.Context) (fields []models.RentedField, err error) {
	err = s.View(ctx, func(tx *Tx) error { fields, err = tx.RentedFields(); return err })
	return fields, err
}

func (s *Store) UserRentedFields(ctx context.Context, renterID string) ([]models.RentedField, error) {
	fields, err := s.RentedFields(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.RentedField{}
	for _, f := range fields {
		if f.RenterID == renterID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) AddRentedField(ctx context.Context, field models.RentedField) error {
	return s.Update(ctx, func(tx *Tx) error {
		fields, err := tx.RentedFields()
		if err != nil {
			return err
		}
		return tx.PutRentedFields(append(fields, field))
	})
}

func (s *Store) FarmOrders(ctx context.Context) (orders []models.FarmOrder, err error) {
	err = s.View(ctx, func(tx *Tx) error { orders, err = tx.FarmOrders(); return err })
	return orders, err
}

func (s *Store) FarmerFarmOrders(ctx context.Context, farmerID string) ([]models.FarmOrder, error) {
	orders, err := s.FarmOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.FarmOrder{}
	for _, o := range orders {
		if o.FarmerID == farmerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) AddFarmOrder(ctx context.Context, order models.FarmOrder) error {
	return s.Update(ctx, func(tx *Tx) error {
		orders, err := tx.FarmOrders()
		if err != nil {
			return err
		}
		return tx.PutFarmOrders(append(orders, order))
	})
}

func (s *Store) UpdateFarmOrder(ctx context.Context, order models.FarmOrder) error {
	return s.Update(ctx, func(tx *Tx) error {
		orders, err := tx.FarmOrders()
		if err != nil {
			return err
		}
		for i := range orders {
			if orders[i].ID == order.ID {
				orders[i] = order
				return tx.PutFarmOrders(orders)
			}
		}
		return fmt.Errorf("farm order %s: %w", order.ID, ErrNotFound)
	})
}

func (s *Store) Notifications(ctx context.Context, userID string) (notes []models.Notification, err error) {
	err = s.View(ctx, func(tx *Tx) error { notes, err = tx.Notifications(userID); return err })
	return notes, err
}

func (s *Store) AddNotification(ctx context.Context, n models.Notification) error {
	return s.Update(ctx, func(tx *Tx) error {
		notes, err := tx.Notifications(n.UserID)
		if err != nil {
			return err
		}
		return tx.PutNotifications(n.UserID, append(notes, n))
	})
}

// MarkNotificationRead flips the read flag. Unknown ids are not an error.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return s.Update(ctx, func(tx *Tx) error {
		notes, err := tx.Notifications(userID)
		if err != nil {
			return err
		}
		for i := range notes {
			if notes[i].ID == notificationID {
				if notes[i].Read {
					return nil
				}
				notes[i].Read = true
				return tx.PutNotifications(userID, notes)
			}
		}
		return nil
	})
}

func (s *Store) Coins(ctx context.Context, userID string) (coins int64, err error) {
	err = s.View(ctx, func(tx *Tx) error { coins, err = tx.Coins(userID); return err })
	return coins, err
}

func (s *Store) SetCoins(ctx context.Context, userID string, coins int64) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.PutCoins(userID, coins) })
}
