package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

type kvEntry struct {
	bun.BaseModel `bun:"table:kv_entries"`

	Key       string    `bun:"entry_key,pk"`
	Value     string    `bun:"entry_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLKV stores entries in the kv_entries table through bun. Works on
// sqlite and postgres.
type SQLKV struct {
	Bun *bun.DB
}

func NewSQLKV(db *bun.DB) *SQLKV {
	return &SQLKV{Bun: db}
}

// CreateTable creates kv_entries when migrations are not used (sqlite, tests).
func (s *SQLKV) CreateTable(ctx context.Context) error {
	_, err := s.Bun.NewCreateTable().Model((*kvEntry)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry kvEntry
	err := s.Bun.NewSelect().
		Model(&entry).
		Where("entry_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(entry.Value), true, nil
}

func (s *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	return upsert(ctx, s.Bun, key, value)
}

func (s *SQLKV) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.Bun.NewSelect().
		Model((*kvEntry)(nil)).
		Column("entry_key").
		Where("entry_key LIKE ?", prefix+"%").
		Order("entry_key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *SQLKV) SetMany(ctx context.Context, entries map[string][]byte) error {
	return s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for k, v := range entries {
			if err := upsert(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(ctx context.Context, db bun.IDB, key string, value []byte) error {
	entry := kvEntry{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	_, err := db.NewInsert().
		Model(&entry).
		On("CONFLICT (entry_key) DO UPDATE").
		Set("entry_value = EXCLUDED.entry_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
