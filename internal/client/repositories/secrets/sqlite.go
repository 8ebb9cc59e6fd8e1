package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizkeeper/internal/common"
	"github.com/dmitrijs2005/bizkeeper/internal/cryptox"
	"github.com/dmitrijs2005/bizkeeper/internal/dbx"
)

type SQLiteStore struct {
	db dbx.DBTX
	sealer
}

// NewSQLiteStore returns a store over db. When key is nil values are kept as is.
func NewSQLiteStore(db dbx.DBTX, key []byte) *SQLiteStore {
	return &SQLiteStore{db: db, sealer: sealer{key: key}}
}

// OpenSQLiteStore returns a sealed store whose key is derived from
// deviceSecret and a per-database salt. The salt is created on first use in
// the same transaction that reads it, so concurrent first opens agree.
// An empty deviceSecret yields an unsealed store.
func OpenSQLiteStore(ctx context.Context, db *sql.DB, deviceSecret []byte) (*SQLiteStore, error) {
	if len(deviceSecret) == 0 {
		return NewSQLiteStore(db, nil), nil
	}

	var salt []byte
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		raw := NewSQLiteStore(tx, nil)
		v, err := raw.Get(ctx, common.SecretKeyStoreSalt)
		if err != nil {
			return err
		}
		if v == nil {
			v = common.GenerateRandByteArray(16)
			if err := raw.Set(ctx, common.SecretKeyStoreSalt, v); err != nil {
				return err
			}
		}
		salt = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init store salt: %w", err)
	}

	return NewSQLiteStore(db, cryptox.DeriveKey(deviceSecret, salt)), nil
}

func (r *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret[%s]: %w", key, err)
	}
	return r.open(key, value)
}

func (r *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := r.seal(key, value)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO secrets (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, sealed)
	if err != nil {
		return fmt.Errorf("failed to set secret[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete secret[%s]: %w", key, err)
	}
	return nil
}
