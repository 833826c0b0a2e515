package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofrs/uuid/v5"
	_ "github.com/lib/pq"

	"github.com/carson-networks/credit-ledger/internal/config"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
	"github.com/carson-networks/credit-ledger/internal/storage/memory"
	"github.com/carson-networks/credit-ledger/internal/storage/sqlconfig"
)

type Storage struct {
	// DB is nil when the ledger lives in memory.
	DB     *sql.DB
	Ledger ledger.ILedgerStore
}

func NewStorage(env *config.Config) (*Storage, error) {
	if env.StoreDriver == config.StoreDriverMemory {
		return New(memory.New()), nil
	}

	db, err := sql.Open("postgres", env.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}

	return &Storage{
		DB:     db,
		Ledger: sqlconfig.NewStore(db),
	}, nil
}

// New wraps an existing ledger store.
func New(store ledger.ILedgerStore) *Storage {
	return &Storage{Ledger: store}
}

// Write opens a unit of work on one account, starting from a fresh snapshot.
func (s *Storage) Write(ctx context.Context, accountID uuid.UUID) (*Writer, error) {
	snapshot, err := s.Ledger.Snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return NewWriter(s.Ledger, snapshot), nil
}

func (s *Storage) Close() error {
	return s.Ledger.Close()
}
