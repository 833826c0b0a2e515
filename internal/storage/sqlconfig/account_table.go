package sqlconfig

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

const accountsTable = "ledger_accounts"

// accountRow is the per-account concurrency token plus the sequence and clock
// high-water marks writers continue from.
type accountRow struct {
	AccountID     uuid.UUID `db:"account_id"`
	Version       int64     `db:"version"`
	LastSequence  int64     `db:"last_sequence"`
	LastCreatedAt time.Time `db:"last_created_at"`
}

// AccountsTable provides access to the ledger_accounts table.
type AccountsTable struct{}

// Find returns the account's row, or a zero-version row when the account has
// never been written.
func (AccountsTable) Find(ctx context.Context, exec bob.Executor, accountID uuid.UUID) (*accountRow, error) {
	query := psql.Select(
		sm.Columns("account_id", "version", "last_sequence", "last_created_at"),
		sm.From(accountsTable),
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
	)
	row, err := bob.One(ctx, exec, query, scan.StructMapper[accountRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return &accountRow{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, err
	}
	row.LastCreatedAt = row.LastCreatedAt.UTC()
	return &row, nil
}

// Advance moves the account from expectedVersion to expectedVersion+1. It
// reports false when another writer got there first.
func (AccountsTable) Advance(ctx context.Context, exec bob.Executor, accountID uuid.UUID, expectedVersion, lastSequence int64, lastCreatedAt time.Time) (bool, error) {
	var query bob.Query
	if expectedVersion == 0 {
		query = psql.Insert(
			im.Into(accountsTable, "account_id", "version", "last_sequence", "last_created_at"),
			im.Values(psql.Arg(accountID, 1, lastSequence, lastCreatedAt)),
			im.OnConflict("account_id").DoNothing(),
		)
	} else {
		query = psql.Update(
			um.Table(accountsTable),
			um.SetCol("version").ToArg(expectedVersion+1),
			um.SetCol("last_sequence").ToArg(lastSequence),
			um.SetCol("last_created_at").ToArg(lastCreatedAt),
			um.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
			um.Where(psql.Quote("version").EQ(psql.Arg(expectedVersion))),
		)
	}

	result, err := bob.Exec(ctx, exec, query)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func batchHighWater(batch *ledger.Batch) (int64, time.Time) {
	var (
		seq int64
		at  time.Time
	)
	for _, tx := range batch.Transactions {
		seq = max(seq, tx.Sequence)
		if tx.CreatedAt.After(at) {
			at = tx.CreatedAt
		}
	}
	return seq, at
}
