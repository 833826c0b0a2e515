package sqlconfig

import (
	"context"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

const transactionsTable = "credit_transactions"

var transactionColumns = []string{
	"id", "account_id", "sequence", "type", "amount",
	"description", "expiration_date", "idempotency_key", "created_at",
}

type transactionRow struct {
	ID             uuid.UUID           `db:"id"`
	AccountID      uuid.UUID           `db:"account_id"`
	Sequence       int64               `db:"sequence"`
	Type           int16               `db:"type"`
	Amount         int64               `db:"amount"`
	Description    string              `db:"description"`
	ExpirationDate null.Val[time.Time] `db:"expiration_date"`
	IdempotencyKey null.Val[string]    `db:"idempotency_key"`
	CreatedAt      time.Time           `db:"created_at"`
}

// entryRow is a transaction left-joined with the lot it opened.
type entryRow struct {
	transactionRow
	LotOriginalAmount null.Val[int64]     `db:"lot_original_amount"`
	LotRemaining      null.Val[int64]     `db:"lot_remaining"`
	LotExpirationDate null.Val[time.Time] `db:"lot_expiration_date"`
	LotState          null.Val[int16]     `db:"lot_state"`
	LotCreatedAt      null.Val[time.Time] `db:"lot_created_at"`
}

func rowToTransaction(row *transactionRow) *ledger.Transaction {
	tx := &ledger.Transaction{
		ID:          row.ID,
		AccountID:   row.AccountID,
		Sequence:    row.Sequence,
		Type:        ledger.TransactionType(row.Type),
		Amount:      row.Amount,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if exp, ok := row.ExpirationDate.Get(); ok {
		exp = exp.UTC()
		tx.ExpirationDate = &exp
	}
	if key, ok := row.IdempotencyKey.Get(); ok {
		tx.IdempotencyKey = key
	}
	return tx
}

func rowToEntry(row *entryRow) *ledger.Entry {
	entry := &ledger.Entry{Transaction: rowToTransaction(&row.transactionRow)}
	remaining, ok := row.LotRemaining.Get()
	if !ok {
		return entry
	}
	lot := &ledger.Lot{
		LotID:          row.ID,
		AccountID:      row.AccountID,
		OriginalAmount: row.LotOriginalAmount.GetOrZero(),
		Remaining:      remaining,
		State:          ledger.LotState(row.LotState.GetOrZero()),
		CreatedAt:      row.LotCreatedAt.GetOrZero().UTC(),
	}
	if exp, ok := row.LotExpirationDate.Get(); ok {
		exp = exp.UTC()
		lot.ExpirationDate = &exp
	}
	entry.Lot = lot
	return entry
}

// TransactionsTable reads and appends rows of credit_transactions.
type TransactionsTable struct{}

// Insert appends the transactions in one statement.
func (TransactionsTable) Insert(ctx context.Context, exec bob.Executor, txs []*ledger.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	queryMods := []bob.Mod[*dialect.InsertQuery]{
		im.Into(transactionsTable, transactionColumns...),
	}
	for _, tx := range txs {
		queryMods = append(queryMods, im.Values(psql.Arg(
			tx.ID,
			tx.AccountID,
			tx.Sequence,
			int16(tx.Type),
			tx.Amount,
			tx.Description,
			null.FromPtr(tx.ExpirationDate),
			nullString(tx.IdempotencyKey),
			tx.CreatedAt,
		)))
	}
	_, err := bob.Exec(ctx, exec, psql.Insert(queryMods...))
	return err
}

// List returns one page of the account's transactions with their lots, newest first.
func (TransactionsTable) List(ctx context.Context, exec bob.Executor, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	query := psql.Select(
		sm.Columns(
			"t.id", "t.account_id", "t.sequence", "t.type", "t.amount",
			"t.description", "t.expiration_date", "t.idempotency_key", "t.created_at",
			"l.original_amount AS lot_original_amount",
			"l.remaining AS lot_remaining",
			"l.expiration_date AS lot_expiration_date",
			"l.state AS lot_state",
			"l.created_at AS lot_created_at",
		),
		sm.From(transactionsTable+" t"),
		sm.LeftJoin(lotsTable+" l").On(psql.Raw("l.lot_id = t.id")),
		sm.Where(psql.Quote("t", "account_id").EQ(psql.Arg(accountID))),
		sm.OrderBy(psql.Quote("t", "created_at")).Desc(),
		sm.OrderBy(psql.Quote("t", "sequence")).Desc(),
		sm.Limit(limit),
		sm.Offset(offset),
	)

	rows, err := bob.All(ctx, exec, query, scan.StructMapper[entryRow]())
	if err != nil {
		return nil, err
	}
	entries := make([]*ledger.Entry, len(rows))
	for i := range rows {
		entries[i] = rowToEntry(&rows[i])
	}
	return entries, nil
}

// Count returns how many transactions the account has.
func (TransactionsTable) Count(ctx context.Context, exec bob.Executor, accountID uuid.UUID) (int64, error) {
	query := psql.Select(
		sm.Columns("count(*)"),
		sm.From(transactionsTable),
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
	)
	return bob.One(ctx, exec, query, scan.SingleColumnMapper[int64])
}

// FindByIdempotencyKey returns ledger.ErrNotFound when the key is unused.
func (TransactionsTable) FindByIdempotencyKey(ctx context.Context, exec bob.Executor, accountID uuid.UUID, key string) (*ledger.Transaction, error) {
	query := psql.Select(
		sm.Columns(columnList(transactionColumns)...),
		sm.From(transactionsTable),
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
		sm.Where(psql.Quote("idempotency_key").EQ(psql.Arg(key))),
	)
	rows, err := bob.All(ctx, exec, query, scan.StructMapper[transactionRow]())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ledger.ErrNotFound
	}
	return rowToTransaction(&rows[0]), nil
}

func nullString(s string) null.Val[string] {
	if s == "" {
		return null.Val[string]{}
	}
	return null.From(s)
}

func columnList(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = c
	}
	return out
}
