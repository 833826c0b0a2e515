package sqlconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

const lotsTable = "credit_lots"

var lotColumns = []string{
	"lot_id", "account_id", "original_amount", "remaining", "expiration_date", "state", "created_at",
}

type lotRow struct {
	LotID          uuid.UUID           `db:"lot_id"`
	AccountID      uuid.UUID           `db:"account_id"`
	OriginalAmount int64               `db:"original_amount"`
	Remaining      int64               `db:"remaining"`
	ExpirationDate null.Val[time.Time] `db:"expiration_date"`
	State          int16               `db:"state"`
	CreatedAt      time.Time           `db:"created_at"`
}

func rowToLot(row *lotRow) *ledger.Lot {
	lot := &ledger.Lot{
		LotID:          row.LotID,
		AccountID:      row.AccountID,
		OriginalAmount: row.OriginalAmount,
		Remaining:      row.Remaining,
		State:          ledger.LotState(row.State),
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if exp, ok := row.ExpirationDate.Get(); ok {
		exp = exp.UTC()
		lot.ExpirationDate = &exp
	}
	return lot
}

// LotsTable reads and writes rows of credit_lots.
type LotsTable struct{}

func (LotsTable) Insert(ctx context.Context, exec bob.Executor, lots []*ledger.Lot) error {
	if len(lots) == 0 {
		return nil
	}

	queryMods := []bob.Mod[*dialect.InsertQuery]{
		im.Into(lotsTable, lotColumns...),
	}
	for _, lot := range lots {
		queryMods = append(queryMods, im.Values(psql.Arg(
			lot.LotID,
			lot.AccountID,
			lot.OriginalAmount,
			lot.Remaining,
			null.FromPtr(lot.ExpirationDate),
			int16(lot.State),
			lot.CreatedAt,
		)))
	}
	_, err := bob.Exec(ctx, exec, psql.Insert(queryMods...))
	return err
}

// Update lowers a lot's remainder. It refuses to raise it.
func (LotsTable) Update(ctx context.Context, exec bob.Executor, accountID uuid.UUID, update ledger.LotUpdate) error {
	query := psql.Update(
		um.Table(lotsTable),
		um.SetCol("remaining").ToArg(update.Remaining),
		um.SetCol("state").ToArg(int16(update.State)),
		um.Where(psql.Quote("lot_id").EQ(psql.Arg(update.LotID))),
		um.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
		um.Where(psql.Quote("remaining").GTE(psql.Arg(update.Remaining))),
	)
	result, err := bob.Exec(ctx, exec, query)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("sqlconfig: lot %s: %w", update.LotID, ledger.ErrNotFound)
	}
	return nil
}

// ListOpen returns the account's lots with a positive remainder.
func (LotsTable) ListOpen(ctx context.Context, exec bob.Executor, accountID uuid.UUID) ([]*ledger.Lot, error) {
	return listLots(ctx, exec,
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
		sm.Where(psql.Quote("remaining").GT(psql.Arg(0))),
	)
}

// ListAll returns every lot the account opened, oldest first.
func (LotsTable) ListAll(ctx context.Context, exec bob.Executor, accountID uuid.UUID) ([]*ledger.Lot, error) {
	return listLots(ctx, exec,
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(accountID))),
	)
}

// AccountsWithLapsable lists distinct accounts holding credit past its expiration.
func (LotsTable) AccountsWithLapsable(ctx context.Context, exec bob.Executor, asOf time.Time, limit int) ([]uuid.UUID, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns("account_id"),
		sm.Distinct(),
		sm.From(lotsTable),
		sm.Where(psql.Quote("remaining").GT(psql.Arg(0))),
		sm.Where(psql.Quote("expiration_date").IsNotNull()),
		sm.Where(psql.Quote("expiration_date").LTE(psql.Arg(asOf))),
		sm.OrderBy("account_id"),
	}
	if limit > 0 {
		queryMods = append(queryMods, sm.Limit(limit))
	}
	return bob.All(ctx, exec, psql.Select(queryMods...), scan.SingleColumnMapper[uuid.UUID])
}

func listLots(ctx context.Context, exec bob.Executor, where ...bob.Mod[*dialect.SelectQuery]) ([]*ledger.Lot, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(columnList(lotColumns)...),
		sm.From(lotsTable),
	}
	queryMods = append(queryMods, where...)
	queryMods = append(queryMods,
		sm.OrderBy(psql.Quote("created_at")).Asc(),
		sm.OrderBy(psql.Quote("lot_id")).Asc(),
	)

	rows, err := bob.All(ctx, exec, psql.Select(queryMods...), scan.StructMapper[lotRow]())
	if err != nil {
		return nil, err
	}
	lots := make([]*ledger.Lot, len(rows))
	for i := range rows {
		lots[i] = rowToLot(&rows[i])
	}
	return lots, nil
}
