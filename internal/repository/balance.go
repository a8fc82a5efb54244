package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

type BalanceFilter struct {
	AsOf       *time.Time
	CategoryID *uuid.UUID
	Type       *domain.AccountType
}

// BalanceRepository answers read-only aggregate queries over the journal.
// Each query is a single statement, so it observes one consistent snapshot.
type BalanceRepository struct {
	db *sql.DB
}

func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// AccountBalance is sum(debit) - sum(credit) over entries dated on or before asOf.
func (r *BalanceRepository) AccountBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(je.debit_amount - je.credit_amount), 0)
		FROM journal_entries je
		JOIN transactions t ON t.id = je.transaction_id
		WHERE je.account_id = $1
		  AND ($2::date IS NULL OR t.transaction_date <= $2::date)`,
		accountID, optionalDateArg(asOf),
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, domain.StorageFailure("AccountBalance", err)
	}
	return balance, nil
}

// AccountBalances returns one balance per account matching f, zero for
// accounts without entries.
func (r *BalanceRepository) AccountBalances(ctx context.Context, f BalanceFilter) (map[uuid.UUID]decimal.Decimal, error) {
	var categoryID, accountType any
	if f.CategoryID != nil {
		categoryID = *f.CategoryID
	}
	if f.Type != nil {
		accountType = string(*f.Type)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, COALESCE(SUM(je.debit_amount - je.credit_amount)
			FILTER (WHERE $1::date IS NULL OR t.transaction_date <= $1::date), 0)
		FROM accounts a
		LEFT JOIN journal_entries je ON je.account_id = a.id
		LEFT JOIN transactions t ON t.id = je.transaction_id
		WHERE ($2::uuid IS NULL OR a.category_id = $2::uuid)
		  AND ($3::text IS NULL OR a.type = $3::text)
		GROUP BY a.id`,
		optionalDateArg(f.AsOf), categoryID, accountType,
	)
	if err != nil {
		return nil, domain.StorageFailure("AccountBalances", err)
	}
	defer rows.Close()

	balances := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var id uuid.UUID
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, domain.StorageFailure("AccountBalances: scan", err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure("AccountBalances: rows", err)
	}
	return balances, nil
}

// Activity returns debit and credit turnover per account of the given types
// for entries dated within [start, end]; a nil bound is open.
func (r *BalanceRepository) Activity(ctx context.Context, types []domain.AccountType, start, end *time.Time) ([]domain.AccountActivity, error) {
	typeArgs := make([]string, len(types))
	for i, t := range types {
		typeArgs[i] = string(t)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+prefixed("a", accountColumns)+`,
			COALESCE(SUM(je.debit_amount) FILTER (WHERE `+windowClause+`), 0),
			COALESCE(SUM(je.credit_amount) FILTER (WHERE `+windowClause+`), 0)
		FROM accounts a
		LEFT JOIN journal_entries je ON je.account_id = a.id
		LEFT JOIN transactions t ON t.id = je.transaction_id
		WHERE a.type = ANY($1::text[])
		GROUP BY a.id
		ORDER BY length(a.code), a.code`,
		pq.Array(typeArgs), optionalDateArg(start), optionalDateArg(end),
	)
	if err != nil {
		return nil, domain.StorageFailure("Activity", err)
	}
	defer rows.Close()

	var out []domain.AccountActivity
	for rows.Next() {
		var act domain.AccountActivity
		a := &act.Account
		err := rows.Scan(
			&a.ID, &a.CategoryID, &a.Name, &a.Type, &a.Code, &a.Description,
			&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
			&act.Debits, &act.Credits,
		)
		if err != nil {
			return nil, domain.StorageFailure("Activity: scan", err)
		}
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure("Activity: rows", err)
	}
	return out, nil
}

const windowClause = `($2::date IS NULL OR t.transaction_date >= $2::date)
			AND ($3::date IS NULL OR t.transaction_date <= $3::date)`
