package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusVoid      TransactionStatus = "void"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusVoid:
		return true
	}
	return false
}

const DateLayout = "2006-01-02"

type Transaction struct {
	ID                  uuid.UUID
	Date                time.Time
	Description         string
	ReferenceNumber     string
	Status              TransactionStatus
	StagedTransactionID *uuid.UUID
	CreatedBy           *uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Entries             []JournalEntry
}

type JournalEntry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	DebitAmount   decimal.Decimal
	CreditAmount  decimal.Decimal
	CreatedAt     time.Time
}

// EntryInput is a caller-supplied journal line before validation.
type EntryInput struct {
	AccountID    uuid.UUID
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
}

func (t *Transaction) Totals() (debits, credits decimal.Decimal) {
	for _, e := range t.Entries {
		debits = debits.Add(e.DebitAmount)
		credits = credits.Add(e.CreditAmount)
	}
	return debits, credits
}

const referencePrefix = "TXN-"

func referenceDay(date time.Time) string {
	return referencePrefix + date.Format("20060102") + "-"
}

// ReferencePattern is the LIKE pattern matching every reference issued on date.
func ReferencePattern(date time.Time) string {
	return referenceDay(date) + "%"
}

// NextReference returns the reference following lastRef for the given day,
// e.g. TXN-20240105-001 for the first transaction of the day.
func NextReference(date time.Time, lastRef string) string {
	seq := 1
	if suffix, ok := strings.CutPrefix(lastRef, referenceDay(date)); ok {
		if n, err := strconv.Atoi(suffix); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%03d", referenceDay(date), seq)
}
