package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

// balanceTolerance absorbs rounding; amounts are held to two places, so in
// practice it demands exact equality.
var balanceTolerance = decimal.New(1, -2)

func validateHeader(date time.Time, description string) error {
	if date.IsZero() {
		return domain.Invalid("transaction_date is required")
	}
	if strings.TrimSpace(description) == "" {
		return domain.Invalid("description is required")
	}
	return nil
}

// normalizeEntries drops lines with no account or no amount, then checks the
// per-line rules on what remains.
func normalizeEntries(entries []domain.EntryInput) ([]domain.EntryInput, error) {
	valid := make([]domain.EntryInput, 0, len(entries))
	for _, e := range entries {
		if e.AccountID == uuid.Nil || (e.DebitAmount.IsZero() && e.CreditAmount.IsZero()) {
			continue
		}
		valid = append(valid, e)
	}
	if len(valid) < 2 {
		return nil, domain.Invalid("at least two valid entries required")
	}

	seen := make(map[uuid.UUID]struct{}, len(valid))
	for i, e := range valid {
		if err := checkEntry(i+1, e); err != nil {
			return nil, err
		}
		if _, dup := seen[e.AccountID]; dup {
			return nil, domain.Invalid("account %s appears in more than one entry", e.AccountID)
		}
		seen[e.AccountID] = struct{}{}
	}
	return valid, nil
}

func checkEntry(n int, e domain.EntryInput) error {
	if e.DebitAmount.IsNegative() || e.CreditAmount.IsNegative() {
		return domain.Invalid("entry %d: amounts must not be negative", n)
	}
	if !e.DebitAmount.IsZero() && !e.CreditAmount.IsZero() {
		return domain.Invalid("entry %d: an entry cannot be both debited and credited", n)
	}
	if !twoPlaces(e.DebitAmount) || !twoPlaces(e.CreditAmount) {
		return domain.Invalid("entry %d: amounts must have at most two decimal places", n)
	}
	return nil
}

func twoPlaces(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func requireAccounts(entries []domain.EntryInput, found map[uuid.UUID]domain.Account) error {
	for _, e := range entries {
		if _, ok := found[e.AccountID]; !ok {
			return fmt.Errorf("account %s: %w", e.AccountID, domain.ErrNotFound)
		}
	}
	return nil
}

func checkBalance(entries []domain.EntryInput) error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		debits = debits.Add(e.DebitAmount)
		credits = credits.Add(e.CreditAmount)
	}
	if debits.Sub(credits).Abs().GreaterThanOrEqual(balanceTolerance) {
		return domain.Invalid("total debits must equal total credits (debits %s, credits %s)",
			debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}

func accountIDs(entries []domain.EntryInput) []uuid.UUID {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.AccountID
	}
	return ids
}

func toEntryInputs(entries []domain.JournalEntry) []domain.EntryInput {
	out := make([]domain.EntryInput, len(entries))
	for i, e := range entries {
		out[i] = domain.EntryInput{AccountID: e.AccountID, DebitAmount: e.DebitAmount, CreditAmount: e.CreditAmount}
	}
	return out
}
