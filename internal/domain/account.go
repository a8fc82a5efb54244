package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

var codePrefixes = map[AccountType]string{
	AccountTypeAsset:     "A",
	AccountTypeLiability: "L",
	AccountTypeEquity:    "E",
	AccountTypeIncome:    "R",
	AccountTypeExpense:   "X",
}

func (t AccountType) IsValid() bool {
	_, ok := codePrefixes[t]
	return ok
}

// CodePrefix is the leading letter of every account code of this type.
func (t AccountType) CodePrefix() string {
	return codePrefixes[t]
}

// DebitNormal reports whether the account type normally carries a debit balance.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

type AccountCategory struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
}

type Account struct {
	ID          uuid.UUID
	CategoryID  *uuid.UUID
	Name        string
	Type        AccountType
	Code        string
	Description *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FormatAccountCode renders the code for the seq-th account of type t, e.g. A-001.
func FormatAccountCode(t AccountType, seq int) string {
	return fmt.Sprintf("%s-%03d", t.CodePrefix(), seq)
}

// NextAccountCode derives the code following the highest existing code of
// type t. An empty or unparseable previous code restarts the sequence at 001.
func NextAccountCode(t AccountType, lastCode string) (code string, restarted bool) {
	if lastCode == "" {
		return FormatAccountCode(t, 1), false
	}
	suffix, ok := strings.CutPrefix(lastCode, t.CodePrefix()+"-")
	if !ok {
		return FormatAccountCode(t, 1), true
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return FormatAccountCode(t, 1), true
	}
	return FormatAccountCode(t, n+1), false
}
