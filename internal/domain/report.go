package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const RetainedEarningsLine = "Retained Earnings"

type ReportLine struct {
	AccountID string
	Code      string
	Name      string
	Balance   decimal.Decimal
}

type BalanceSheet struct {
	AsOf                      *time.Time
	Assets                    []ReportLine
	Liabilities               []ReportLine
	Equity                    []ReportLine
	TotalAssets               decimal.Decimal
	TotalLiabilities          decimal.Decimal
	TotalEquity               decimal.Decimal
	NetIncome                 decimal.Decimal
	TotalLiabilitiesAndEquity decimal.Decimal
}

// Balanced reports whether the accounting identity holds for the sheet.
func (b *BalanceSheet) Balanced() bool {
	return b.TotalAssets.Equal(b.TotalLiabilitiesAndEquity)
}

type IncomeStatement struct {
	StartDate     time.Time
	EndDate       time.Time
	Income        []ReportLine
	Expenses      []ReportLine
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// AccountActivity is the debit and credit turnover of one account over a window.
type AccountActivity struct {
	Account Account
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

// Balance is the debit-positive net of the activity.
func (a AccountActivity) Balance() decimal.Decimal {
	return a.Debits.Sub(a.Credits)
}
