package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

type activityReader interface {
	Activity(ctx context.Context, types []domain.AccountType, start, end *time.Time) ([]domain.AccountActivity, error)
}

type ReportService struct {
	activity activityReader
}

func NewReportService(activity activityReader) *ReportService {
	return &ReportService{activity: activity}
}

var allAccountTypes = []domain.AccountType{
	domain.AccountTypeAsset,
	domain.AccountTypeLiability,
	domain.AccountTypeEquity,
	domain.AccountTypeIncome,
	domain.AccountTypeExpense,
}

// BalanceSheet reads every account's turnover up to asOf in a single query,
// so the sheet always reflects one committed state of the journal.
func (s *ReportService) BalanceSheet(ctx context.Context, asOf *time.Time) (*domain.BalanceSheet, error) {
	activity, err := s.activity.Activity(ctx, allAccountTypes, nil, asOf)
	if err != nil {
		return nil, fmt.Errorf("BalanceSheet: %w", err)
	}
	return assembleBalanceSheet(asOf, activity), nil
}

func (s *ReportService) IncomeStatement(ctx context.Context, start, end time.Time) (*domain.IncomeStatement, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("IncomeStatement: %w", domain.Invalid("start_date and end_date are required"))
	}
	if end.Before(start) {
		return nil, fmt.Errorf("IncomeStatement: %w", domain.Invalid("end_date must not be before start_date"))
	}

	activity, err := s.activity.Activity(ctx,
		[]domain.AccountType{domain.AccountTypeIncome, domain.AccountTypeExpense}, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("IncomeStatement: %w", err)
	}
	return assembleIncomeStatement(start, end, activity), nil
}

func assembleBalanceSheet(asOf *time.Time, activity []domain.AccountActivity) *domain.BalanceSheet {
	sheet := &domain.BalanceSheet{AsOf: asOf}

	for _, act := range activity {
		balance := act.Balance()
		switch act.Account.Type {
		case domain.AccountTypeAsset:
			sheet.TotalAssets = sheet.TotalAssets.Add(balance)
			if !balance.IsZero() {
				sheet.Assets = append(sheet.Assets, line(act.Account, balance.Abs()))
			}
		case domain.AccountTypeLiability:
			sheet.TotalLiabilities = sheet.TotalLiabilities.Add(balance.Neg())
			if !balance.IsZero() {
				sheet.Liabilities = append(sheet.Liabilities, line(act.Account, balance.Neg()))
			}
		case domain.AccountTypeEquity:
			sheet.TotalEquity = sheet.TotalEquity.Add(balance.Neg())
			if !balance.IsZero() {
				sheet.Equity = append(sheet.Equity, line(act.Account, balance.Neg()))
			}
		case domain.AccountTypeIncome:
			sheet.NetIncome = sheet.NetIncome.Add(balance.Neg())
		case domain.AccountTypeExpense:
			sheet.NetIncome = sheet.NetIncome.Sub(balance)
		}
	}

	if !sheet.NetIncome.IsZero() {
		sheet.Equity = append(sheet.Equity, domain.ReportLine{
			Name:    domain.RetainedEarningsLine,
			Balance: sheet.NetIncome,
		})
		sheet.TotalEquity = sheet.TotalEquity.Add(sheet.NetIncome)
	}
	sheet.TotalLiabilitiesAndEquity = sheet.TotalLiabilities.Add(sheet.TotalEquity)
	return sheet
}

func assembleIncomeStatement(start, end time.Time, activity []domain.AccountActivity) *domain.IncomeStatement {
	stmt := &domain.IncomeStatement{StartDate: start, EndDate: end}

	for _, act := range activity {
		switch act.Account.Type {
		case domain.AccountTypeIncome:
			amount := act.Credits.Sub(act.Debits)
			if amount.IsZero() {
				continue
			}
			stmt.Income = append(stmt.Income, line(act.Account, amount))
			stmt.TotalIncome = stmt.TotalIncome.Add(amount)
		case domain.AccountTypeExpense:
			amount := act.Debits.Sub(act.Credits)
			if amount.IsZero() {
				continue
			}
			stmt.Expenses = append(stmt.Expenses, line(act.Account, amount))
			stmt.TotalExpenses = stmt.TotalExpenses.Add(amount)
		}
	}
	stmt.NetIncome = stmt.TotalIncome.Sub(stmt.TotalExpenses)
	return stmt
}

func line(a domain.Account, balance decimal.Decimal) domain.ReportLine {
	return domain.ReportLine{
		AccountID: a.ID.String(),
		Code:      a.Code,
		Name:      a.Name,
		Balance:   balance,
	}
}
