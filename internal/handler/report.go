package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

type reportService interface {
	BalanceSheet(ctx context.Context, asOf *time.Time) (*domain.BalanceSheet, error)
	IncomeStatement(ctx context.Context, start, end time.Time) (*domain.IncomeStatement, error)
}

type ReportHandler struct {
	reports reportService
}

func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type ReportLineDTO struct {
	AccountID string `json:"account_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name"`
	Balance   string `json:"balance"`
}

func toLineDTOs(lines []domain.ReportLine) []ReportLineDTO {
	out := make([]ReportLineDTO, len(lines))
	for i, l := range lines {
		out[i] = ReportLineDTO{AccountID: l.AccountID, Code: l.Code, Name: l.Name, Balance: money(l.Balance)}
	}
	return out
}

type BalanceSheetDTO struct {
	AsOf                      *string         `json:"as_of"`
	Assets                    []ReportLineDTO `json:"assets"`
	Liabilities               []ReportLineDTO `json:"liabilities"`
	Equity                    []ReportLineDTO `json:"equity"`
	TotalAssets               string          `json:"total_assets"`
	TotalLiabilities          string          `json:"total_liabilities"`
	TotalEquity               string          `json:"total_equity"`
	NetIncome                 string          `json:"net_income"`
	TotalLiabilitiesAndEquity string          `json:"total_liabilities_and_equity"`
}

// ToBalanceSheetDTO renders a balance sheet in its wire form.
func ToBalanceSheetDTO(b *domain.BalanceSheet) BalanceSheetDTO {
	return BalanceSheetDTO{
		AsOf:                      formatDatePtr(b.AsOf),
		Assets:                    toLineDTOs(b.Assets),
		Liabilities:               toLineDTOs(b.Liabilities),
		Equity:                    toLineDTOs(b.Equity),
		TotalAssets:               money(b.TotalAssets),
		TotalLiabilities:          money(b.TotalLiabilities),
		TotalEquity:               money(b.TotalEquity),
		NetIncome:                 money(b.NetIncome),
		TotalLiabilitiesAndEquity: money(b.TotalLiabilitiesAndEquity),
	}
}

type IncomeStatementDTO struct {
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	Income        []ReportLineDTO `json:"income"`
	Expenses      []ReportLineDTO `json:"expenses"`
	TotalIncome   string          `json:"total_income"`
	TotalExpenses string          `json:"total_expenses"`
	NetIncome     string          `json:"net_income"`
}

// ToIncomeStatementDTO renders an income statement in its wire form.
func ToIncomeStatementDTO(s *domain.IncomeStatement) IncomeStatementDTO {
	return IncomeStatementDTO{
		StartDate:     formatDate(s.StartDate),
		EndDate:       formatDate(s.EndDate),
		Income:        toLineDTOs(s.Income),
		Expenses:      toLineDTOs(s.Expenses),
		TotalIncome:   money(s.TotalIncome),
		TotalExpenses: money(s.TotalExpenses),
		NetIncome:     money(s.NetIncome),
	}
}

func (h *ReportHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	asOf := q.date("as_of")
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	sheet, err := h.reports.BalanceSheet(r.Context(), asOf)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, ToBalanceSheetDTO(sheet))
}

func (h *ReportHandler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	start := q.requiredDate("start_date")
	end := q.requiredDate("end_date")
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	stmt, err := h.reports.IncomeStatement(r.Context(), start, end)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, ToIncomeStatementDTO(stmt))
}
