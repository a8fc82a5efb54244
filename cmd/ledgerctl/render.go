package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const amountWidth = 14

type renderer struct {
	w                          io.Writer
	heading, total, red, green *color.Color
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{
		w:       w,
		heading: color.New(color.Bold, color.Underline),
		total:   color.New(color.Bold),
		red:     color.New(color.FgRed),
		green:   color.New(color.FgGreen),
	}
}

func (r *renderer) section(title string, lines []domain.ReportLine, totalLabel string, total decimal.Decimal) {
	r.heading.Fprintln(r.w, title)
	for _, l := range lines {
		fmt.Fprintf(r.w, "  %-8s %-32s ", l.Code, l.Name)
		r.amount(l.Balance)
		fmt.Fprintln(r.w)
	}
	r.total.Fprintf(r.w, "  %-41s ", totalLabel)
	r.amount(total)
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w)
}

func (r *renderer) amount(d decimal.Decimal) {
	s := fmt.Sprintf("%*s", amountWidth, d.StringFixed(2))
	if d.IsNegative() {
		r.red.Fprint(r.w, s)
		return
	}
	fmt.Fprint(r.w, s)
}

func (r *renderer) balanceSheet(b *domain.BalanceSheet) {
	title := "Balance sheet (all time)"
	if b.AsOf != nil {
		title = "Balance sheet as of " + b.AsOf.Format(domain.DateLayout)
	}
	r.total.Fprintln(r.w, title)
	fmt.Fprintln(r.w)

	r.section("Assets", b.Assets, "Total assets", b.TotalAssets)
	r.section("Liabilities", b.Liabilities, "Total liabilities", b.TotalLiabilities)
	r.section("Equity", b.Equity, "Total equity", b.TotalEquity)

	r.total.Fprintf(r.w, "%-43s ", "Liabilities and equity")
	r.amount(b.TotalLiabilitiesAndEquity)
	fmt.Fprintln(r.w)
	if b.Balanced() {
		r.green.Fprintln(r.w, "balanced")
	} else {
		r.red.Fprintf(r.w, "out of balance by %s\n", b.TotalAssets.Sub(b.TotalLiabilitiesAndEquity).StringFixed(2))
	}
}

func (r *renderer) incomeStatement(s *domain.IncomeStatement) {
	r.total.Fprintf(r.w, "Income statement %s to %s\n\n",
		s.StartDate.Format(domain.DateLayout), s.EndDate.Format(domain.DateLayout))

	r.section("Income", s.Income, "Total income", s.TotalIncome)
	r.section("Expenses", s.Expenses, "Total expenses", s.TotalExpenses)

	r.total.Fprintf(r.w, "%-43s ", "Net income")
	r.amount(s.NetIncome)
	fmt.Fprintln(r.w)
}
