package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/handler"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func sampleSheet() *domain.BalanceSheet {
	asOf := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	return &domain.BalanceSheet{
		AsOf:                      &asOf,
		Assets:                    []domain.ReportLine{{Code: "A-001", Name: "Cash", Balance: decimal.RequireFromString("1160")}},
		Liabilities:               []domain.ReportLine{{Code: "L-001", Name: "Card", Balance: decimal.RequireFromString("60")}},
		Equity:                    []domain.ReportLine{{Code: "Q-001", Name: "Capital", Balance: decimal.RequireFromString("1000")}, {Name: domain.RetainedEarningsLine, Balance: decimal.RequireFromString("100")}},
		TotalAssets:               decimal.RequireFromString("1160"),
		TotalLiabilities:          decimal.RequireFromString("60"),
		TotalEquity:               decimal.RequireFromString("1100"),
		NetIncome:                 decimal.RequireFromString("100"),
		TotalLiabilitiesAndEquity: decimal.RequireFromString("1160"),
	}
}

func TestRenderBalanceSheet(t *testing.T) {
	var buf bytes.Buffer
	newRenderer(&buf).balanceSheet(sampleSheet())
	out := buf.String()

	assert.Contains(t, out, "Balance sheet as of 2024-01-31")
	assert.Contains(t, out, "A-001")
	assert.Contains(t, out, "1160.00")
	assert.Contains(t, out, domain.RetainedEarningsLine)
	assert.Contains(t, out, "balanced")
	assert.NotContains(t, out, "out of balance")
}

func TestRenderBalanceSheet_OutOfBalance(t *testing.T) {
	sheet := sampleSheet()
	sheet.TotalLiabilitiesAndEquity = decimal.RequireFromString("1150")

	var buf bytes.Buffer
	newRenderer(&buf).balanceSheet(sheet)
	assert.Contains(t, buf.String(), "out of balance by 10.00")
}

func TestRenderIncomeStatement(t *testing.T) {
	stmt := &domain.IncomeStatement{
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Income:        []domain.ReportLine{{Code: "I-001", Name: "Sales", Balance: decimal.RequireFromString("200")}},
		Expenses:      []domain.ReportLine{{Code: "E-001", Name: "Rent", Balance: decimal.RequireFromString("250")}},
		TotalIncome:   decimal.RequireFromString("200"),
		TotalExpenses: decimal.RequireFromString("250"),
		NetIncome:     decimal.RequireFromString("-50"),
	}

	var buf bytes.Buffer
	newRenderer(&buf).incomeStatement(stmt)
	out := buf.String()
	assert.Contains(t, out, "2024-01-01 to 2024-01-31")
	assert.Contains(t, out, "-50.00")
}

func TestReportOutput_Emit(t *testing.T) {
	sheet := sampleSheet()

	t.Run("json to stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&stdout)

		o := reportOutput{json: true}
		require.NoError(t, o.emit(cmd, handler.ToBalanceSheetDTO(sheet), nil))
		assert.Contains(t, stdout.String(), `"total_assets": "1160.00"`)
	})

	t.Run("text to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sheet.txt")
		var stdout, stderr bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&stdout)
		cmd.SetErr(&stderr)

		o := reportOutput{out: path}
		require.NoError(t, o.emit(cmd, nil, func(w io.Writer) { newRenderer(w).balanceSheet(sheet) }))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Total assets")
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "wrote")
	})
}

func TestRootCmd_Tree(t *testing.T) {
	root := rootCmd()
	for _, path := range [][]string{
		{"migrate"},
		{"user", "create"},
		{"import", "csv"},
		{"sync"},
		{"staged", "process"},
		{"report", "balance-sheet"},
		{"report", "income-statement"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
