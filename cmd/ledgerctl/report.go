package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/handler"
)

type reportOutput struct {
	json bool
	out  string
}

func (o *reportOutput) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&o.out, "out", "", "write the report to this file instead of stdout")
}

// emit renders into a buffer first so --out never leaves a half-written file.
func (o *reportOutput) emit(cmd *cobra.Command, dto any, text func(io.Writer)) error {
	var buf bytes.Buffer
	if o.json {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dto); err != nil {
			return err
		}
	} else {
		text(&buf)
	}
	if o.out == "" {
		_, err := io.Copy(cmd.OutOrStdout(), &buf)
		return err
	}
	if err := atomic.WriteFile(o.out, &buf); err != nil {
		return fmt.Errorf("write %s: %w", o.out, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "wrote", o.out)
	return nil
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print financial statements",
	}
	cmd.AddCommand(balanceSheetCmd(), incomeStatementCmd())
	return cmd
}

func balanceSheetCmd() *cobra.Command {
	var (
		asOf   string
		output reportOutput
	)
	cmd := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Assets, liabilities and equity at a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var at *time.Time
			if asOf != "" {
				d, err := time.Parse(domain.DateLayout, asOf)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD")
				}
				at = &d
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sheet, err := a.Reports.BalanceSheet(cmd.Context(), at)
			if err != nil {
				return err
			}
			return output.emit(cmd, handler.ToBalanceSheetDTO(sheet), func(w io.Writer) {
				newRenderer(w).balanceSheet(sheet)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default: all time)")
	output.register(cmd)
	return cmd
}

func incomeStatementCmd() *cobra.Command {
	var (
		from, to string
		output   reportOutput
	)
	cmd := &cobra.Command{
		Use:   "income-statement",
		Short: "Income and expenses over an inclusive date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := time.Parse(domain.DateLayout, from)
			if err != nil {
				return fmt.Errorf("--from must be YYYY-MM-DD")
			}
			end, err := time.Parse(domain.DateLayout, to)
			if err != nil {
				return fmt.Errorf("--to must be YYYY-MM-DD")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stmt, err := a.Reports.IncomeStatement(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return output.emit(cmd, handler.ToIncomeStatementDTO(stmt), func(w io.Writer) {
				newRenderer(w).incomeStatement(stmt)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	output.register(cmd)
	return cmd
}
