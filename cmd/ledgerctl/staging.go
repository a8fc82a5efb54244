package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Stage transactions from external files",
	}

	var sourceID, file string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Stage every row of a CSV export through a csv import source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(sourceID)
			if err != nil {
				return fmt.Errorf("--source: %w", err)
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Staging.ImportCSV(cmd.Context(), id, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staged %d rows, skipped %d duplicates\n", len(res.Staged), res.Duplicates)
			return nil
		},
	}
	csvCmd.Flags().StringVar(&sourceID, "source", "", "import source id")
	csvCmd.Flags().StringVar(&file, "file", "", "path to the CSV file")
	_ = csvCmd.MarkFlagRequired("source")
	_ = csvCmd.MarkFlagRequired("file")

	cmd.AddCommand(csvCmd)
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass over every active open-banking source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Sync.SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Error != "" {
					color.New(color.FgRed).Fprintf(out, "%s  failed: %s\n", r.SourceID, r.Error)
					continue
				}
				fmt.Fprintf(out, "%s  fetched %d, staged %d, duplicates %d, invalid %d\n",
					r.SourceID, r.Fetched, r.Staged, r.Duplicates, r.Invalid)
			}
			return nil
		},
	}
}

func stagedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staged",
		Short: "Work with staged transactions",
	}

	var counterpart string
	process := &cobra.Command{
		Use:   "process --counterpart ACCOUNT_ID STAGED_ID...",
		Short: "Post staged transactions against a counterpart account",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counterpartID, err := uuid.Parse(counterpart)
			if err != nil {
				return fmt.Errorf("--counterpart: %w", err)
			}
			ids := make([]uuid.UUID, len(args))
			for i, arg := range args {
				if ids[i], err = uuid.Parse(arg); err != nil {
					return fmt.Errorf("staged id %q: %w", arg, err)
				}
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Staging.BulkProcess(cmd.Context(), ids, counterpartID, nil)
			out := cmd.OutOrStdout()
			for _, t := range res.Processed {
				color.New(color.FgGreen).Fprintf(out, "posted   %s  %s\n", t.ReferenceNumber, t.Description)
			}
			for _, f := range res.Failed {
				color.New(color.FgRed).Fprintf(out, "failed   %s  %s\n", f.StagedID, f.Error)
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d staged transactions failed", len(res.Failed), len(ids))
			}
			return nil
		},
	}
	process.Flags().StringVar(&counterpart, "counterpart", "", "counterpart account id")
	_ = process.MarkFlagRequired("counterpart")

	cmd.AddCommand(process)
	return cmd
}
