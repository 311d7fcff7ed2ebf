package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/loader"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

const defaultPreviewRows = 5

type LoadCmd struct{}

func NewLoadCmd() *LoadCmd {
	return &LoadCmd{}
}

func (c *LoadCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a table or query result into memory and describe it",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := cmd.Flags().GetString("table")
			if err != nil {
				return fmt.Errorf("failed to get table flag: %w", err)
			}
			query, err := cmd.Flags().GetString("query")
			if err != nil {
				return fmt.Errorf("failed to get query flag: %w", err)
			}
			rows, err := cmd.Flags().GetInt("rows")
			if err != nil {
				return fmt.Errorf("failed to get rows flag: %w", err)
			}
			if table == "" && query == "" {
				return fmt.Errorf("%w: one of --table or --query is required", postgres.ErrInvalidParams)
			}
			if table != "" && query != "" {
				return fmt.Errorf("%w: specify only one of --table or --query", postgres.ErrInvalidParams)
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.stop()

			var f *frame.Frame
			if query != "" {
				f, err = loader.Query(s.ctx, s.log, s.params, query)
			} else {
				f, err = loader.LoadTable(s.ctx, s.log, s.params, table)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(s.out, "Data loaded successfully!")
			fmt.Fprintln(s.out, "\nDataFrame Info:")
			f.Info(s.out)
			fmt.Fprintln(s.out, "\nFirst few rows:")
			f.Render(s.out, rows)
			return nil
		},
	}

	cmd.Flags().StringP("table", "t", "", "table to load, optionally schema-qualified")
	cmd.Flags().StringP("query", "q", "", "custom read query to run instead of a whole table")
	cmd.Flags().IntP("rows", "n", defaultPreviewRows, "number of rows to preview")

	return cmd
}
