package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/pgassist/pkg/assistant"
	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/postgres"
	"github.com/malbeclabs/pgassist/pkg/staging"
	"github.com/malbeclabs/pgassist/pkg/trainer"
)

type StageCmd struct{}

func NewStageCmd() *StageCmd {
	return &StageCmd{}
}

func (c *StageCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage a CSV file into a node data table and train the assistant on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, table, err := stageFlags(cmd)
			if err != nil {
				return err
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.stop()

			res, err := stageAndTrain(s, input, table)
			if err != nil {
				return err
			}
			defer closeResult(s, res)

			fmt.Fprintln(s.out, "\nTraining data:")
			res.Assistant.TrainingDataFrame().Render(s.out, 0)
			return nil
		},
	}

	addStageFlags(cmd)

	return cmd
}

func addStageFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "", "CSV file with a header row")
	cmd.Flags().StringP("table", "t", staging.DefaultTable, "table to replace with the staged rows")
}

func stageFlags(cmd *cobra.Command) (input, table string, err error) {
	input, err = cmd.Flags().GetString("input")
	if err != nil {
		return "", "", fmt.Errorf("failed to get input flag: %w", err)
	}
	table, err = cmd.Flags().GetString("table")
	if err != nil {
		return "", "", fmt.Errorf("failed to get table flag: %w", err)
	}
	if input == "" {
		return "", "", fmt.Errorf("%w: --input is required", postgres.ErrInvalidParams)
	}
	return input, table, nil
}

// stageAndTrain reads input, stages it into table and trains an assistant on
// the staged table. The caller closes the result.
func stageAndTrain(s *session, input, table string, opts ...assistant.Option) (*staging.Result, error) {
	f, err := frame.ReadCSVFile(input)
	if err != nil {
		return nil, err
	}
	s.log.Debug("cli: read csv", "path", input, "rows", f.NumRows(), "columns", f.NumCols())

	res, err := staging.SetupWithFrame(s.ctx, s.log, f, s.params, table, opts...)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "Staged %d rows into table %s\n", f.NumRows(), res.Table)

	if _, err := trainer.AnalyzeAndTrain(s.ctx, s.log, s.out, res.Assistant, res.Table); err != nil {
		closeResult(s, res)
		return nil, err
	}
	return res, nil
}

func closeResult(s *session, res *staging.Result) {
	if err := res.Close(); err != nil {
		s.log.Warn("cli: failed to close assistant", "error", err)
	}
}
