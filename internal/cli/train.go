package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/pgassist/pkg/postgres"
	"github.com/malbeclabs/pgassist/pkg/trainer"
)

type TrainCmd struct{}

func NewTrainCmd() *TrainCmd {
	return &TrainCmd{}
}

func (c *TrainCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the assistant on the information schema of a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := cmd.Flags().GetString("table")
			if err != nil {
				return fmt.Errorf("failed to get table flag: %w", err)
			}
			if table == "" {
				return fmt.Errorf("%w: --table is required", postgres.ErrInvalidParams)
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.stop()

			a, err := trainer.Setup(s.ctx, s.log, s.params)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					s.log.Warn("cli: failed to close assistant", "error", err)
				}
			}()

			if _, err := trainer.AnalyzeAndTrain(s.ctx, s.log, s.out, a, table); err != nil {
				return err
			}

			fmt.Fprintln(s.out, "\nTraining data:")
			a.TrainingDataFrame().Render(s.out, 0)
			return nil
		},
	}

	cmd.Flags().StringP("table", "t", "", "table whose columns the assistant is trained on")

	return cmd
}
