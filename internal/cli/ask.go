package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/pgassist/pkg/assistant"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

type AskCmd struct{}

func NewAskCmd() *AskCmd {
	return &AskCmd{}
}

func (c *AskCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Stage a CSV file, train the assistant on it and answer a question with SQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, table, err := stageFlags(cmd)
			if err != nil {
				return err
			}
			question, err := cmd.Flags().GetString("question")
			if err != nil {
				return fmt.Errorf("failed to get question flag: %w", err)
			}
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("%w: --question is required", postgres.ErrInvalidParams)
			}
			model, err := cmd.Flags().GetString("model")
			if err != nil {
				return fmt.Errorf("failed to get model flag: %w", err)
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.stop()

			llm := assistant.NewAnthropicLLMClient(s.log, model, assistant.DefaultMaxTokens)
			res, err := stageAndTrain(s, input, table, assistant.WithLLM(llm))
			if err != nil {
				return err
			}
			defer closeResult(s, res)

			fmt.Fprintln(s.out, "\nTraining data:")
			res.Assistant.TrainingDataFrame().Render(s.out, 0)

			generated, err := res.Assistant.GenerateSQL(s.ctx, question)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "\nGenerated SQL:\n%s\n", generated.SQL)
			if generated.Explanation != "" {
				fmt.Fprintf(s.out, "\n%s\n", generated.Explanation)
			}

			result, err := res.Assistant.RunSQL(s.ctx, generated.SQL)
			if err != nil {
				return fmt.Errorf("failed to run generated sql: %w", err)
			}
			fmt.Fprintln(s.out, "\nResult:")
			result.Render(s.out, 0)
			return nil
		},
	}

	addStageFlags(cmd)
	cmd.Flags().String("question", "", "question to answer")
	cmd.Flags().String("model", "", "Anthropic model (or set ANTHROPIC_MODEL env var)")

	return cmd
}
