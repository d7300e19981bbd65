package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"psd-quiz-service/internal/app"
	"psd-quiz-service/internal/config"
	"psd-quiz-service/internal/domain"
	"psd-quiz-service/internal/infra/markdown"
	"psd-quiz-service/internal/infra/postgres"
	"psd-quiz-service/internal/logger"
)

// NewBankCmd groups question bank maintenance commands.
func NewBankCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Inspect and import question banks",
	}
	cmd.AddCommand(newBankStatsCmd(configPath))
	cmd.AddCommand(newBankImportCmd(configPath))
	return cmd
}

func newBankStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print question counts for the configured bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
			d, err := openDeps(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer d.Close()

			// straight from the source so stale caches do not hide edits
			questions, err := d.source.LoadQuestions(ctx, cfg.Questions.BankID)
			if err != nil {
				return err
			}
			printBankStats(cmd.OutOrStdout(), cfg.Questions.BankID, questions, app.DefaultRanges)
			return nil
		},
	}
}

func printBankStats(w io.Writer, bankID string, questions []domain.Question, ranges []domain.QuestionRange) {
	multi := 0
	for _, q := range questions {
		if q.IsMultiSelect() {
			multi++
		}
	}
	fmt.Fprintf(w, "bank %s: %d questions (%d single answer, %d select all that apply)\n",
		bankID, len(questions), len(questions)-multi, multi)
	for _, r := range ranges {
		selected, err := app.SelectRange(questions, ranges, r.Label)
		if err != nil {
			fmt.Fprintf(w, "  %-8s empty\n", r.Label)
			continue
		}
		fmt.Fprintf(w, "  %-8s %d\n", r.Label, len(selected))
	}
}

func newBankImportCmd(configPath *string) *cobra.Command {
	var file, bankID string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a markdown question bank in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if bankID == "" {
				bankID = cfg.Questions.BankID
			}
			if file == "" {
				file = cfg.Questions.Path
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			questions := markdown.Parse(string(raw))
			if len(questions) == 0 {
				return fmt.Errorf("%s: %w", file, domain.ErrNoQuestions)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
			cfg.Questions.Source = config.SourcePostgres
			if err := cfg.Validate(); err != nil {
				return err
			}
			d, err := openDeps(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := postgres.NewQuestionSource(d.pool).SaveBank(ctx, bankID, string(raw)); err != nil {
				return err
			}
			log.Info().Str("bank", bankID).Int("questions", len(questions)).Msg("question bank imported")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "markdown file to import (defaults to questions.path)")
	cmd.Flags().StringVar(&bankID, "id", "", "bank id (defaults to questions.bank_id)")
	return cmd
}
