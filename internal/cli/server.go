package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"psd-quiz-service/internal/app"
	"psd-quiz-service/internal/config"
	"psd-quiz-service/internal/logger"
	transport "psd-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	d, err := openDeps(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("backend setup failed")
		return err
	}
	defer d.Close()

	service := app.NewQuizService(d.questions, app.NewExamSessionStore(d.kv, cfg.Store.Namespace), log, app.Options{
		BankID:            cfg.Questions.BankID,
		ExamQuestionCount: cfg.Exam.QuestionCount,
		ExamDuration:      cfg.ExamDuration(),
		WarningThreshold:  cfg.ExamWarning(),
		PassPercentage:    cfg.Exam.PassPercentage,
	})
	if err := service.Start(ctx); err != nil {
		log.Error().Err(err).Str("bank", cfg.Questions.BankID).Msg("load question bank failed")
		return err
	}
	defer service.Close()

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, log),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: it would cut long-lived websocket connections
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
