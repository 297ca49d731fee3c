package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/apis/azure"
	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/apis/openai"
	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/batch"
	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/config"
)

const (
	// Exit codes: 0 on full success, exitCodeFatal on invalid invocation or
	// any other fatal error before/during the run, exitCodeFilesFailed when
	// the run completed but at least one file failed.
	exitCodeFatal       = 1
	exitCodeFilesFailed = 2
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		source.File = filepath.Base(source.File)
	}
	return a
}

func setupLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   true,
		Level:       level,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)
}

func newRootCmd() *cobra.Command {
	var cfg config.BatchConfig

	cmd := &cobra.Command{
		Use:   "batchscribe",
		Short: "Transcribe and translate audio files",
		Long: `batchscribe transcribes audio files to text and optionally translates
the transcripts to English. For an input X.ext it writes X-transcript.txt
(and X-transcript_en.txt when translating) beside the input file.

Collaborator credentials are read from the environment (or a .env file):
OPENAI_API_KEY, AZURE_SPEECH_KEY, AZURE_SPEECH_REGION, RECOGNIZE_API.

Exit codes: 0 on success, 1 on invalid invocation or fatal error, 2 when
the run completed but at least one file failed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.File, "file", "f", "", "path to the input audio file")
	flags.StringVarP(&cfg.Directory, "directory", "d", "", "path to the directory containing audio files")
	flags.BoolVarP(&cfg.Recursive, "recursive", "r", false, "process audio files in subdirectories")
	flags.BoolVarP(&cfg.Translate, "translate", "t", false, "translate transcripts to English after recognition")
	flags.BoolVarP(&cfg.NoiseReduction, "noise_reduction", "n", false, "apply basic noise reduction (spectral subtraction)")

	return cmd
}

func run(ctx context.Context, cfg config.BatchConfig) error {
	cfg.FromEnv()
	cfg.SetDefaults()
	setupLogger(cfg.LogLevel)

	if err := cfg.IsValid(); err != nil {
		return fmt.Errorf("invalid invocation: %w", err)
	}

	var oaiClient *openai.Client
	newOpenAIClient := func() (*openai.Client, error) {
		if oaiClient != nil {
			return oaiClient, nil
		}
		var err error
		oaiClient, err = openai.NewClient(openai.Config{
			APIKey:    cfg.OpenAI.APIKey,
			Model:     cfg.OpenAI.Model,
			ChatModel: cfg.OpenAI.ChatModel,
			BaseURL:   cfg.OpenAI.BaseURL,
		})
		return oaiClient, err
	}

	var recognizer batch.Recognizer
	switch cfg.RecognizeAPI {
	case config.RecognizeAPIOpenAI:
		client, err := newOpenAIClient()
		if err != nil {
			return fmt.Errorf("failed to create recognizer: %w", err)
		}
		recognizer = client
	case config.RecognizeAPIAzure:
		sr, err := azure.NewSpeechRecognizer(azure.SpeechRecognizerConfig{
			SpeechKey:    cfg.Azure.SpeechKey,
			SpeechRegion: cfg.Azure.SpeechRegion,
		})
		if err != nil {
			return fmt.Errorf("failed to create recognizer: %w", err)
		}
		recognizer = sr
	}

	var translator batch.Translator
	if cfg.Translate {
		client, err := newOpenAIClient()
		if err != nil {
			return fmt.Errorf("failed to create translator: %w", err)
		}
		translator = client
	}

	walker, err := batch.NewWalker(cfg, recognizer, translator)
	if err != nil {
		return fmt.Errorf("failed to create walker: %w", err)
	}

	summary, err := walker.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("processing completed",
		slog.Int("processed", summary.Processed),
		slog.Int("failed", summary.Failed),
		slog.Int("translationsFailed", summary.TranslationsFailed))

	if summary.Failed > 0 {
		os.Exit(exitCodeFilesFailed)
	}

	return nil
}

func main() {
	setupLogger(slog.LevelInfo)

	// A missing .env file is fine; a present but unreadable one is not.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.String("err", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("run failed", slog.String("err", err.Error()))
		os.Exit(exitCodeFatal)
	}
}
