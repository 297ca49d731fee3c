package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/audio"
	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/dsp"
	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/transcribe"
)

// Transcripts are always translated into English.
const targetLanguage = "en"

var (
	// ErrRecognition marks a per-file recognition failure (unintelligible
	// speech or service error). The file is skipped, no transcript is written.
	ErrRecognition = errors.New("recognition failed")
	// ErrTranslation marks a translation failure after recognition already
	// succeeded. The primary transcript is kept, only the English file is
	// skipped.
	ErrTranslation = errors.New("translation failed")
	// ErrOutputWrite marks a failure writing beside the input file. This is
	// an environment problem, not a per-file one, and aborts the run.
	ErrOutputWrite = errors.New("failed to write output")
)

// Recognizer is the speech recognition collaborator: audio in, recognized
// text and a two-letter language tag out.
type Recognizer interface {
	Recognize(ctx context.Context, buf audio.Buffer) (text string, language string, err error)
}

// Translator is the translation collaborator.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// FileJob is one input file plus the run's resolved options. Each job is
// consumed by exactly one processJob invocation and has no state afterwards.
type FileJob struct {
	Path           string
	Translate      bool
	NoiseReduction bool
}

// processJob runs the full pipeline for a single file: load, optionally
// denoise, recognize, optionally translate, write outputs beside the input.
// All returned errors are file-scoped except those wrapping ErrOutputWrite.
func (w *Walker) processJob(ctx context.Context, logger *slog.Logger, job FileJob) (transcribe.Result, error) {
	buf, err := w.load(job.Path)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("failed to load audio: %w", err)
	}

	logger.Debug("audio loaded",
		slog.String("path", job.Path),
		slog.Duration("duration", buf.Duration()),
		slog.Int("sampleRate", buf.SampleRate))

	if job.NoiseReduction {
		buf = dsp.Reduce(buf)
	}

	text, lang, err := w.recognizer.Recognize(ctx, buf)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	res := transcribe.Result{
		Language: lang,
		Text:     text,
	}

	transcriptPath := transcribe.TranscriptPath(job.Path)
	if _, err := os.Stat(transcriptPath); err == nil {
		logger.Info("transcript already exists, skipping write", slog.String("path", transcriptPath))
	} else if err := transcribe.WriteFile(transcriptPath, text); err != nil {
		return res, fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	if !job.Translate || lang == targetLanguage {
		return res, nil
	}

	translated, err := w.translator.Translate(ctx, text, lang, targetLanguage)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	res.Translation = translated

	if err := transcribe.WriteFile(transcribe.TranslationPath(job.Path), translated); err != nil {
		return res, fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	return res, nil
}
