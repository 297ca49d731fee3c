// Package batch drives the transcription pipeline over a set of input
// files, one file at a time, isolating failures per file.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/audio"
	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/config"
)

// Summary reports the outcome of a whole run.
type Summary struct {
	// Processed counts files whose primary transcript was produced. Files
	// with a failed translation still count here (partial success).
	Processed int
	// Failed counts files that produced no output.
	Failed int
	// TranslationsFailed counts processed files whose English transcript
	// could not be produced.
	TranslationsFailed int
}

type Walker struct {
	cfg        config.BatchConfig
	recognizer Recognizer
	translator Translator

	// load is audio.Load in production, swapped in tests.
	load func(path string) (audio.Buffer, error)
}

func NewWalker(cfg config.BatchConfig, recognizer Recognizer, translator Translator) (*Walker, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	if recognizer == nil {
		return nil, fmt.Errorf("recognizer should not be nil")
	}

	if cfg.Translate && translator == nil {
		return nil, fmt.Errorf("translator should not be nil when translation is enabled")
	}

	return &Walker{
		cfg:        cfg,
		recognizer: recognizer,
		translator: translator,
		load:       audio.Load,
	}, nil
}

// ListFiles resolves a directory into the ordered list of audio files to
// process. Order is lexicographic by path so output and logs are
// reproducible. Non-audio files are skipped silently.
func ListFiles(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", root)
	}

	var paths []string

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %q: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !audio.SupportedFormat(entry.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(root, entry.Name()))
		}
		return paths, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audio.SupportedFormat(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", root, err)
	}

	return paths, nil
}

func (w *Walker) jobs() ([]FileJob, error) {
	var paths []string

	if w.cfg.File != "" {
		// Single-file mode: the job list is exactly that one path. The
		// loader rejects it if it's missing or not audio.
		paths = []string{w.cfg.File}
	} else {
		var err error
		paths, err = ListFiles(w.cfg.Directory, w.cfg.Recursive)
		if err != nil {
			return nil, err
		}
	}

	jobs := make([]FileJob, len(paths))
	for i, path := range paths {
		jobs[i] = FileJob{
			Path:           path,
			Translate:      w.cfg.Translate,
			NoiseReduction: w.cfg.NoiseReduction,
		}
	}

	return jobs, nil
}

// Run processes every discovered file strictly sequentially. A failure in
// one file is logged and never halts the remaining queue; only context
// cancellation and output-write errors abort the run early.
func (w *Walker) Run(ctx context.Context) (Summary, error) {
	logger := slog.Default().With(slog.String("runID", uuid.NewString()))

	jobs, err := w.jobs()
	if err != nil {
		return Summary{}, err
	}

	logger.Info("starting run", slog.Int("files", len(jobs)))

	var summary Summary
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		logger.Info("processing file", slog.String("path", job.Path))

		res, err := w.processJob(ctx, logger, job)
		switch {
		case err == nil:
			summary.Processed++
			logger.Info("file processed",
				slog.String("path", job.Path),
				slog.String("language", res.Language))
		case errors.Is(err, ErrTranslation):
			summary.Processed++
			summary.TranslationsFailed++
			logger.Error("translation failed, keeping primary transcript",
				slog.String("path", job.Path),
				slog.String("err", err.Error()))
		case errors.Is(err, ErrOutputWrite):
			return summary, err
		default:
			summary.Failed++
			logger.Error("failed to process file",
				slog.String("path", job.Path),
				slog.String("err", err.Error()))
		}
	}

	return summary, nil
}
