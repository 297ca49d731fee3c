package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/audio"
	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/config"
)

type fakeRecognizer struct {
	text  string
	lang  string
	err   error
	calls int
}

func (r *fakeRecognizer) Recognize(_ context.Context, _ audio.Buffer) (string, string, error) {
	r.calls++
	return r.text, r.lang, r.err
}

type fakeTranslator struct {
	out   string
	err   error
	calls int
}

func (tr *fakeTranslator) Translate(_ context.Context, _, _, _ string) (string, error) {
	tr.calls++
	return tr.out, tr.err
}

func testConfig(t *testing.T) config.BatchConfig {
	t.Helper()
	return config.BatchConfig{
		RecognizeAPI: config.RecognizeAPIOpenAI,
		OpenAI: config.OpenAIConfig{
			APIKey: "key",
			Model:  "whisper-1",
		},
	}
}

func newTestWalker(t *testing.T, cfg config.BatchConfig, rec Recognizer, tr Translator) *Walker {
	t.Helper()

	w, err := NewWalker(cfg, rec, tr)
	require.NoError(t, err)

	w.load = func(_ string) (audio.Buffer, error) {
		return audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}, nil
	}

	return w
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.wav"))
	touch(t, filepath.Join(dir, "a.wav"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.wav"))

	t.Run("non-recursive", func(t *testing.T) {
		paths, err := ListFiles(dir, false)
		require.NoError(t, err)
		require.Equal(t, []string{
			filepath.Join(dir, "a.wav"),
			filepath.Join(dir, "b.wav"),
		}, paths)
	})

	t.Run("recursive", func(t *testing.T) {
		paths, err := ListFiles(dir, true)
		require.NoError(t, err)
		require.Equal(t, []string{
			filepath.Join(dir, "a.wav"),
			filepath.Join(dir, "b.wav"),
			filepath.Join(dir, "sub", "c.wav"),
		}, paths)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := ListFiles(filepath.Join(dir, "missing"), false)
		require.Error(t, err)
	})

	t.Run("not a directory", func(t *testing.T) {
		_, err := ListFiles(filepath.Join(dir, "a.wav"), false)
		require.Error(t, err)
	})
}

func outputFiles(t *testing.T, dir string) []string {
	t.Helper()

	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() && filepath.Ext(path) == ".txt" {
			out = append(out, path)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestWalkerRun(t *testing.T) {
	t.Run("success without translation", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "a.wav"))
		touch(t, filepath.Join(dir, "b.wav"))

		cfg := testConfig(t)
		cfg.Directory = dir

		rec := &fakeRecognizer{text: "hola mundo", lang: "es"}
		w := newTestWalker(t, cfg, rec, nil)

		summary, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, Summary{Processed: 2}, summary)
		require.Equal(t, 2, rec.calls)

		// Exactly one output file per input.
		require.Equal(t, []string{
			filepath.Join(dir, "a-transcript.txt"),
			filepath.Join(dir, "b-transcript.txt"),
		}, outputFiles(t, dir))

		data, err := os.ReadFile(filepath.Join(dir, "a-transcript.txt"))
		require.NoError(t, err)
		require.Equal(t, "hola mundo", string(data))
	})

	t.Run("success with translation", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "a.wav"))

		cfg := testConfig(t)
		cfg.Directory = dir
		cfg.Translate = true

		rec := &fakeRecognizer{text: "hola mundo", lang: "es"}
		tr := &fakeTranslator{out: "hello world"}
		w := newTestWalker(t, cfg, rec, tr)

		summary, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, Summary{Processed: 1}, summary)
		require.Equal(t, 1, tr.calls)

		require.Equal(t, []string{
			filepath.Join(dir, "a-transcript.txt"),
			filepath.Join(dir, "a-transcript_en.txt"),
		}, outputFiles(t, dir))

		data, err := os.ReadFile(filepath.Join(dir, "a-transcript_en.txt"))
		require.NoError(t, err)
		require.Equal(t, "hello world", string(data))
	})

	t.Run("translation skipped for English source", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "a.wav"))

		cfg := testConfig(t)
		cfg.Directory = dir
		cfg.Translate = true

		rec := &fakeRecognizer{text: "hello world", lang: "en"}
		tr := &fakeTranslator{out: "should not be used"}
		w := newTestWalker(t, cfg, rec, tr)

		summary, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, Summary{Processed: 1}, summary)
		require.Zero(t, tr.calls)

		require.Equal(t, []string{
			filepath.Join(dir, "a-transcript.txt"),
		}, outputFiles(t, dir))
	})

	t.Run("loader failure isolates the file", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "bad.wav"))
		touch(t, filepath.Join(dir, "good.wav"))

		cfg := testConfig(t)
		cfg.Directory = dir

		rec := &fakeRecognizer{text: "hello", lang: "en"}
		w := newTestWalker(t, cfg, rec, nil)
		w.load = func(path string) (audio.Buffer, error) {
			if filepath.Base(path) == "bad.wav" {
				return audio.Buffer{}, fmt.Errorf("%w: corrupt", audio.ErrUnreadable)
			}
			return audio.Buffer{Samples: make([]float32, 1600), SampleRate: 16000}, nil
		}

		summary, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

		// The failed file produced no output at all.
		require.Equal(t, []string{
			filepath.Join(dir, "good-transcript.txt"),
		}, outputFiles(t, dir))
	})

	t.Run("recognition failure isolates the file", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "a.wav"))

		cfg := testConfig(t)
		cfg.Directory = dir

		rec := &fakeRecognizer{err: errors.New("service unavailable")}
		w := newTestWalker(t, cfg, rec, nil)

		summary, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, Summary{Failed: 1}, summary)
		require.Empty(t, outputFiles(t, dir))
	})

	t.Run("translation failure keeps primary transcript", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "a.wav"))

		cfg := testConfig(t)
		cfg.Directory = dir
		cfg.Translate = true

		rec := &fakeRecognizer{text: "hola", lang: "es"}
		tr := &fakeTranslator{err: errors.New("quota exceeded")}
		w := newTestWalker(t, cfg, rec, tr)

		summary, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, Summary{Processed: 1, TranslationsFailed: 1}, summary)

		require.Equal(t, []string{
			filepath.Join(dir, "a-transcript.txt"),
		}, outputFiles(t, dir))
	})

	t.Run("single corrupt file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.mp3")
		touch(t, path)

		cfg := testConfig(t)
		cfg.File = path

		rec := &fakeRecognizer{text: "hello", lang: "en"}
		w, err := NewWalker(cfg, rec, nil)
		require.NoError(t, err)

		// Real loader: "data" is not valid MP3.
		summary, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, Summary{Failed: 1}, summary)
		require.Zero(t, rec.calls)
		require.Empty(t, outputFiles(t, dir))
	})

	t.Run("canceled context stops the run", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "a.wav"))

		cfg := testConfig(t)
		cfg.Directory = dir

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		w := newTestWalker(t, cfg, &fakeRecognizer{text: "hi", lang: "en"}, nil)
		_, err := w.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewWalker(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewWalker(config.BatchConfig{}, &fakeRecognizer{}, nil)
		require.ErrorContains(t, err, "failed to validate config")
	})

	t.Run("nil recognizer", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.File = "a.wav"
		_, err := NewWalker(cfg, nil, nil)
		require.ErrorContains(t, err, "recognizer should not be nil")
	})

	t.Run("translation without translator", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.File = "a.wav"
		cfg.Translate = true
		_, err := NewWalker(cfg, &fakeRecognizer{}, nil)
		require.ErrorContains(t, err, "translator should not be nil")
	})
}
