package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Result is the outcome of transcribing a single file. It is created once
// per file, written to disk and discarded.
type Result struct {
	// Language is the detected language, a two-letter tag.
	Language string
	// Text is the recognized text, in the detected language.
	Text string
	// Translation is the English translation of Text. Empty when translation
	// was not requested or the source is already English.
	Translation string
}

// TranscriptPath derives the primary transcript path for an input file:
// dir/name.ext becomes dir/name-transcript.txt.
func TranscriptPath(inputPath string) string {
	return basePath(inputPath) + "-transcript.txt"
}

// TranslationPath derives the English transcript path for an input file:
// dir/name.ext becomes dir/name-transcript_en.txt.
func TranslationPath(inputPath string) string {
	return basePath(inputPath) + "-transcript_en.txt"
}

func basePath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
}

// WriteFile persists a transcript as plain UTF-8 text (no BOM).
func WriteFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}
