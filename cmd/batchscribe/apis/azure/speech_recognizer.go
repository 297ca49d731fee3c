package azure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	batchaudio "github.com/batchscribe/batch-transcriber/cmd/batchscribe/audio"
)

// At-start language identification supports a small candidate set.
var defaultDetectLanguages = []string{"en-US", "es-ES", "fr-FR", "de-DE"}

type SpeechRecognizerConfig struct {
	SpeechKey    string
	SpeechRegion string
	// DetectLanguages are the candidate languages for source language
	// identification. Defaults to defaultDetectLanguages.
	DetectLanguages []string
}

func (c SpeechRecognizerConfig) IsValid() error {
	if c.SpeechKey == "" {
		return fmt.Errorf("invalid SpeechKey: should not be empty")
	}

	if c.SpeechRegion == "" {
		return fmt.Errorf("invalid SpeechRegion: should not be empty")
	}

	return nil
}

type SpeechRecognizer struct {
	cfg SpeechRecognizerConfig
}

func NewSpeechRecognizer(cfg SpeechRecognizerConfig) (*SpeechRecognizer, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	if len(cfg.DetectLanguages) == 0 {
		cfg.DetectLanguages = defaultDetectLanguages
	}

	return &SpeechRecognizer{
		cfg: cfg,
	}, nil
}

// Recognize pushes the buffer through a continuous recognition session and
// returns the concatenated recognized text plus the detected language as a
// two-letter tag.
func (s *SpeechRecognizer) Recognize(ctx context.Context, buf batchaudio.Buffer) (string, string, error) {
	cfg, err := speech.NewSpeechConfigFromSubscription(s.cfg.SpeechKey, s.cfg.SpeechRegion)
	if err != nil {
		return "", "", fmt.Errorf("failed to create speech config: %w", err)
	}
	defer cfg.Close()

	langCfg, err := speech.NewAutoDetectSourceLanguageConfigFromLanguages(s.cfg.DetectLanguages)
	if err != nil {
		return "", "", fmt.Errorf("failed to create language config: %w", err)
	}
	defer langCfg.Close()

	stream, err := audio.CreatePushAudioInputStream()
	if err != nil {
		return "", "", fmt.Errorf("failed to create audio stream: %w", err)
	}
	defer stream.Close()

	audioConfig, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		return "", "", fmt.Errorf("failed to create audio config: %w", err)
	}
	defer audioConfig.Close()

	speechRecognizer, err := speech.NewSpeechRecognizerFomAutoDetectSourceLangConfig(cfg, langCfg, audioConfig)
	if err != nil {
		return "", "", fmt.Errorf("failed to create speech recognizer: %w", err)
	}
	defer speechRecognizer.Close()

	var text strings.Builder
	var language string
	doneCh := make(chan struct{})
	errCh := make(chan error, 1)

	speechRecognizer.SessionStarted(func(event speech.SessionEventArgs) {
		defer event.Close()
		slog.Debug("session started", slog.String("sessionID", event.SessionID))
	})
	speechRecognizer.SessionStopped(func(event speech.SessionEventArgs) {
		defer event.Close()
		slog.Debug("session stopped", slog.String("sessionID", event.SessionID))
		close(doneCh)
	})
	speechRecognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		if event.Reason == common.EndOfStream {
			return
		}
		select {
		case errCh <- fmt.Errorf("recognition canceled: %s", event.ErrorDetails):
		default:
		}
	})
	speechRecognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()

		if event.Result.Reason != common.RecognizedSpeech {
			return
		}

		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(event.Result.Text)

		if language == "" {
			detected := event.Result.Properties.GetProperty(
				common.SpeechServiceConnectionAutoDetectSourceLanguageResult, "")
			language = languageTag(detected)
		}
	})

	if err := stream.Write(batchaudio.EncodeWAV(buf)); err != nil {
		return "", "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := <-speechRecognizer.StartContinuousRecognitionAsync(); err != nil {
		return "", "", fmt.Errorf("failed to start recognizer: %w", err)
	}
	defer func() {
		if err := <-speechRecognizer.StopContinuousRecognitionAsync(); err != nil {
			slog.Error("failed to stop recognizer", slog.String("err", err.Error()))
		}
	}()

	// This is important as it flushes out any remaining audio data.
	stream.CloseStream()

	select {
	case <-doneCh:
	case err := <-errCh:
		return "", "", fmt.Errorf("recognition failed: %w", err)
	case <-ctx.Done():
		return "", "", ctx.Err()
	}

	if text.Len() == 0 {
		return "", "", fmt.Errorf("no speech recognized")
	}

	return text.String(), language, nil
}

// languageTag reduces a locale like "en-US" to its two-letter tag.
func languageTag(locale string) string {
	if idx := strings.Index(locale, "-"); idx > 0 {
		return strings.ToLower(locale[:idx])
	}
	return strings.ToLower(locale)
}
