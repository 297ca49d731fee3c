package openai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/audio"
)

type Config struct {
	APIKey string
	// Model is the speech recognition model (e.g. whisper-1).
	Model string
	// ChatModel is the model used to translate transcripts.
	ChatModel string
	// BaseURL optionally points at an API-compatible server.
	BaseURL string
}

func (c Config) IsValid() error {
	if c == (Config{}) {
		return fmt.Errorf("invalid empty config")
	}

	if c.APIKey == "" {
		return fmt.Errorf("invalid APIKey: should not be empty")
	}

	if c.Model == "" {
		return fmt.Errorf("invalid Model: should not be empty")
	}

	return nil
}

// Client implements both the recognition and the translation collaborator
// against the OpenAI API.
type Client struct {
	cfg    Config
	client *goopenai.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		cfg:    cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
	}, nil
}

// Recognize uploads the buffer as WAV and returns the recognized text along
// with the detected language as a two-letter tag.
func (c *Client) Recognize(ctx context.Context, buf audio.Buffer) (string, string, error) {
	resp, err := c.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    c.cfg.Model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio.EncodeWAV(buf)),
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return "", "", fmt.Errorf("transcription request failed: %w", err)
	}

	if strings.TrimSpace(resp.Text) == "" {
		return "", "", fmt.Errorf("no speech recognized")
	}

	lang := languageTag(resp.Language)
	slog.Debug("transcription completed",
		slog.String("language", lang),
		slog.Float64("durationSecs", resp.Duration))

	return resp.Text, lang, nil
}

// Translate converts text from sourceLang to targetLang through a chat
// completion.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following text from %q to %q. Reply with the translation only, nothing else.",
		sourceLang, targetLang)

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: prompt},
			{Role: goopenai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translation returned no choices")
	}

	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return "", fmt.Errorf("translation returned empty text")
	}

	return translated, nil
}

// The verbose transcription response reports the language as a lowercase
// English name (e.g. "english"), not a tag.
var languageTags = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"russian":    "ru",
	"japanese":   "ja",
	"chinese":    "zh",
	"korean":     "ko",
	"arabic":     "ar",
	"hindi":      "hi",
	"turkish":    "tr",
	"polish":     "pl",
	"ukrainian":  "uk",
	"swedish":    "sv",
	"norwegian":  "no",
	"danish":     "da",
	"finnish":    "fi",
	"greek":      "el",
	"czech":      "cs",
	"romanian":   "ro",
	"hungarian":  "hu",
	"vietnamese": "vi",
	"thai":       "th",
	"indonesian": "id",
	"hebrew":     "he",
}

func languageTag(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if tag, ok := languageTags[name]; ok {
		return tag
	}
	// Already a tag, or a language we have no mapping for.
	return name
}
