package config

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	// defaults
	RecognizeAPIDefault    = RecognizeAPIOpenAI
	TranscribeModelDefault = "whisper-1"
	TranslateModelDefault  = "gpt-4o-mini"
)

type RecognizeAPI string

const (
	RecognizeAPIOpenAI RecognizeAPI = "openai"
	RecognizeAPIAzure               = "azure"
)

func (a RecognizeAPI) IsValid() bool {
	switch a {
	case RecognizeAPIOpenAI, RecognizeAPIAzure:
		return true
	default:
		return false
	}
}

type OpenAIConfig struct {
	APIKey string
	// Model used for speech recognition.
	Model string
	// ChatModel used for transcript translation.
	ChatModel string
	// BaseURL overrides the API endpoint (for proxies and compatible servers).
	BaseURL string
}

type AzureConfig struct {
	SpeechKey    string
	SpeechRegion string
}

// BatchConfig is the resolved configuration for a whole run. It is built
// once from CLI flags (input selection, processing options) plus the
// environment (collaborator credentials) and is read-only afterwards.
type BatchConfig struct {
	// input selection
	File      string
	Directory string
	Recursive bool

	// processing options
	Translate      bool
	NoiseReduction bool

	// collaborators
	RecognizeAPI RecognizeAPI
	OpenAI       OpenAIConfig
	Azure        AzureConfig

	// LogLevel is resolved once here and passed down explicitly; there is
	// no process-wide mutable verbosity.
	LogLevel slog.Level
}

func (cfg BatchConfig) IsValid() error {
	if cfg == (BatchConfig{}) {
		return fmt.Errorf("config cannot be empty")
	}

	if cfg.File == "" && cfg.Directory == "" {
		return fmt.Errorf("either a file or a directory must be provided")
	}
	if cfg.File != "" && cfg.Directory != "" {
		return fmt.Errorf("file and directory are mutually exclusive")
	}
	if cfg.Recursive && cfg.Directory == "" {
		return fmt.Errorf("recursive is only valid with a directory")
	}

	if !cfg.RecognizeAPI.IsValid() {
		return fmt.Errorf("RecognizeAPI value is not valid")
	}

	switch cfg.RecognizeAPI {
	case RecognizeAPIOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return fmt.Errorf("OpenAI.APIKey cannot be empty")
		}
		if cfg.OpenAI.Model == "" {
			return fmt.Errorf("OpenAI.Model cannot be empty")
		}
	case RecognizeAPIAzure:
		if cfg.Azure.SpeechKey == "" {
			return fmt.Errorf("Azure.SpeechKey cannot be empty")
		}
		if cfg.Azure.SpeechRegion == "" {
			return fmt.Errorf("Azure.SpeechRegion cannot be empty")
		}
	}

	if cfg.Translate && cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI.APIKey cannot be empty when translation is enabled")
	}

	return nil
}

func (cfg *BatchConfig) SetDefaults() {
	if cfg.RecognizeAPI == "" {
		cfg.RecognizeAPI = RecognizeAPIDefault
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = TranscribeModelDefault
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = TranslateModelDefault
	}
}

// FromEnv loads the parts of the configuration that are not part of the CLI
// contract: collaborator credentials and the log level.
func (cfg *BatchConfig) FromEnv() {
	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAI.BaseURL = os.Getenv("OPENAI_BASE_URL")
	if val := os.Getenv("OPENAI_TRANSCRIBE_MODEL"); val != "" {
		cfg.OpenAI.Model = val
	}
	if val := os.Getenv("OPENAI_TRANSLATE_MODEL"); val != "" {
		cfg.OpenAI.ChatModel = val
	}

	cfg.Azure.SpeechKey = os.Getenv("AZURE_SPEECH_KEY")
	cfg.Azure.SpeechRegion = os.Getenv("AZURE_SPEECH_REGION")

	if val := os.Getenv("RECOGNIZE_API"); val != "" {
		cfg.RecognizeAPI = RecognizeAPI(val)
	}

	cfg.LogLevel = slog.LevelInfo
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		_ = cfg.LogLevel.UnmarshalText([]byte(val))
	}
}
