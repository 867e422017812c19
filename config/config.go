// Package config reads run settings from the environment and the folder
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mcqscan/ai"
	"mcqscan/batch"
	"mcqscan/gemini"
	"mcqscan/page"
)

const (
	DefaultImagesDir    = "Images"
	DefaultOutputDir    = "output_data"
	DefaultContextsFile = "folder_contexts.json"
)

// ErrNoKeys is returned when GEMINI_API_KEYS holds no usable key
var ErrNoKeys = errors.New("GEMINI_API_KEYS not set")

// Settings is the run configuration
type Settings struct {
	APIKeys      []string
	Model        string
	BaseURL      string
	ImagesDir    string
	OutputDir    string
	ContextsFile string
	BatchSize    int
	Break        time.Duration
	Workers      int
	Debug        bool

	// per-key call timeouts
	ExtractTimeout time.Duration
	ExplainTimeout time.Duration
}

// FromEnv builds Settings from environment variables, applying defaults
// for anything unset. Call godotenv.Load first to pick up a .env file.
func FromEnv() (*Settings, error) {
	s := &Settings{
		APIKeys:      gemini.ParseKeyList(os.Getenv("GEMINI_API_KEYS")),
		Model:        envOr("GEMINI_MODEL", gemini.ModelGemini25FlashPreview),
		BaseURL:      os.Getenv("GEMINI_BASE_URL"),
		ImagesDir:    envOr("MCQ_IMAGES_DIR", DefaultImagesDir),
		OutputDir:    envOr("MCQ_OUTPUT_DIR", DefaultOutputDir),
		ContextsFile: envOr("MCQ_CONTEXTS_FILE", DefaultContextsFile),
		BatchSize:    batch.DefaultBatchSize,
		Break:        batch.DefaultBreak,
		Workers:      page.DefaultWorkers,
		Debug:        os.Getenv("MCQ_DEBUG") != "",

		ExtractTimeout: page.ExtractionTimeout,
		ExplainTimeout: ai.ExplanationTimeout,
	}

	var err error
	if s.BatchSize, err = envInt("MCQ_BATCH_SIZE", s.BatchSize); err != nil {
		return nil, err
	}
	minutes, err := envInt("MCQ_BREAK_MINUTES", int(s.Break/time.Minute))
	if err != nil {
		return nil, err
	}
	s.Break = time.Duration(minutes) * time.Minute
	if s.Workers, err = envInt("MCQ_WORKERS", s.Workers); err != nil {
		return nil, err
	}
	if s.ExtractTimeout, err = envSeconds("MCQ_EXTRACT_TIMEOUT", s.ExtractTimeout); err != nil {
		return nil, err
	}
	if s.ExplainTimeout, err = envSeconds("MCQ_EXPLAIN_TIMEOUT", s.ExplainTimeout); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks settings that would make the run fail
func (s *Settings) Validate() error {
	if len(s.APIKeys) == 0 {
		return ErrNoKeys
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative, got %d", s.BatchSize)
	}
	if s.Break < 0 {
		return fmt.Errorf("break must not be negative, got %s", s.Break)
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.ExtractTimeout < 0 || s.ExplainTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// GetAPIKeyHelp returns help text for setting up Gemini keys
func GetAPIKeyHelp() string {
	return `To extract questions, you need one or more Google Gemini API keys.

Setup:
  1. Go to https://aistudio.google.com/apikey
  2. Create one or more API keys
  3. Set the environment variable (comma-separated):

     export GEMINI_API_KEYS="key-one,key-two,key-three"

  Or add it to your .env file.

Keys are used in rotation, one per request.`
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// envSeconds reads a whole number of seconds
func envSeconds(key string, def time.Duration) (time.Duration, error) {
	n, err := envInt(key, int(def/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
