package topic

import (
	"context"
	"strings"
	"sync"
	"time"

	"mcqscan/ai"
)

// TranslationTimeout bounds one translation call per key
const TranslationTimeout = 60 * time.Second

// Translator maps Bengali topic labels to English, caching every
// successful translation for the life of the process.
type Translator struct {
	model   ai.Generator
	timeout time.Duration
	log     ai.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewTranslator creates a Translator backed by model. log may be nil.
func NewTranslator(model ai.Generator, log ai.Logger) *Translator {
	if log == nil {
		log = quiet{}
	}
	return &Translator{
		model:   model,
		timeout: TranslationTimeout,
		log:     log,
		cache:   make(map[string]string),
	}
}

// Translate returns the English label. Generic and self-test labels never
// reach the model. A failed call yields DefaultTranslated and is not cached.
func (t *Translator) Translate(ctx context.Context, label string) string {
	if label == "" || label == DefaultSource {
		return DefaultTranslated
	}
	if label == SelfTest {
		return SelfTest
	}

	t.mu.Lock()
	cached, ok := t.cache[label]
	t.mu.Unlock()
	if ok {
		t.log.Debugf("Using cached translation for: %s", label)
		return cached
	}

	t.log.Debugf("Translating new topic: %s", label)
	out, err := t.model.Generate(ctx, ai.TranslationPrompt(label), nil, t.timeout)
	if err != nil {
		t.log.Warnf("Topic translation failed for %q: %v", label, err)
		return DefaultTranslated
	}

	result := cleanTranslation(out)
	if result == "" {
		t.log.Warnf("Topic translation for %q was blank", label)
		return DefaultTranslated
	}

	t.mu.Lock()
	t.cache[label] = result
	t.mu.Unlock()

	return result
}

// Len returns the number of cached translations
func (t *Translator) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}

func cleanTranslation(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.Trim(s, `'`)
}

type quiet struct{}

func (quiet) Warnf(string, ...any)  {}
func (quiet) Debugf(string, ...any) {}
