package topic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mcqscan/gemini"
)

// fakeModel answers translation prompts from a table
type fakeModel struct {
	mu      sync.Mutex
	answers map[string]string
	err     error
	calls   int
}

func (m *fakeModel) Generate(_ context.Context, prompt string, img *gemini.Image, timeout time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if img != nil {
		return "", errors.New("translation should not send an image")
	}
	if timeout != TranslationTimeout {
		return "", errors.New("unexpected timeout")
	}
	if m.err != nil {
		return "", m.err
	}
	for label, answer := range m.answers {
		if strings.Contains(prompt, "Bengali Topic: "+label+"\n") {
			return answer, nil
		}
	}
	return "", gemini.ErrKeysExhausted
}

func (m *fakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestTranslator_ShortCircuits(t *testing.T) {
	model := &fakeModel{}
	tr := NewTranslator(model, nil)
	ctx := context.Background()

	tests := []struct {
		label string
		want  string
	}{
		{"", DefaultTranslated},
		{DefaultSource, DefaultTranslated},
		{SelfTest, SelfTest},
	}
	for _, tt := range tests {
		if got := tr.Translate(ctx, tt.label); got != tt.want {
			t.Errorf("Translate(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
	if model.Calls() != 0 {
		t.Errorf("expected no model calls, got %d", model.Calls())
	}
}

func TestTranslator_Caches(t *testing.T) {
	model := &fakeModel{answers: map[string]string{"বীজগণিত": "  \"Algebra\"\n"}}
	tr := NewTranslator(model, nil)
	ctx := context.Background()

	first := tr.Translate(ctx, "বীজগণিত")
	second := tr.Translate(ctx, "বীজগণিত")

	if first != "Algebra" || second != "Algebra" {
		t.Errorf("Translate() = %q, %q, want Algebra twice", first, second)
	}
	if model.Calls() != 1 {
		t.Errorf("expected 1 model call, got %d", model.Calls())
	}
	if tr.Len() != 1 {
		t.Errorf("cache size = %d, want 1", tr.Len())
	}
}

func TestTranslator_FailureNotCached(t *testing.T) {
	model := &fakeModel{err: gemini.ErrKeysExhausted}
	tr := NewTranslator(model, nil)
	ctx := context.Background()

	if got := tr.Translate(ctx, "ভেক্টর"); got != DefaultTranslated {
		t.Errorf("Translate() = %q, want %q", got, DefaultTranslated)
	}
	tr.Translate(ctx, "ভেক্টর")

	if model.Calls() != 2 {
		t.Errorf("failed translations should be retried on next use, got %d calls", model.Calls())
	}
	if tr.Len() != 0 {
		t.Errorf("cache size = %d, want 0", tr.Len())
	}
}

func TestCleanTranslation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Vector", "Vector"},
		{` "Vector" `, "Vector"},
		{`'Vector'`, "Vector"},
		{`"'Vector'"`, "Vector"},
		{`'"Vector"'`, `"Vector"`},
	}
	for _, tt := range tests {
		if got := cleanTranslation(tt.in); got != tt.want {
			t.Errorf("cleanTranslation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	algebra := State{Source: "বীজগণিত", Translated: "Algebra"}

	tests := []struct {
		name      string
		state     State
		marker    string
		want      State
		wantEvent Event
	}{
		{"empty marker on unset state", State{}, "", Default(), SetDefault},
		{"empty marker keeps topic", algebra, "", algebra, Unchanged},
		{"continue on unset state", State{}, Continue, Default(), SetDefault},
		{"continue keeps topic", algebra, Continue, algebra, Unchanged},
		{"self test", algebra, SelfTest, State{SelfTest, SelfTest}, SwitchedSelfTest},
		{"self test again", State{SelfTest, SelfTest}, SelfTest, State{SelfTest, SelfTest}, Unchanged},
		{"new label", State{}, "ভেক্টর", State{"ভেক্টর", "Vector"}, SwitchedNew},
		{"same label", algebra, "বীজগণিত", algebra, Unchanged},
		{"generic on unset", State{}, DefaultSource, Default(), SetDefault},
		{"english generic on unset", State{}, "General", Default(), SetDefault},
		{"generic keeps topic", algebra, DefaultSource, algebra, Unchanged},
		{"marker whitespace trimmed", algebra, "  CONTINUE  ", algebra, Unchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{answers: map[string]string{"ভেক্টর": "Vector"}}
			tr := NewTranslator(model, nil)

			got, event := Resolve(context.Background(), tt.state, tt.marker, tr)
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
			if event != tt.wantEvent {
				t.Errorf("Resolve() event = %v, want %v", event, tt.wantEvent)
			}
		})
	}
}

func TestResolve_ContinueIsIdempotent(t *testing.T) {
	tr := NewTranslator(&fakeModel{}, nil)
	s := State{Source: "ত্রিকোণমিতি", Translated: "Trigonometry"}

	for i := 0; i < 10; i++ {
		next, _ := Resolve(context.Background(), s, Continue, tr)
		if next != s {
			t.Fatalf("iteration %d: state changed to %+v", i, next)
		}
	}
}

func TestResolve_SelfTestSkipsTranslation(t *testing.T) {
	model := &fakeModel{answers: map[string]string{}}
	tr := NewTranslator(model, nil)

	got, _ := Resolve(context.Background(), State{Source: "ম্যাট্রিক্স", Translated: "Matrix"}, SelfTest, tr)

	if got != (State{Source: SelfTest, Translated: SelfTest}) {
		t.Errorf("Resolve() = %+v", got)
	}
	if model.Calls() != 0 {
		t.Errorf("expected no translation call, got %d", model.Calls())
	}
}
