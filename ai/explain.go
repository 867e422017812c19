package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mcqscan/gemini"
	"mcqscan/question"
)

const (
	// ExplanationTimeout bounds one explanation call per key
	ExplanationTimeout = 180 * time.Second
	// ExplanationAttempts is how many full generate+parse rounds are tried
	ExplanationAttempts = 3
	// ExplanationRetryDelay separates those rounds
	ExplanationRetryDelay = 500 * time.Millisecond

	minFieldLength = 5
)

// Generator is the text generation capability (gemini.Client)
type Generator interface {
	Generate(ctx context.Context, prompt string, img *gemini.Image, timeout time.Duration) (string, error)
}

// Logger receives explanation diagnostics
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}

// Explainer generates explanations for structured questions
type Explainer struct {
	model    Generator
	attempts Attempts
	timeout  time.Duration
	log      Logger
}

// ExplainerOption configures an Explainer
type ExplainerOption func(*Explainer)

// WithAttempts replaces the default three-attempt policy
func WithAttempts(a Attempts) ExplainerOption {
	return func(e *Explainer) {
		e.attempts = a
	}
}

// WithExplainTimeout sets the per-call timeout
func WithExplainTimeout(d time.Duration) ExplainerOption {
	return func(e *Explainer) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithExplainLogger routes diagnostics to l
func WithExplainLogger(l Logger) ExplainerOption {
	return func(e *Explainer) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExplainer creates an Explainer
func NewExplainer(model Generator, opts ...ExplainerOption) *Explainer {
	e := &Explainer{
		model:    model,
		attempts: Attempts{Max: ExplanationAttempts, Delay: ExplanationRetryDelay},
		timeout:  ExplanationTimeout,
		log:      nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explain always returns an explanation. When no attempt yields a valid
// one, the fixed fallback for the answer letter is returned instead.
func (e *Explainer) Explain(ctx context.Context, text string, options []question.Option, answer string) question.Explanation {
	prompt := ExplanationPrompt(text, options, answer)
	max := e.attempts.Max

	var result question.Explanation
	ok := e.attempts.Do(ctx, func(attempt int) bool {
		out, err := e.model.Generate(ctx, prompt, nil, e.timeout)
		if err != nil {
			e.log.Warnf("No API response (attempt %d/%d), retrying...", attempt, max)
			return false
		}

		obj, err := RepairJSON(out)
		if err != nil {
			e.log.Debugf("%v", err)
			e.log.Warnf("JSON parsing failed (attempt %d/%d), retrying...", attempt, max)
			return false
		}

		exp, err := ValidateExplanation(obj, answer)
		if err != nil {
			e.log.Warnf("%v (attempt %d/%d), retrying...", err, attempt, max)
			return false
		}

		result = exp
		return true
	})
	if ok {
		return result
	}

	e.log.Warnf("Using fallback explanation after %d attempts", max)
	return FallbackExplanation(answer)
}

// ValidateExplanation checks that all seven fields are present with more
// than five characters each and that "short" opens with the answer prefix.
func ValidateExplanation(obj map[string]any, answer string) (question.Explanation, error) {
	values := make(map[string]string, len(question.ExplanationFields))
	for _, field := range question.ExplanationFields {
		raw, ok := obj[field]
		if !ok || raw == nil {
			return question.Explanation{}, fmt.Errorf("incomplete fields: missing %s", field)
		}
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprint(raw)
		}
		if utf8.RuneCountInString(strings.TrimSpace(s)) <= minFieldLength {
			return question.Explanation{}, fmt.Errorf("incomplete fields: %s too short", field)
		}
		values[field] = s
	}

	if !strings.HasPrefix(strings.TrimSpace(values["short"]), question.ShortPrefix(answer)) {
		return question.Explanation{}, fmt.Errorf("short explanation format wrong")
	}

	return question.Explanation{
		Short:                values["short"],
		Detailed:             values["detailed"],
		MathematicalDeriv:    values["mathematical_derivation"],
		KeyConcept:           values["key_concept"],
		CommonMistakes:       values["common_mistakes"],
		RealWorldApplication: values["real_world_application"],
		MemoryTip:            values["memory_tip"],
	}, nil
}

// FallbackExplanation is the fixed explanation used when generation fails
func FallbackExplanation(answer string) question.Explanation {
	return question.Explanation{
		Short:                question.ShortPrefix(answer),
		Detailed:             "এই প্রশ্নটি উচ্চতর গণিতের একটি গুরুত্বপূর্ণ ধারণা পরীক্ষা করে। উত্তরটি সাবধানে পড়ুন এবং প্রতিটি বিকল্প বিশ্লেষণ করুন।",
		MathematicalDeriv:    "প্রাসঙ্গিক সূত্র এবং নীতি প্রয়োগ করা হয়েছে।",
		KeyConcept:           "এই ধারণাটি উচ্চতর গণিতের মূল বিষয়গুলির একটি। নিয়মিত অনুশীলনের মাধ্যমে আপনি এটি আরও ভালভাবে বুঝতে পারবেন।",
		CommonMistakes:       "অনেক শিক্ষার্থী বিভিন্ন বিকল্পের সূক্ষ্ম পার্থক্য বুঝতে ভুল করে। প্রতিটি বিকল্প সাবধানে বিশ্লেষণ করুন এবং মূল ধারণাটি চিহ্নিত করুন।",
		RealWorldApplication: "এই গাণিতিক নীতিগুলি প্রকৌশল, পদার্থবিজ্ঞান এবং কম্পিউটার বিজ্ঞানে ব্যাপকভাবে ব্যবহৃত হয়। উচ্চতর পড়াশোনায় এই ধারণাগুলি অত্যন্ত গুরুত্বপূর্ণ।",
		MemoryTip:            "নিয়মিত অনুশীলন এবং পুনরাবৃত্তি এটি স্মরণ করতে সাহায্য করবে। সূত্র এবং ধাপগুলি মনে রাখার জন্য সংক্ষিপ্ত নোট তৈরি করুন।",
	}
}
