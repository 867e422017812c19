// Package page turns one scanned page image into finished question records.
package page

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mcqscan/ai"
	"mcqscan/gemini"
	"mcqscan/question"
	"mcqscan/topic"
)

const (
	// ExtractionTimeout bounds one extraction call per key
	ExtractionTimeout = 180 * time.Second
	// DefaultWorkers is the explanation pool size
	DefaultWorkers = 4
	// BaseIDPrefix starts every record id
	BaseIDPrefix = "math_hs"
)

var (
	// ErrNoText is returned when extraction produced no usable text
	ErrNoText = errors.New("no text extracted")
	// ErrNoQuestions is returned when no block survived structuring
	ErrNoQuestions = errors.New("no valid questions structured")
)

// Explainer produces an explanation for one question; it never fails
type Explainer interface {
	Explain(ctx context.Context, text string, options []question.Option, answer string) question.Explanation
}

// Logger receives page progress and diagnostics
type Logger interface {
	Infof(format string, args ...any)
	Successf(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)    {}
func (nopLogger) Successf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)    {}
func (nopLogger) Debugf(string, ...any)   {}

// Processor runs extraction, structuring and explanation for one page
type Processor struct {
	model      ai.Generator
	translator topic.Labeler
	explainer  Explainer
	workers    int
	timeout    time.Duration
	log        Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithWorkers sets the explanation pool size
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithExtractionTimeout sets the extraction call timeout
func WithExtractionTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger routes progress output to l
func WithLogger(l Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProcessor creates a page Processor
func NewProcessor(model ai.Generator, translator topic.Labeler, explainer Explainer, opts ...Option) *Processor {
	p := &Processor{
		model:      model,
		translator: translator,
		explainer:  explainer,
		workers:    DefaultWorkers,
		timeout:    ExtractionTimeout,
		log:        nopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts every question on the page at imagePath. state is the
// topic in effect when the page starts; the returned state is the topic in
// effect after its last question and is returned even on failure.
func (p *Processor) Process(ctx context.Context, imagePath string, folderCtx map[string]any, state topic.State) ([]question.Record, topic.State, error) {
	img, err := gemini.ReadImage(imagePath)
	if err != nil {
		return nil, state, err
	}

	p.log.Infof("Extracting questions...")
	prompt := ai.ExtractionPrompt(state.Source, state.Translated)
	raw, err := p.model.Generate(ctx, prompt, img, p.timeout)
	if err != nil {
		return nil, state, fmt.Errorf("%w: %v", ErrNoText, err)
	}
	if raw == "" {
		return nil, state, ErrNoText
	}

	baseID := BaseIDPrefix + "_" + gemini.Stem(imagePath)
	records, state := p.Structure(ctx, raw, baseID, folderCtx, state)
	if len(records) == 0 {
		return nil, state, ErrNoQuestions
	}

	p.log.Infof("Generating explanations for %d questions (parallel)...", len(records))
	p.explain(ctx, records)
	p.log.Successf("Completed %d questions", len(records))

	return records, state, nil
}

// Structure parses extraction output into records, resolving the topic for
// each complete block in order. Incomplete or malformed blocks are skipped.
func (p *Processor) Structure(ctx context.Context, raw, baseID string, folderCtx map[string]any, state topic.State) ([]question.Record, topic.State) {
	var records []question.Record

	for i, text := range ai.SplitBlocks(raw) {
		index := i + 1
		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, next, err := p.structureBlock(ctx, index, text, baseID, folderCtx, state)
		if err != nil {
			if errors.Is(err, ai.ErrIncompleteBlock) {
				p.log.Warnf("Skipping incomplete question block %d (missing data)", index)
				p.log.Debugf("%v", err)
			} else {
				p.log.Warnf("Error structuring question block %d: %v", index, err)
			}
			continue
		}

		state = next
		records = append(records, rec)
		p.log.Debugf("Structured %s (Topic: %s)", rec.ID, state.Source)
	}

	return records, state
}

func (p *Processor) structureBlock(ctx context.Context, index int, text, baseID string, folderCtx map[string]any, state topic.State) (rec question.Record, next topic.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	block, err := ai.ParseBlock(index, text)
	if err != nil {
		return question.Record{}, state, err
	}

	next, event := topic.Resolve(ctx, state, block.Topic, p.translator)
	switch event {
	case topic.SwitchedNew, topic.SwitchedSelfTest:
		p.log.Infof("New Topic Detected: %s (%s)", next.Source, next.Translated)
	case topic.SetDefault:
		p.log.Debugf("Setting default topic: %s", next.Source)
	}

	ctxBag := make(map[string]any, len(folderCtx)+2)
	maps.Copy(ctxBag, folderCtx)
	ctxBag["topic_bn"] = next.Source
	ctxBag["topic_en"] = next.Translated

	return question.Record{
		ID:               question.ID(baseID, block.Number),
		Context:          ctxBag,
		QuestionText:     block.Text,
		Options:          block.OptionList(),
		CorrectAnswerKey: block.Answer,
		Reference:        block.Reference,
		Tags:             question.Tags(next.Translated),
		Difficulty:       question.Difficulty(block.Text),
	}, next, nil
}

// explain fills each record's explanation with a bounded worker pool.
// Every worker writes only its own record.
func (p *Processor) explain(ctx context.Context, records []question.Record) {
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i := range records {
		g.Go(func() error {
			r := &records[i]
			exp := p.explainer.Explain(ctx, r.QuestionText, r.Options, r.CorrectAnswerKey)
			r.Explanation = &exp
			return nil
		})
	}

	_ = g.Wait()
}
