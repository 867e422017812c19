package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"mcqscan/ai"
	"mcqscan/batch"
	"mcqscan/config"
	"mcqscan/export"
	"mcqscan/gemini"
	"mcqscan/page"
	"mcqscan/topic"
	"mcqscan/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh/spinner"
	"github.com/mattn/go-isatty"
)

// exportTargets names the optional export files; empty means skip
type exportTargets struct {
	sqlite string
	xlsx   string
}

// pipeline is everything one run needs, built once from Settings
type pipeline struct {
	runner     *batch.Runner
	translator *topic.Translator
	client     *gemini.Client
}

func newPipeline(s *config.Settings, log *tui.Logger, pause func(context.Context, time.Duration) error) (*pipeline, error) {
	keys, err := gemini.NewKeyPool(s.APIKeys)
	if err != nil {
		return nil, err
	}

	clientOpts := []gemini.ClientOption{gemini.WithModel(s.Model), gemini.WithLogger(log)}
	if s.BaseURL != "" {
		clientOpts = append(clientOpts, gemini.WithBaseURL(s.BaseURL))
	}
	client, err := gemini.NewClient(keys, clientOpts...)
	if err != nil {
		return nil, err
	}

	translator := topic.NewTranslator(client, log)
	explainer := ai.NewExplainer(client,
		ai.WithExplainTimeout(s.ExplainTimeout),
		ai.WithExplainLogger(log),
	)
	processor := page.NewProcessor(client, translator, explainer,
		page.WithWorkers(s.Workers),
		page.WithExtractionTimeout(s.ExtractTimeout),
		page.WithLogger(log),
	)

	runner := batch.NewRunner(processor, log, batch.Options{
		ImagesDir: s.ImagesDir,
		OutputDir: s.OutputDir,
		BatchSize: s.BatchSize,
		Break:     s.Break,
		Pause:     pause,
		Progress: func(done, total int, name string) {
			log.Println("")
			log.Println(tui.ImageHeader(done, total, name))
		},
	})

	return &pipeline{runner: runner, translator: translator, client: client}, nil
}

// runSummary collects per-folder outcomes for the final report
type runSummary struct {
	started     time.Time
	results     []*batch.FolderResult
	failed      map[string]error
	interrupted bool
	exported    []string
}

func (r *runSummary) completed() int {
	n := 0
	for _, res := range r.results {
		if res.AlreadyComplete || res.Processed+res.Failed+res.StartIndex >= res.Total {
			n++
		}
	}
	return n
}

// run processes the folders one after another and returns the exit code
func run(ctx context.Context, s *config.Settings, folders []config.Folder, targets exportTargets, log *tui.Logger) int {
	var pause func(context.Context, time.Duration) error
	if isatty.IsTerminal(os.Stdout.Fd()) {
		pause = spinnerPause(log)
	}

	p, err := newPipeline(s, log, pause)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	exp, err := openExports(targets)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	defer exp.close(log)

	log.Infof("Model: %s, %d API keys, %d workers", p.client.Model(), len(s.APIKeys), s.Workers)
	log.Infof("Folders: %s", folderNames(folders))

	sum := &runSummary{started: time.Now(), failed: map[string]error{}}

	for i, f := range folders {
		fmt.Println()
		fmt.Println(tui.FolderHeading(i+1, len(folders), f.Name))

		res, err := p.runner.RunFolder(ctx, f.Name, f.Context)
		if res != nil {
			sum.results = append(sum.results, res)
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Warnf("Interrupted. Progress for %s is saved; rerun to resume.", f.Name)
				sum.interrupted = true
				break
			}
			log.Errorf("Folder %s failed: %v", f.Name, err)
			sum.failed[f.Name] = err
			continue
		}

		if res.MergedPath != "" {
			if err := exp.write(ctx, f.Name, res.MergedPath, log); err != nil {
				log.Errorf("Export failed for %s: %v", f.Name, err)
			}
		}
	}

	if err := exp.save(); err != nil {
		log.Errorf("Failed to save workbook: %v", err)
	}
	sum.exported = exp.paths()

	printSummary(sum, p.translator.Len())

	if sum.interrupted {
		return 130
	}
	return 0
}

// spinnerPause shows a spinner for the length of a break
func spinnerPause(log *tui.Logger) func(context.Context, time.Duration) error {
	fallback := batch.Countdown(log)
	return func(ctx context.Context, d time.Duration) error {
		title := fmt.Sprintf("Taking a %s break, resuming at %s...", batch.Clock(d), time.Now().Add(d).Format("15:04:05"))
		show := func(wait func(context.Context) error) error {
			return spinner.New().Title(title).Context(ctx).ActionWithErr(wait).Run()
		}
		return pauseWith(ctx, d, show, fallback, log)
	}
}

// pauseWith waits out d inside show. Cancellation and Ctrl+C end the break
// early; any other show failure hands the rest of the break to fallback.
func pauseWith(ctx context.Context, d time.Duration, show func(wait func(context.Context) error) error,
	fallback func(context.Context, time.Duration) error, log *tui.Logger) error {
	deadline := time.Now().Add(d)
	var finished atomic.Bool

	err := show(func(ctx context.Context) error {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			finished.Store(true)
			return nil
		}
	})

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, tea.ErrInterrupted), errors.Is(err, context.Canceled):
		return context.Canceled
	case err == nil && finished.Load():
		return nil
	}

	rest := time.Until(deadline)
	if err != nil {
		log.Warnf("Spinner failed (%v), waiting out the break without it", err)
	}
	if rest <= 0 {
		return nil
	}
	return fallback(ctx, rest)
}

// exporter fans merged folder output out to the optional export files
type exporter struct {
	targets exportTargets
	db      *export.SQLite
	wb      *export.Workbook
}

func openExports(t exportTargets) (*exporter, error) {
	e := &exporter{targets: t}
	if t.sqlite != "" {
		db, err := export.OpenSQLite(t.sqlite)
		if err != nil {
			return nil, err
		}
		e.db = db
	}
	if t.xlsx != "" {
		wb, err := export.NewWorkbook(t.xlsx)
		if err != nil {
			if e.db != nil {
				e.db.Close()
			}
			return nil, err
		}
		e.wb = wb
	}
	return e, nil
}

func (e *exporter) write(ctx context.Context, folder, mergedPath string, log *tui.Logger) error {
	if e.db == nil && e.wb == nil {
		return nil
	}

	records, err := batch.ReadRecords(mergedPath)
	if err != nil {
		return err
	}

	if e.db != nil {
		n, err := e.db.WriteFolder(ctx, folder, records)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		log.Successf("SQLite: %d questions stored for %s", n, folder)
		if topics, err := e.db.Topics(ctx, folder); err == nil {
			for _, tc := range topics {
				log.Debugf("  %s (%s): %d", tc.TopicEN, tc.TopicBN, tc.Count)
			}
		}
	}
	if e.wb != nil {
		sheet, err := e.wb.AddFolder(folder, records)
		if err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
		log.Successf("Workbook: sheet %q added", sheet)
	}
	return nil
}

func (e *exporter) save() error {
	if e.wb == nil || len(e.wb.Sheets()) == 0 {
		return nil
	}
	return e.wb.Save()
}

func (e *exporter) paths() []string {
	var out []string
	if e.db != nil {
		out = append(out, e.targets.sqlite)
	}
	if e.wb != nil && len(e.wb.Sheets()) > 0 {
		out = append(out, e.targets.xlsx)
	}
	return out
}

func (e *exporter) close(log *tui.Logger) {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			log.Warnf("Closing SQLite: %v", err)
		}
	}
}

func printSummary(sum *runSummary, cached int) {
	var cards []string
	for _, res := range sum.results {
		status := tui.FolderDone
		switch {
		case res.Failed > 0 || res.Processed+res.StartIndex+res.Failed < res.Total:
			status = tui.FolderPartial
		case res.MergedPath == "":
			status = tui.FolderFailed
		}

		subtitle := fmt.Sprintf("%d questions", res.Questions)
		if res.AlreadyComplete {
			subtitle += ", already complete"
		} else {
			subtitle += fmt.Sprintf(", %d/%d images, %d failed", res.Processed, res.Total-res.StartIndex, res.Failed)
		}
		if res.MergedPath != "" {
			subtitle += "\n    " + res.MergedPath + sizeSuffix(res.MergedPath)
		}
		cards = append(cards, tui.StatusCard(res.Folder, subtitle, status, 64))
	}
	for name, err := range sum.failed {
		cards = append(cards, tui.StatusCard(name, err.Error(), tui.FolderFailed, 64))
	}
	for _, c := range cards {
		fmt.Println(c)
	}

	lines := []string{
		fmt.Sprintf("Elapsed:       %s", formatElapsed(time.Since(sum.started))),
		fmt.Sprintf("Folders done:  %d", sum.completed()),
		fmt.Sprintf("Translations:  %d cached", cached),
	}
	for _, p := range sum.exported {
		lines = append(lines, "Exported:      "+p+sizeSuffix(p))
	}
	title := "Processing complete"
	if sum.interrupted {
		title = "Stopped early"
	}
	fmt.Println(tui.Card(title, strings.Join(lines, "\n"), 64))
}

func sizeSuffix(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return " (" + formatFileSize(info.Size()) + ")"
}

func folderNames(folders []config.Folder) string {
	names := make([]string, len(folders))
	for i, f := range folders {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

// formatElapsed renders d as hh:mm:ss
func formatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
