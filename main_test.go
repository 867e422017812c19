package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mcqscan/batch"
	"mcqscan/config"
	"mcqscan/question"
	"mcqscan/tui"

	tea "github.com/charmbracelet/bubbletea"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{
		"-images", "scans", "-batch-size", "5", "-break", "2",
		"-folder", "Matrix", "-folder", "Vector, Calculus", "-sqlite", "out/q.db", "-debug",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() failed: %v", err)
	}

	if opts.imagesDir != "scans" || opts.batchSize != 5 || opts.breakMinutes != 2 {
		t.Errorf("opts = %+v", opts)
	}
	if strings.Join(opts.folders, "|") != "Matrix|Vector|Calculus" {
		t.Errorf("folders = %v", opts.folders)
	}
	if opts.sqlitePath != "out/q.db" || !opts.debug {
		t.Errorf("sqlite = %q, debug = %v", opts.sqlitePath, opts.debug)
	}
	if !opts.set["images"] || opts.set["output"] {
		t.Errorf("set = %v", opts.set)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseFlags([]string{"-batch-size", "many"}, &stderr); err == nil {
		t.Error("expected error for non-numeric batch size")
	}
	if _, err := parseFlags([]string{"stray"}, io.Discard); err == nil {
		t.Error("expected error for positional argument")
	}
	if _, err := parseFlags([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("-h error = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(stderr.String(), "-contexts") {
		t.Errorf("usage should list flags:\n%s", stderr.String())
	}
}

func TestApply(t *testing.T) {
	base := config.Settings{
		ImagesDir: "Images", OutputDir: "output_data", ContextsFile: "folder_contexts.json",
		BatchSize: 20, Break: 20 * time.Minute, Workers: 4,
	}

	tests := []struct {
		name  string
		args  []string
		check func(s config.Settings) bool
	}{
		{"no flags keeps env", nil, func(s config.Settings) bool {
			return s.ImagesDir == base.ImagesDir && s.BatchSize == 20 && s.Break == base.Break && s.Workers == 4 && !s.Debug
		}},
		{"zero batch size disables breaks", []string{"-batch-size", "0"}, func(s config.Settings) bool { return s.BatchSize == 0 }},
		{"break minutes", []string{"-break", "1"}, func(s config.Settings) bool { return s.Break == time.Minute }},
		{"paths", []string{"-output", "o", "-contexts", "c.yaml"}, func(s config.Settings) bool {
			return s.OutputDir == "o" && s.ContextsFile == "c.yaml" && s.ImagesDir == "Images"
		}},
		{"debug", []string{"-debug"}, func(s config.Settings) bool { return s.Debug }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args, io.Discard)
			if err != nil {
				t.Fatal(err)
			}
			s := base
			opts.apply(&s)
			if !tt.check(s) {
				t.Errorf("settings = %+v", s)
			}
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 bytes"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := formatFileSize(tt.bytes); got != tt.want {
			t.Errorf("formatFileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3*time.Hour + 4*time.Minute + 5*time.Second); got != "03:04:05" {
		t.Errorf("formatElapsed() = %q", got)
	}
	if got := formatElapsed(1500 * time.Millisecond); got != "00:00:02" {
		t.Errorf("formatElapsed() = %q", got)
	}
}

func TestRunSummary_Completed(t *testing.T) {
	sum := &runSummary{results: []*batch.FolderResult{
		{Folder: "done", Total: 3, Processed: 2, Failed: 1},
		{Folder: "resumed", Total: 5, StartIndex: 3, Processed: 2},
		{Folder: "skipped", Total: 4, StartIndex: 4, AlreadyComplete: true},
		{Folder: "stopped", Total: 6, Processed: 2},
	}}
	if got := sum.completed(); got != 3 {
		t.Errorf("completed() = %d, want 3", got)
	}
}

func TestExporter(t *testing.T) {
	dir := t.TempDir()
	merged := filepath.Join(dir, "Matrix", batch.MergedFileName)
	records := []question.Record{{
		ID:               "math_hs_1_01",
		Context:          map[string]any{"topic_bn": "ম্যাট্রিক্স", "topic_en": "Matrix"},
		QuestionText:     "$|A| = 0$ হলে?",
		Options:          []question.Option{{Key: "a", Text: "1"}, {Key: "b", Text: "2"}, {Key: "c", Text: "3"}, {Key: "d", Text: "4"}},
		CorrectAnswerKey: "b",
		Reference:        question.NoReference,
	}}
	if _, err := batch.WriteRecords(merged, records); err != nil {
		t.Fatal(err)
	}

	targets := exportTargets{sqlite: filepath.Join(dir, "q.db"), xlsx: filepath.Join(dir, "review.xlsx")}
	exp, err := openExports(targets)
	if err != nil {
		t.Fatalf("openExports() failed: %v", err)
	}
	log := tui.NewLogger(io.Discard, false)
	defer exp.close(log)

	if got := exp.paths(); len(got) != 1 || got[0] != targets.sqlite {
		t.Errorf("paths() before any sheet = %v", got)
	}

	if err := exp.write(context.Background(), "Matrix", merged, log); err != nil {
		t.Fatalf("write() failed: %v", err)
	}
	if err := exp.save(); err != nil {
		t.Fatalf("save() failed: %v", err)
	}

	if n, err := exp.db.Count(context.Background(), "Matrix"); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v", n, err)
	}
	if got := exp.paths(); len(got) != 2 {
		t.Errorf("paths() = %v", got)
	}
}

func TestExporter_Disabled(t *testing.T) {
	exp, err := openExports(exportTargets{})
	if err != nil {
		t.Fatal(err)
	}
	if err := exp.write(context.Background(), "F", "missing.json", tui.NewLogger(io.Discard, false)); err != nil {
		t.Errorf("write() with no targets = %v", err)
	}
	if err := exp.save(); err != nil || len(exp.paths()) != 0 {
		t.Errorf("save() = %v, paths = %v", err, exp.paths())
	}
}

func TestPauseWith(t *testing.T) {
	runWait := func(wait func(context.Context) error) error { return wait(context.Background()) }

	tests := []struct {
		name         string
		cancel       bool
		show         func(wait func(context.Context) error) error
		want         error
		wantFallback bool
		wantWarning  bool
	}{
		{"break runs out", false, runWait, nil, false, false},
		{"spinner cannot start", false, func(func(context.Context) error) error {
			return errors.New("could not open a new TTY")
		}, nil, true, true},
		{"ctrl+c inside spinner", false, func(func(context.Context) error) error {
			return tea.ErrInterrupted
		}, context.Canceled, false, false},
		{"run cancelled", true, func(func(context.Context) error) error {
			return fmt.Errorf("%w: %w", tea.ErrProgramKilled, context.Canceled)
		}, context.Canceled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			var out bytes.Buffer
			fellBack := false
			fallback := func(_ context.Context, rest time.Duration) error {
				fellBack = true
				if rest <= 0 || rest > 200*time.Millisecond {
					t.Errorf("fallback got %v of the break", rest)
				}
				return nil
			}

			err := pauseWith(ctx, 200*time.Millisecond, tt.show, fallback, tui.NewLogger(&out, false))
			if !errors.Is(err, tt.want) {
				t.Errorf("pauseWith() = %v, want %v", err, tt.want)
			}
			if fellBack != tt.wantFallback {
				t.Errorf("fallback used = %v, want %v", fellBack, tt.wantFallback)
			}
			if got := strings.Contains(out.String(), "Spinner failed"); got != tt.wantWarning {
				t.Errorf("warning logged = %v, output %q", got, out.String())
			}
		})
	}
}
