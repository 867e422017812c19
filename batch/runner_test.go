package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mcqscan/ai"
	"mcqscan/gemini"
	"mcqscan/page"
	"mcqscan/question"
	"mcqscan/topic"
)

type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *testLogger) Infof(f string, a ...any)    { l.add("INFO", f, a...) }
func (l *testLogger) Successf(f string, a ...any) { l.add("OK", f, a...) }
func (l *testLogger) Warnf(f string, a ...any)    { l.add("WARN", f, a...) }
func (l *testLogger) Errorf(f string, a ...any)   { l.add("ERROR", f, a...) }
func (l *testLogger) Debugf(f string, a ...any)   { l.add("DEBUG", f, a...) }

// pageModel answers extraction calls by image content, translation calls
// by label, and explanation calls with a valid explanation.
type pageModel struct {
	mu           sync.Mutex
	pages        map[string]string
	translations map[string]string
	extractions  []string
	translated   int
}

func (m *pageModel) Generate(_ context.Context, prompt string, img *gemini.Image, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img != nil {
		m.extractions = append(m.extractions, string(img.Data))
		out, ok := m.pages[string(img.Data)]
		if !ok {
			return "", gemini.ErrKeysExhausted
		}
		return out, nil
	}

	for label, answer := range m.translations {
		if strings.Contains(prompt, "Bengali Topic: "+label+"\n") {
			m.translated++
			return answer, nil
		}
	}

	if strings.Contains(prompt, "সঠিক উত্তর: ") {
		answer := "A"
		for _, l := range []string{"A", "B", "C", "D"} {
			if strings.Contains(prompt, `START the short explanation with: "সঠিক উত্তর: `+l+`"`) {
				answer = l
			}
		}
		return fmt.Sprintf(`{"short": "সঠিক উত্তর: %s - ব্যাখ্যা", "detailed": "বিস্তারিত ব্যাখ্যা", "mathematical_derivation": "$a + b = c$", "key_concept": "মূল ধারণা এখানে", "common_mistakes": "সাধারণ ভুলগুলো", "real_world_application": "বাস্তব প্রয়োগ এখানে", "memory_tip": "মনে রাখার কৌশল"}`, answer), nil
	}

	return "", gemini.ErrKeysExhausted
}

func extractionBlock(marker, num, ans string) string {
	return fmt.Sprintf("TOPIC: %s\nQ_NUM: %s\nQ_TEXT: প্রশ্ন %s\nOPT_A: 1\nOPT_B: 2\nOPT_C: 3\nOPT_D: 4\nANS: %s\nREF: DU'21\n===END===\n", marker, num, num, ans)
}

type fixture struct {
	imagesDir string
	outputDir string
	model     *pageModel
	log       *testLogger
	pauses    []time.Duration
	now       time.Time
}

func newFixture(t *testing.T, folder string, pages ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		imagesDir: filepath.Join(root, "Images"),
		outputDir: filepath.Join(root, "output_data"),
		model:     &pageModel{pages: map[string]string{}, translations: map[string]string{}},
		log:       &testLogger{},
		now:       time.Unix(1700000000, 500000000),
	}

	dir := filepath.Join(f.imagesDir, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i, content := range pages {
		name := filepath.Join(dir, fmt.Sprintf("page_%d.jpg", i+1))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("image-%d", i+1)), 0644); err != nil {
			t.Fatal(err)
		}
		f.model.pages[fmt.Sprintf("image-%d", i+1)] = content
	}
	return f
}

func (f *fixture) runner(batchSize int) (*Runner, *topic.Translator) {
	tr := topic.NewTranslator(f.model, f.log)
	explainer := ai.NewExplainer(f.model, ai.WithAttempts(ai.Attempts{Max: 3, Sleep: func(time.Duration) {}}))
	pages := page.NewProcessor(f.model, tr, explainer, page.WithLogger(f.log))

	return NewRunner(pages, f.log, Options{
		ImagesDir: f.imagesDir,
		OutputDir: f.outputDir,
		BatchSize: batchSize,
		Break:     20 * time.Minute,
		Pause: func(_ context.Context, d time.Duration) error {
			f.pauses = append(f.pauses, d)
			return nil
		},
		Now: func() time.Time { return f.now },
	}), tr
}

func TestRunFolder_TopicCarriesAcrossPages(t *testing.T) {
	f := newFixture(t, "Chapter1",
		extractionBlock("Algebra", "01.", "b"),
		extractionBlock("CONTINUE", "02.", "d"),
	)
	f.model.translations["Algebra"] = "Algebra"
	r, tr := f.runner(20)

	res, err := r.RunFolder(context.Background(), "Chapter1", map[string]any{"subject": "Higher Math"})
	if err != nil {
		t.Fatalf("RunFolder() failed: %v", err)
	}

	if res.Processed != 2 || res.Failed != 0 || res.Questions != 2 {
		t.Errorf("result = %+v", res)
	}
	if f.model.translated != 1 || tr.Len() != 1 {
		t.Errorf("expected one translation call, got %d (cache %d)", f.model.translated, tr.Len())
	}

	merged, err := ReadRecords(filepath.Join(f.outputDir, "Chapter1", MergedFileName))
	if err != nil {
		t.Fatalf("ReadRecords() failed: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged has %d records, want 2", len(merged))
	}
	if merged[0].ID != "math_hs_page_1_01" || merged[1].ID != "math_hs_page_2_02" {
		t.Errorf("merged order = %s, %s", merged[0].ID, merged[1].ID)
	}
	for i, rec := range merged {
		if rec.Context["topic_en"] != "Algebra" || rec.Context["topic_bn"] != "Algebra" {
			t.Errorf("record %d context = %v", i, rec.Context)
		}
		if rec.Tags[len(rec.Tags)-1] != "Algebra" {
			t.Errorf("record %d tags = %v", i, rec.Tags)
		}
		if rec.Explanation == nil || rec.Explanation.Short == "" {
			t.Errorf("record %d has no explanation", i)
		}
	}
	if merged[0].CorrectAnswerKey != "b" || !strings.HasPrefix(merged[0].Explanation.Short, "সঠিক উত্তর: B") {
		t.Errorf("first record answer/explanation = %q / %q", merged[0].CorrectAnswerKey, merged[0].Explanation.Short)
	}

	for _, name := range []string{"page_1.json", "page_2.json", CheckpointFileName} {
		if _, err := os.Stat(filepath.Join(f.outputDir, "Chapter1", name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if len(f.pauses) != 0 {
		t.Errorf("no pause expected, got %d", len(f.pauses))
	}
}

func TestRunFolder_Resume(t *testing.T) {
	f := newFixture(t, "Vectors",
		extractionBlock("ভেক্টর", "1", "a"),
		extractionBlock("CONTINUE", "2", "b"),
		extractionBlock("CONTINUE", "3", "c"),
	)
	outDir := filepath.Join(f.outputDir, "Vectors")

	// A previous run finished image 1 under a topic this run has never translated.
	prev := []question.Record{{ID: "math_hs_page_1_1", QuestionText: "from earlier run"}}
	if _, err := WriteRecords(ImageOutputPath(outDir, "page_1.jpg"), prev); err != nil {
		t.Fatal(err)
	}
	saved := topic.State{Source: "ভেক্টর", Translated: "Vector Analysis"}
	if err := SaveCheckpoint(outDir, &Checkpoint{Folder: "Vectors", Processed: 1, Total: 3, TopicTracker: Snapshot(saved)}); err != nil {
		t.Fatal(err)
	}

	r, _ := f.runner(20)
	res, err := r.RunFolder(context.Background(), "Vectors", map[string]any{"chapter": 2})
	if err != nil {
		t.Fatalf("RunFolder() failed: %v", err)
	}

	if res.StartIndex != 1 || res.Processed != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(f.model.extractions) != 2 || f.model.extractions[0] != "image-2" || f.model.extractions[1] != "image-3" {
		t.Errorf("extracted %v, want images 2 and 3", f.model.extractions)
	}
	if f.model.translated != 0 {
		t.Errorf("restored topic should not be translated again, got %d calls", f.model.translated)
	}

	merged, err := ReadRecords(filepath.Join(outDir, MergedFileName))
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 3 || merged[0].QuestionText != "from earlier run" {
		t.Fatalf("merged = %d records, first %q", len(merged), merged[0].QuestionText)
	}
	if merged[1].Context["topic_en"] != "Vector Analysis" {
		t.Errorf("image 2 topic = %v, want restored label", merged[1].Context["topic_en"])
	}
	if res.Topic != saved {
		t.Errorf("final topic = %+v", res.Topic)
	}
}

func TestRunFolder_AlreadyComplete(t *testing.T) {
	f := newFixture(t, "Done", extractionBlock("X", "1", "a"))
	outDir := filepath.Join(f.outputDir, "Done")
	if _, err := writeJSON(filepath.Join(outDir, MergedFileName), []question.Record{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := SaveCheckpoint(outDir, &Checkpoint{Folder: "Done", Processed: 1, Total: 1}); err != nil {
		t.Fatal(err)
	}

	r, _ := f.runner(20)
	res, err := r.RunFolder(context.Background(), "Done", nil)
	if err != nil {
		t.Fatalf("RunFolder() failed: %v", err)
	}
	if !res.AlreadyComplete || res.Questions != 2 || res.MergedPath == "" {
		t.Errorf("result = %+v", res)
	}
	if len(f.model.extractions) != 0 {
		t.Error("no image should be processed")
	}
}

func TestRunFolder_PausesBetweenBatches(t *testing.T) {
	pages := make([]string, 5)
	for i := range pages {
		pages[i] = extractionBlock("CONTINUE", fmt.Sprint(i+1), "a")
	}
	f := newFixture(t, "Big", pages...)

	r, _ := f.runner(2)
	res, err := r.RunFolder(context.Background(), "Big", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("RunFolder() failed: %v", err)
	}

	// after images 2 and 4, never after the last one
	if len(f.pauses) != 2 {
		t.Errorf("expected 2 pauses, got %d", len(f.pauses))
	}
	if res.Questions != 5 {
		t.Errorf("questions = %d, want 5", res.Questions)
	}
}

func TestRunFolder_PauseInterrupted(t *testing.T) {
	pages := []string{
		extractionBlock("CONTINUE", "1", "a"),
		extractionBlock("CONTINUE", "2", "a"),
	}
	f := newFixture(t, "Stop", pages...)
	r, _ := f.runner(1)
	r.opts.Pause = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := r.RunFolder(context.Background(), "Stop", map[string]any{"k": "v"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunFolder() error = %v, want context.Canceled", err)
	}

	cp, err := LoadCheckpoint(filepath.Join(f.outputDir, "Stop"))
	if err != nil || cp == nil {
		t.Fatalf("LoadCheckpoint() = %v, %v", cp, err)
	}
	if cp.Processed != 1 || cp.Total != 2 {
		t.Errorf("checkpoint = %+v, want 1/2 written before the pause", cp)
	}
}

func TestRunFolder_FailedImageStillCheckpointed(t *testing.T) {
	f := newFixture(t, "Mixed",
		extractionBlock("ম্যাট্রিক্স", "1", "a"),
		"garbage without blocks",
	)
	f.model.translations["ম্যাট্রিক্স"] = "Matrix"
	r, _ := f.runner(20)

	res, err := r.RunFolder(context.Background(), "Mixed", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("RunFolder() failed: %v", err)
	}
	if res.Processed != 1 || res.Failed != 1 || res.Questions != 1 {
		t.Errorf("result = %+v", res)
	}

	outDir := filepath.Join(f.outputDir, "Mixed")
	if _, err := os.Stat(filepath.Join(outDir, "page_2.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed image should not have an output file")
	}

	data, err := os.ReadFile(filepath.Join(outDir, CheckpointFileName))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["processed"] != float64(2) || raw["total"] != float64(2) || raw["folder"] != "Mixed" {
		t.Errorf("checkpoint = %v", raw)
	}
	if raw["timestamp"] != 1700000000.5 {
		t.Errorf("timestamp = %v", raw["timestamp"])
	}
	tracker, ok := raw["topic_tracker"].(map[string]any)
	if !ok || tracker["current_topic_bn"] != "ম্যাট্রিক্স" || tracker["current_topic_en"] != "Matrix" {
		t.Errorf("topic_tracker = %v", raw["topic_tracker"])
	}
	if s, _ := raw["run_id"].(string); len(s) != 36 {
		t.Errorf("run_id = %v", raw["run_id"])
	}
}

func TestRunFolder_FailedRerunDropsEarlierOutput(t *testing.T) {
	f := newFixture(t, "Rerun",
		extractionBlock("ভেক্টর", "1", "a"),
		extractionBlock("CONTINUE", "2", "b"),
	)
	f.model.translations["ভেক্টর"] = "Vector"
	r, _ := f.runner(20)

	res, err := r.RunFolder(context.Background(), "Rerun", nil)
	if err != nil || res.Questions != 2 {
		t.Fatalf("first run = %+v, %v", res, err)
	}

	outDir := filepath.Join(f.outputDir, "Rerun")
	if err := os.Remove(filepath.Join(outDir, CheckpointFileName)); err != nil {
		t.Fatal(err)
	}
	f.model.pages["image-2"] = "garbage without blocks"

	res, err = r.RunFolder(context.Background(), "Rerun", nil)
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if res.Processed != 1 || res.Failed != 1 || res.Questions != 1 {
		t.Errorf("rerun result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(outDir, "page_2.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("output from the earlier run should be removed")
	}

	records, err := ReadRecords(filepath.Join(outDir, MergedFileName))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "math_hs_page_1_1" {
		t.Errorf("merged = %+v", records)
	}
	if !strings.Contains(strings.Join(f.log.lines, "\n"), "Removed earlier output for page_2.jpg") {
		t.Error("removal should be logged")
	}
}

func TestRunFolder_NoRecordsSkipsMerge(t *testing.T) {
	f := newFixture(t, "Empty", "nothing here")
	r, _ := f.runner(20)

	res, err := r.RunFolder(context.Background(), "Empty", nil)
	if err != nil {
		t.Fatalf("RunFolder() failed: %v", err)
	}
	if res.MergedPath != "" {
		t.Errorf("merged path = %q, want none", res.MergedPath)
	}
	if _, err := os.Stat(filepath.Join(f.outputDir, "Empty", MergedFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("full.json should not be written")
	}
}

func TestRunFolder_MissingFolder(t *testing.T) {
	f := newFixture(t, "Present")
	r, _ := f.runner(20)

	if _, err := r.RunFolder(context.Background(), "Absent", nil); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("error = %v, want ErrFolderNotFound", err)
	}
	if _, err := r.RunFolder(context.Background(), "Present", nil); !errors.Is(err, ErrNoImages) {
		t.Errorf("error = %v, want ErrNoImages", err)
	}
}
