// Package batch runs the page processor over folders of page images with
// per-image outputs, resumable checkpoints and pauses between batches.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mcqscan/gemini"
	"mcqscan/question"
	"mcqscan/topic"
)

const (
	DefaultBatchSize = 20
	DefaultBreak     = 20 * time.Minute

	countdownInterval = 30 * time.Second
)

var (
	// ErrFolderNotFound is returned when a folder has no image directory
	ErrFolderNotFound = errors.New("folder not found")
	// ErrNoImages is returned when a folder holds no page images
	ErrNoImages = errors.New("no images found")
)

// PageProcessor processes one page image (page.Processor)
type PageProcessor interface {
	Process(ctx context.Context, imagePath string, folderCtx map[string]any, state topic.State) ([]question.Record, topic.State, error)
}

// Logger receives runner progress and diagnostics
type Logger interface {
	Infof(format string, args ...any)
	Successf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Options configures a Runner
type Options struct {
	// ImagesDir holds one sub-directory of page images per folder
	ImagesDir string

	// OutputDir receives one sub-directory of outputs per folder
	OutputDir string

	// BatchSize is the number of images between pauses; 0 disables pausing
	BatchSize int

	// Break is the pause length
	Break time.Duration

	// Pause blocks for d between batches. The default logs a countdown.
	Pause func(ctx context.Context, d time.Duration) error

	// Progress is called before each image with its 1-based position
	Progress func(done, total int, name string)

	// Now replaces time.Now (tests)
	Now func() time.Time
}

// FolderResult summarises one folder run
type FolderResult struct {
	Folder          string
	RunID           string
	OutputDir       string
	MergedPath      string
	Total           int
	StartIndex      int
	Processed       int
	Failed          int
	Questions       int
	AlreadyComplete bool
	Topic           topic.State
}

// Runner processes folders one at a time
type Runner struct {
	pages PageProcessor
	opts  Options
	log   Logger
}

// NewRunner creates a Runner
func NewRunner(pages PageProcessor, log Logger, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pause == nil {
		opts.Pause = Countdown(log)
	}
	return &Runner{pages: pages, opts: opts, log: log}
}

// RunFolder processes every image of the named folder that a previous run
// has not already checkpointed, then merges the folder's outputs. The
// topic state starts empty for a new folder and is restored from the
// checkpoint when resuming.
func (r *Runner) RunFolder(ctx context.Context, name string, folderCtx map[string]any) (*FolderResult, error) {
	imageDir := filepath.Join(r.opts.ImagesDir, name)
	outDir := filepath.Join(r.opts.OutputDir, name)

	if info, err := os.Stat(imageDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, imageDir)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	images, err := gemini.LoadImages(imageDir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w in folder: %s", ErrNoImages, name)
	}

	cp, err := LoadCheckpoint(outDir)
	if err != nil {
		return nil, err
	}

	res := &FolderResult{
		Folder:    name,
		RunID:     uuid.NewString(),
		OutputDir: outDir,
		Total:     len(images),
	}

	var state topic.State
	if cp != nil {
		res.StartIndex = cp.Processed
		state = cp.TopicTracker.State()

		if res.StartIndex >= len(images) {
			r.log.Successf("Folder %s already fully processed!", name)
			res.AlreadyComplete = true
			res.Topic = state
			r.reportExisting(res)
			return res, nil
		}

		r.log.Infof("Resuming from image %d/%d", res.StartIndex+1, len(images))
		if state.IsSet() {
			r.log.Infof("Restored topic: %s", state.Source)
		}
	}

	r.log.Infof("Processing folder: %s (run %s)", name, res.RunID)
	r.log.Infof("Total images: %d, starting from: %d", len(images), res.StartIndex+1)
	r.log.Debugf("Batch size: %d, break: %s", r.opts.BatchSize, r.opts.Break)

	for idx := res.StartIndex; idx < len(images); idx++ {
		if err := ctx.Err(); err != nil {
			res.Topic = state
			return res, err
		}

		img := images[idx]
		if r.opts.Progress != nil {
			r.opts.Progress(idx+1, len(images), filepath.Base(img))
		}
		if state.IsSet() {
			r.log.Debugf("Continuing from previous topic: %s", state.Source)
		}

		var records []question.Record
		records, state, err = r.pages.Process(ctx, img, folderCtx, state)
		if ctx.Err() != nil {
			// interrupted mid-page: leave it for the next run
			res.Topic = state
			return res, ctx.Err()
		}
		switch {
		case err != nil:
			res.Failed++
			r.log.Errorf("Failed to process %s: %v", filepath.Base(img), err)
			r.dropStale(outDir, img)
		default:
			wr, werr := WriteRecords(ImageOutputPath(outDir, img), records)
			if werr != nil {
				res.Failed++
				r.log.Errorf("Failed to save %s: %v", filepath.Base(img), werr)
				r.dropStale(outDir, img)
				break
			}
			res.Processed++
			r.log.Successf("Processed: %s (%d questions)", filepath.Base(img), len(records))
			r.log.Debugf("Saved: %s", filepath.Base(wr.Path))
		}

		next := &Checkpoint{
			Folder:       name,
			Processed:    idx + 1,
			Total:        len(images),
			Timestamp:    Timestamp(r.opts.Now()),
			TopicTracker: Snapshot(state),
			RunID:        res.RunID,
		}
		if err := SaveCheckpoint(outDir, next); err != nil {
			r.log.Errorf("Failed to save progress: %v", err)
		}

		done := idx + 1
		if r.opts.BatchSize > 0 && done%r.opts.BatchSize == 0 && done < len(images) {
			r.log.Warnf("Break time: processed %d/%d images, sleeping for %s", done, len(images), r.opts.Break)
			r.log.Infof("Current topic: %s, will resume at image %d", state.Source, done+1)
			if err := r.opts.Pause(ctx, r.opts.Break); err != nil {
				res.Topic = state
				return res, err
			}
			r.log.Infof("Resuming processing...")
		}
	}

	res.Topic = state

	merged, err := MergeFolder(outDir, images)
	if err != nil {
		return res, err
	}
	for _, e := range merged.Errors {
		r.log.Warnf("Merge: %v", e)
	}
	if merged.Path == "" {
		r.log.Warnf("No data to merge for folder: %s", name)
	} else {
		res.MergedPath = merged.Path
		res.Questions = merged.Records
		r.log.Successf("Consolidated %s created for %s", MergedFileName, name)
		r.log.Infof("Location: %s", merged.Path)
		r.log.Infof("Total questions: %d (%.2f MB)", merged.Records, float64(merged.Bytes)/(1024*1024))
	}

	r.log.Successf("Folder processing complete: %s", name)
	r.log.Infof("Final topic: %s", state.Source)
	return res, nil
}

// reportExisting fills in the merged output of an already complete folder
func (r *Runner) reportExisting(res *FolderResult) {
	path := filepath.Join(res.OutputDir, MergedFileName)
	records, err := ReadRecords(path)
	if err != nil {
		r.log.Warnf("No merged output for %s: %v", res.Folder, err)
		return
	}
	res.MergedPath = path
	res.Questions = len(records)
}

// dropStale removes output an earlier run left for img so a failed page
// does not reappear in the merged file.
func (r *Runner) dropStale(outDir, img string) {
	err := os.Remove(ImageOutputPath(outDir, img))
	switch {
	case err == nil:
		r.log.Warnf("Removed earlier output for %s", filepath.Base(img))
	case !errors.Is(err, fs.ErrNotExist):
		r.log.Warnf("Could not remove earlier output for %s: %v", filepath.Base(img), err)
	}
}

// Countdown returns the default pause: a sleep that logs the remaining
// time every 30 seconds.
func Countdown(log Logger) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		deadline := time.Now().Add(d)
		timer := time.NewTimer(d)
		defer timer.Stop()
		ticker := time.NewTicker(countdownInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			case <-ticker.C:
				log.Infof("Time remaining: %s", Clock(time.Until(deadline)))
			}
		}
	}
}

// Clock formats d as mm:ss, or hh:mm:ss from one hour up
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
