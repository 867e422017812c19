package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"mcqscan/config"
	"mcqscan/tui"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// folderList collects repeated -folder flags
type folderList []string

func (f *folderList) String() string {
	return strings.Join(*f, ",")
}

func (f *folderList) Set(v string) error {
	for _, name := range strings.Split(v, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*f = append(*f, name)
		}
	}
	return nil
}

// cliOptions holds the parsed command line
type cliOptions struct {
	imagesDir    string
	outputDir    string
	contextsFile string
	batchSize    int
	breakMinutes int
	workers      int
	folders      folderList
	pick         bool
	sqlitePath   string
	xlsxPath     string
	debug        bool
	version      bool

	// set records which flags appeared on the command line
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{set: map[string]bool{}}

	fs := flag.NewFlagSet("mcqscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.imagesDir, "images", "", "Base folder holding one sub-folder of page images per chapter")
	fs.StringVar(&opts.outputDir, "output", "", "Base folder for per-image JSON, progress and merged output")
	fs.StringVar(&opts.contextsFile, "contexts", "", "Folder configuration file (.json, .yaml or .yml)")
	fs.IntVar(&opts.batchSize, "batch-size", 0, "Images between breaks (0 disables breaks)")
	fs.IntVar(&opts.breakMinutes, "break", 0, "Break length in minutes")
	fs.IntVar(&opts.workers, "workers", 0, "Concurrent explanation requests per page")
	fs.Var(&opts.folders, "folder", "Process only this folder (repeatable, comma separated)")
	fs.BoolVar(&opts.pick, "pick", false, "Choose folders interactively")
	fs.StringVar(&opts.sqlitePath, "sqlite", "", "Also write merged questions to this SQLite database")
	fs.StringVar(&opts.xlsxPath, "xlsx", "", "Also write a review workbook to this path")
	fs.BoolVar(&opts.debug, "debug", false, "Print debug output")
	fs.BoolVar(&opts.version, "version", false, "Print version information")
	fs.BoolVar(&opts.version, "v", false, "Print version information (short)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// apply overrides environment settings with flags given on the command line
func (o *cliOptions) apply(s *config.Settings) {
	if o.set["images"] {
		s.ImagesDir = o.imagesDir
	}
	if o.set["output"] {
		s.OutputDir = o.outputDir
	}
	if o.set["contexts"] {
		s.ContextsFile = o.contextsFile
	}
	if o.set["batch-size"] {
		s.BatchSize = o.batchSize
	}
	if o.set["break"] {
		s.Break = time.Duration(o.breakMinutes) * time.Minute
	}
	if o.set["workers"] {
		s.Workers = o.workers
	}
	if o.debug {
		s.Debug = true
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.version {
		fmt.Printf("mcqscan %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  go:     %s\n", runtime.Version())
		fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	fmt.Println(tui.GetHeader())

	settings, err := config.FromEnv()
	if err != nil {
		fatal(err)
	}
	opts.apply(settings)
	if err := settings.Validate(); err != nil {
		fmt.Println(tui.ErrorStyle.Render("Error: " + err.Error()))
		if errors.Is(err, config.ErrNoKeys) {
			fmt.Println(tui.MutedStyle.Render(config.GetAPIKeyHelp()))
		}
		os.Exit(1)
	}

	log := tui.NewLogger(os.Stdout, settings.Debug)

	folders, skipped, err := config.LoadFolders(settings.ContextsFile)
	if err != nil {
		fatal(err)
	}
	for _, s := range skipped {
		log.Warnf("Skipping folder entry %d: %s", s.Index, s.Reason)
	}

	selected, unknown := config.Select(folders, opts.folders)
	for _, name := range unknown {
		log.Warnf("Folder %q is not in %s", name, settings.ContextsFile)
	}
	if len(selected) == 0 {
		fatal(fmt.Errorf("no folders to process"))
	}

	if opts.pick {
		selected, err = pickFolders(selected)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println(tui.SubtitleStyle.Render("Nothing selected. Bye!"))
				os.Exit(0)
			}
			fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, settings, selected, exportTargets{sqlite: opts.sqlitePath, xlsx: opts.xlsxPath}, log)
	stop()
	os.Exit(code)
}

func fatal(err error) {
	fmt.Println(tui.ErrorStyle.Render("Error: " + err.Error()))
	os.Exit(1)
}

// pickFolders lets the user narrow the configured folders down
func pickFolders(folders []config.Folder) ([]config.Folder, error) {
	options := make([]huh.Option[string], 0, len(folders))
	for _, f := range folders {
		options = append(options, huh.NewOption(f.Name, f.Name).Selected(true))
	}

	var names []string
	multi := huh.NewMultiSelect[string]().
		Title("Select folders to process").
		Description("Space to toggle, enter to confirm").
		Options(options...).
		Height(min(len(options)+2, 15)).
		Value(&names)

	err := huh.NewForm(huh.NewGroup(multi)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, huh.ErrUserAborted
	}

	picked, _ := config.Select(folders, names)
	return picked, nil
}

func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
