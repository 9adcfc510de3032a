package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-errors/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"filesearch/internal/config"
	"filesearch/internal/report"
	"filesearch/internal/search"
)

// Version information, injected at build time via -ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// flags holds the raw command-line values
type flags struct {
	files           bool
	dirs            bool
	both            bool
	threads         int
	logPath         string
	caseInsensitive bool
	depth           int
	dfs             bool
	noWildcards     bool
	exclude         []string
	excludeHidden   bool
	excludeCommon   bool
	savePath        string
	noSave          bool
	checksum        bool
	copyTo          string
	moveTo          string
	onConflict      string
	open            bool
	configPath      string
	quiet           bool
	verbose         bool
	debugLog        string
	noProgress      bool
}

// app is the environment a command runs in
type app struct {
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive func() bool
	now         func() time.Time
}

func newApp() *app {
	return &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		interactive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
		},
		now: time.Now,
	}
}

// legacyModes are the mode tokens accepted as the first positional argument
var legacyModes = map[string]search.Mode{
	"/fm":   search.FilesOnly,
	"/sdm":  search.DirectoriesOnly,
	"/both": search.FilesAndDirectories,
}

// NewRootCommand creates the filesearch command
func NewRootCommand(a *app) *cobra.Command {
	cmd, _ := newRootCommand(a)
	return cmd
}

func newRootCommand(a *app) (*cobra.Command, *flags) {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "filesearch [mode] <query> [directory]",
		Short: "Fast concurrent file and directory search",
		Long: `Search a directory tree in parallel for files and/or directories whose
name matches a pattern.

Pattern syntax:
  *.txt          all text files (wildcards: * and ?)
  report*.pdf    names starting with 'report' and ending in .pdf
  image_??.jpg   image_01.jpg, image_AB.jpg, ...
  document       exact match 'document'

The mode may also be given as a leading /FM, /SDM or /BOTH argument.`,
		Example: `  filesearch -f '*.txt' .
  filesearch /SDM Documents ~
  filesearch -b '*config*' . -i --threads 4
  filesearch -f '*.tmp' /home --depth 2 --log cleanup.txt`,
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		Args:          cobra.RangeArgs(1, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, args)
		},
	}
	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	fs := cmd.Flags()
	fs.BoolVarP(&f.files, "files", "f", false, "Search for files only")
	fs.BoolVarP(&f.dirs, "dirs", "d", false, "Search for directories only")
	fs.BoolVarP(&f.both, "both", "b", false, "Search for both files and directories")
	fs.IntVarP(&f.threads, "threads", "t", 0, "Number of worker threads (default: CPU cores)")
	fs.StringVarP(&f.logPath, "log", "l", "", "Append a session log to this file")
	fs.BoolVarP(&f.caseInsensitive, "case-insensitive", "i", false, "Case-insensitive (ASCII) matching")
	fs.IntVarP(&f.depth, "depth", "D", 0, "Maximum directory depth below the start directory")
	fs.BoolVar(&f.dfs, "dfs", false, "Use depth-first traversal (default: breadth-first)")
	fs.BoolVar(&f.noWildcards, "no-wildcards", false, "Treat * and ? as literal characters")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "Directory names not to descend into (repeatable)")
	fs.BoolVar(&f.excludeHidden, "exclude-hidden", false, "Do not descend into hidden directories")
	fs.BoolVar(&f.excludeCommon, "exclude-common", false, "Skip VCS, build output and system directories")
	fs.StringVar(&f.savePath, "save", "", "Write the results report to this file")
	fs.BoolVar(&f.noSave, "no-save", false, "Never offer to save the results report")
	fs.BoolVar(&f.checksum, "checksum", false, "Add xxh64 content checksums of files to the report")
	fs.StringVar(&f.copyTo, "copy-to", "", "Copy found items into this directory")
	fs.StringVar(&f.moveTo, "move-to", "", "Move found items into this directory")
	fs.StringVar(&f.onConflict, "on-conflict", "skip", "Name conflicts for --copy-to/--move-to: skip, overwrite or rename")
	fs.BoolVarP(&f.open, "open", "o", false, "Reveal the first match in the file manager")
	fs.StringVar(&f.configPath, "config", "", "Config file (default: ~/"+config.DefaultFileName+")")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Do not print every match")
	fs.BoolVar(&f.verbose, "verbose", false, "Print debug diagnostics")
	fs.StringVar(&f.debugLog, "debug-log", "", "Also write diagnostics to this file")
	fs.BoolVar(&f.noProgress, "no-progress", false, "Do not show the progress line")

	cmd.MarkFlagsMutuallyExclusive("files", "dirs", "both")
	cmd.MarkFlagsMutuallyExclusive("copy-to", "move-to")
	cmd.MarkFlagsMutuallyExclusive("save", "no-save")

	return cmd, f
}

// resolveMode picks the mode from flags or a legacy leading token and
// returns the remaining positional arguments
func resolveMode(f *flags, args []string) (search.Mode, []string, error) {
	var modes []search.Mode
	if f.files {
		modes = append(modes, search.FilesOnly)
	}
	if f.dirs {
		modes = append(modes, search.DirectoriesOnly)
	}
	if f.both {
		modes = append(modes, search.FilesAndDirectories)
	}
	if len(args) > 0 {
		if m, ok := legacyModes[strings.ToLower(args[0])]; ok {
			modes = append(modes, m)
			args = args[1:]
		}
	}

	switch {
	case len(modes) == 0:
		return 0, nil, errors.Errorf("a search mode is required: use --files, --dirs, --both or /FM, /SDM, /BOTH")
	case len(modes) > 1:
		return 0, nil, errors.Errorf("only one search mode may be given")
	case len(args) == 0:
		return 0, nil, errors.Errorf("missing search query")
	case len(args) > 2:
		return 0, nil, errors.Errorf("unexpected argument %q", args[2])
	}
	return modes[0], args, nil
}

// buildOptions merges config defaults, flags and positional arguments
func buildOptions(cmd *cobra.Command, f *flags, cfg *config.Config, mode search.Mode, args []string) (search.SearchOptions, error) {
	changed := cmd.Flags().Changed

	opts := search.SearchOptions{
		Query:         args[0],
		Mode:          mode,
		MaxWorkers:    cfg.Threads,
		CaseSensitive: !cfg.CaseInsensitive,
		Literal:       f.noWildcards,
		LogPath:       cfg.Log,
		ExcludeDirs:   cfg.Exclude,
		ExcludeHidden: cfg.ExcludeHidden,
		Quiet:         f.quiet,
	}
	if cfg.DepthFirst {
		opts.Order = search.DepthFirst
	}
	if cfg.MaxDepth != nil {
		opts.DepthLimited = true
		opts.MaxDepth = *cfg.MaxDepth
	}

	if len(args) > 1 {
		opts.RootDir = args[1]
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return opts, errors.WrapPrefix(err, "cannot determine current directory", 0)
		}
		opts.RootDir = wd
	}

	if changed("threads") {
		if f.threads < 1 {
			return opts, errors.Errorf("--threads must be at least 1, got %d", f.threads)
		}
		opts.MaxWorkers = f.threads
	}
	if changed("case-insensitive") {
		opts.CaseSensitive = !f.caseInsensitive
	}
	if changed("depth") {
		if f.depth < 0 {
			return opts, errors.Errorf("--depth must be >= 0, got %d", f.depth)
		}
		opts.DepthLimited = true
		opts.MaxDepth = f.depth
	}
	if changed("dfs") {
		opts.Order = search.BreadthFirst
		if f.dfs {
			opts.Order = search.DepthFirst
		}
	}
	if changed("log") {
		opts.LogPath = f.logPath
	}
	if changed("exclude") {
		opts.ExcludeDirs = f.exclude
	}
	if changed("exclude-hidden") {
		opts.ExcludeHidden = f.excludeHidden
	}
	excludeCommon := cfg.ExcludeCommon
	if changed("exclude-common") {
		excludeCommon = f.excludeCommon
	}
	if excludeCommon {
		opts.ExcludeDirs = search.MergeExcludes(opts.ExcludeDirs, search.CommonExcludeDirs())
	}
	return opts, nil
}

func (a *app) run(cmd *cobra.Command, f *flags, args []string) error {
	mode, args, err := resolveMode(f, args)
	if err != nil {
		return err
	}

	cfgPath, required := f.configPath, true
	if cfgPath == "" {
		cfgPath, required = config.DefaultPath(), false
	}
	cfg, err := config.Load(cfgPath, required)
	if err != nil {
		return err
	}

	level := search.WARNING
	if f.verbose || cfg.Verbose {
		level = search.DEBUG
	}
	if err := search.SetDiagnostics(a.errOut, level, f.debugLog); err != nil {
		return err
	}
	defer search.CloseLogger()

	opts, err := buildOptions(cmd, f, cfg, mode, args)
	if err != nil {
		return err
	}
	if err := search.ValidateStartDir(opts.RootDir); err != nil {
		return err
	}

	fileOp, err := fileOperation(f)
	if err != nil {
		return err
	}

	opts.Output = a.out
	opts.ShowProgress = !f.noProgress && a.interactive()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, searchErr := search.Search(ctx, opts)
	if res == nil {
		return searchErr
	}
	if searchErr != nil {
		fmt.Fprintln(a.out, "Search interrupted, results are partial")
	}

	if err := a.finish(f, cfg, opts, res); err != nil {
		return err
	}

	if err := a.applyFileOperation(ctx, fileOp, res, searchErr); err != nil {
		return err
	}

	if f.open && len(res.Matches) > 0 {
		fmt.Fprintln(a.out, "Opening file location...")
		if err := openFileLocation(res.Matches[0].Path); err != nil {
			search.LogWarning("Error opening file location: %v", err)
		}
	}

	return searchErr
}

// finish reports the outcome and writes the results report when asked to
func (a *app) finish(f *flags, cfg *config.Config, opts search.SearchOptions, res *search.Result) error {
	if len(res.Matches) == 0 {
		fmt.Fprintln(a.out, "No matches found.")
		return nil
	}
	color.New(color.FgGreen).Fprintf(a.out, "\nFound %d matches.\n", len(res.Matches))

	path := f.savePath
	if path == "" {
		if opts.LogPath != "" {
			fmt.Fprintln(a.out, "Results logged to specified file.")
			return nil
		}
		if f.noSave || !a.interactive() || !a.confirm("Save results to desktop? [Y/n] ") {
			return nil
		}
		dir := cfg.ReportDir
		if dir == "" {
			dir = report.DefaultLocation()
		}
		path = filepath.Join(dir, report.DefaultFileName(a.now()))
	}

	r := report.FromResult(opts.Query, opts.RootDir, res, report.Options{Checksums: f.checksum})
	if err := report.Write(path, r); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Results saved to: %s\n", path)
	return nil
}

// applyFileOperation copies or moves the matches of a search that ran to
// completion; partial results are left where they are
func (a *app) applyFileOperation(ctx context.Context, op search.FileOperationOptions, res *search.Result, searchErr error) error {
	if op.Operation == search.NoOperation || len(res.Matches) == 0 {
		return nil
	}
	if searchErr != nil {
		fmt.Fprintf(a.out, "File operation %s skipped, the search did not finish\n", op.Operation)
		return nil
	}

	summary, err := search.ApplyFileOperation(ctx, res.Matches, op)
	fmt.Fprintf(a.out, "File operation %s: %d done, %d skipped, %d failed\n",
		op.Operation, summary.Done, summary.Skipped, summary.Failed)
	return err
}

// confirm reads a yes/no answer; an empty answer means yes
func (a *app) confirm(prompt string) bool {
	fmt.Fprint(a.out, prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}

func fileOperation(f *flags) (search.FileOperationOptions, error) {
	policy, err := search.ParseConflictPolicy(f.onConflict)
	if err != nil {
		return search.FileOperationOptions{}, err
	}
	op := search.FileOperationOptions{ConflictPolicy: policy}
	switch {
	case f.copyTo != "":
		op.Operation = search.CopyFiles
		op.TargetDir = f.copyTo
	case f.moveTo != "":
		op.Operation = search.MoveFiles
		op.TargetDir = f.moveTo
	}
	return op, nil
}

// openFileLocation opens file location in explorer
func openFileLocation(path string) error {
	path = filepath.Clean(path)
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmdPath := os.Getenv("COMSPEC")
		if cmdPath == "" {
			cmdPath = `C:\Windows\System32\cmd.exe`
		}
		cmd = exec.Command(cmdPath, "/c", "explorer", "/select,", path)
	case "darwin":
		cmd = exec.Command("open", "-R", path)
	default: // Linux and other Unix-like systems
		cmd = exec.Command("xdg-open", filepath.Dir(path))
	}

	return cmd.Run()
}
