package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filesearch/internal/config"
	"filesearch/internal/search"
)

type testApp struct {
	*app
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestApp(input string, interactive bool) *testApp {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &testApp{
		app: &app{
			in:          strings.NewReader(input),
			out:         out,
			errOut:      errOut,
			interactive: func() bool { return interactive },
			now:         func() time.Time { return time.Unix(1700000000, 0) },
		},
		out: out,
		err: errOut,
	}
}

// execute runs the command with an explicit, possibly empty, config file
func (a *testApp) execute(t *testing.T, cfgYAML string, args ...string) error {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0644))

	cmd := NewRootCommand(a.app)
	cmd.SetArgs(append(args, "--config", cfgPath, "--no-progress"))
	t.Cleanup(func() {
		search.SetDiagnostics(os.Stderr, search.WARNING, "")
	})
	return cmd.Execute()
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{"a.txt", "sub/a.txt", "sub/deep/a.txt", "sub/notes.md"} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(rel), 0644))
	}
	return root
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name    string
		flags   flags
		args    []string
		mode    search.Mode
		rest    []string
		wantErr string
	}{
		{"files flag", flags{files: true}, []string{"q"}, search.FilesOnly, []string{"q"}, ""},
		{"dirs flag with dir", flags{dirs: true}, []string{"q", "/tmp"}, search.DirectoriesOnly, []string{"q", "/tmp"}, ""},
		{"legacy both", flags{}, []string{"/BOTH", "q", "/tmp"}, search.FilesAndDirectories, []string{"q", "/tmp"}, ""},
		{"legacy lower case", flags{}, []string{"/sdm", "q"}, search.DirectoriesOnly, []string{"q"}, ""},
		{"no mode", flags{}, []string{"q"}, 0, nil, "search mode is required"},
		{"two modes", flags{files: true}, []string{"/SDM", "q"}, 0, nil, "only one search mode"},
		{"no query", flags{}, []string{"/FM"}, 0, nil, "missing search query"},
		{"extra argument", flags{both: true}, []string{"q", "d", "x"}, 0, nil, `unexpected argument "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.flags
			mode, rest, err := resolveMode(&f, tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, mode)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestBuildOptionsPrecedence(t *testing.T) {
	depth := 4
	cfg := &config.Config{
		Threads:         3,
		CaseInsensitive: true,
		DepthFirst:      true,
		MaxDepth:        &depth,
		Exclude:         []string{"vendor"},
		Log:             "cfg.log",
	}

	cmd, f := newRootCommand(newTestApp("", false).app)
	require.NoError(t, cmd.ParseFlags(nil))
	opts, err := buildOptions(cmd, f, cfg, search.FilesOnly, []string{"q", "/data"})
	require.NoError(t, err)
	assert.Equal(t, "q", opts.Query)
	assert.Equal(t, "/data", opts.RootDir)
	assert.Equal(t, 3, opts.MaxWorkers)
	assert.False(t, opts.CaseSensitive)
	assert.Equal(t, search.DepthFirst, opts.Order)
	assert.True(t, opts.DepthLimited)
	assert.Equal(t, 4, opts.MaxDepth)
	assert.Equal(t, []string{"vendor"}, opts.ExcludeDirs)
	assert.Equal(t, "cfg.log", opts.LogPath)

	cmd, f = newRootCommand(newTestApp("", false).app)
	require.NoError(t, cmd.ParseFlags([]string{
		"--threads", "5", "--case-insensitive=false", "--dfs=false", "--depth", "0",
		"--exclude", "node_modules", "--exclude", ".git", "--log", "flag.log", "--no-wildcards",
	}))
	opts, err = buildOptions(cmd, f, cfg, search.FilesOnly, []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, 5, opts.MaxWorkers)
	assert.True(t, opts.CaseSensitive)
	assert.Equal(t, search.BreadthFirst, opts.Order)
	assert.Equal(t, 0, opts.MaxDepth)
	assert.Equal(t, []string{"node_modules", ".git"}, opts.ExcludeDirs)
	assert.Equal(t, "flag.log", opts.LogPath)
	assert.True(t, opts.Literal)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, opts.RootDir)
}

func TestBuildOptionsExcludeCommon(t *testing.T) {
	cfg := &config.Config{Exclude: []string{"vendor", ".git"}, ExcludeCommon: true}

	cmd, f := newRootCommand(newTestApp("", false).app)
	require.NoError(t, cmd.ParseFlags(nil))
	opts, err := buildOptions(cmd, f, cfg, search.FilesOnly, []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, "vendor", opts.ExcludeDirs[0])
	assert.Contains(t, opts.ExcludeDirs, "node_modules")
	assert.Len(t, opts.ExcludeDirs, len(search.CommonExcludeDirs())+1)

	cmd, f = newRootCommand(newTestApp("", false).app)
	require.NoError(t, cmd.ParseFlags([]string{"--exclude-common=false"}))
	opts, err = buildOptions(cmd, f, cfg, search.FilesOnly, []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", ".git"}, opts.ExcludeDirs)
}

func TestBuildOptionsRejectsBadNumbers(t *testing.T) {
	for _, args := range [][]string{{"--threads", "0"}, {"--depth", "-1"}} {
		cmd, f := newRootCommand(newTestApp("", false).app)
		require.NoError(t, cmd.ParseFlags(args))
		_, err := buildOptions(cmd, f, config.DefaultConfig(), search.FilesOnly, []string{"q"})
		assert.Error(t, err, args)
	}
}

func TestRunFindsMatches(t *testing.T) {
	root := sampleTree(t)
	a := newTestApp("", false)

	require.NoError(t, a.execute(t, "", "-f", "*.txt", root, "--threads", "2"))

	out := a.out.String()
	assert.Contains(t, out, "Starting search with ")
	assert.Contains(t, out, "Found file: "+filepath.Join(root, "sub", "deep", "a.txt"))
	assert.Contains(t, out, "Files scanned: 4\n")
	assert.Contains(t, out, "Found 3 matches.\n")
	assert.NotContains(t, out, "Save results")
}

func TestRunLegacyMode(t *testing.T) {
	root := sampleTree(t)
	a := newTestApp("", false)

	require.NoError(t, a.execute(t, "", "/SDM", "deep", root, "--quiet"))
	assert.Contains(t, a.out.String(), "Found 1 matches.\n")
	assert.NotContains(t, a.out.String(), "[Worker")
}

func TestRunNoMatches(t *testing.T) {
	root := sampleTree(t)
	a := newTestApp("", true)

	require.NoError(t, a.execute(t, "", "-f", "*.pdf", root))
	assert.Contains(t, a.out.String(), "No matches found.\n")
	assert.NotContains(t, a.out.String(), "Save results")
}

func TestRunSavesReport(t *testing.T) {
	root := sampleTree(t)
	reportPath := filepath.Join(t.TempDir(), "results.log")
	a := newTestApp("", false)

	require.NoError(t, a.execute(t, "", "-f", "*.txt", root, "--save", reportPath, "--checksum"))
	assert.Contains(t, a.out.String(), "Results saved to: "+reportPath+"\n")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "FileSearch Results\n")
	assert.Contains(t, text, "Query: *.txt\n")
	assert.Contains(t, text, "[FILE] "+filepath.Join(root, "a.txt")+" (5.0 B) xxh64:")
	assert.Contains(t, text, "  Total matches: 3\n")
}

func TestRunPromptsToSave(t *testing.T) {
	root := sampleTree(t)
	reportDir := t.TempDir()
	cfg := "report_dir: " + reportDir + "\n"

	a := newTestApp("\n", true)
	require.NoError(t, a.execute(t, cfg, "-f", "*.txt", root))
	assert.Contains(t, a.out.String(), "Save results to desktop? [Y/n] ")
	assert.FileExists(t, filepath.Join(reportDir, "FileSearch_Results_1700000000.log"))

	declined := t.TempDir()
	a = newTestApp("n\n", true)
	require.NoError(t, a.execute(t, "report_dir: "+declined+"\n", "-f", "*.txt", root))
	entries, err := os.ReadDir(declined)
	require.NoError(t, err)
	assert.Empty(t, entries)

	a = newTestApp("", true)
	require.NoError(t, a.execute(t, "report_dir: "+declined+"\n", "-f", "*.txt", root, "--no-save"))
	assert.NotContains(t, a.out.String(), "Save results")
}

func TestRunWithSessionLog(t *testing.T) {
	root := sampleTree(t)
	logPath := filepath.Join(t.TempDir(), "session.log")
	a := newTestApp("", true)

	require.NoError(t, a.execute(t, "", "-b", "a.txt", root, "-l", logPath))
	assert.Contains(t, a.out.String(), "Results logged to specified file.\n")
	assert.NotContains(t, a.out.String(), "Save results")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "] Found file: "))
}

func TestRunCopiesMatches(t *testing.T) {
	root := sampleTree(t)
	target := filepath.Join(t.TempDir(), "collected")
	a := newTestApp("", false)

	require.NoError(t, a.execute(t, "", "-f", "*.md", root, "--copy-to", target))
	assert.Contains(t, a.out.String(), "File operation copy: 1 done, 0 skipped, 0 failed\n")
	assert.FileExists(t, filepath.Join(target, "notes.md"))
	assert.FileExists(t, filepath.Join(root, "sub", "notes.md"))
}

func TestRunErrors(t *testing.T) {
	root := sampleTree(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing directory", []string{"-f", "x", filepath.Join(root, "nope")}, "start directory does not exist"},
		{"no mode", []string{"x", root}, "search mode is required"},
		{"conflicting modes", []string{"-f", "-d", "x", root}, "none of the others can be"},
		{"bad conflict policy", []string{"-f", "x", root, "--copy-to", root, "--on-conflict", "merge"}, "unknown conflict policy"},
		{"zero threads", []string{"-f", "x", root, "-t", "0"}, "--threads must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestApp("", false).execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunMissingStartDirIsStartDirError(t *testing.T) {
	a := newTestApp("", false)
	err := a.execute(t, "", "-f", "x", filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, search.ErrStartDir)
}

func TestRunRejectsBadConfig(t *testing.T) {
	a := newTestApp("", false)
	err := a.execute(t, "threads: -2\n", "-f", "x", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threads must be >= 0")
}

func TestRunVerboseDiagnostics(t *testing.T) {
	root := sampleTree(t)
	a := newTestApp("", false)

	require.NoError(t, a.execute(t, "", "-f", "a.txt", root, "--verbose"))
	assert.Contains(t, a.err.String(), "[DEBUG] Search started: query=\"a.txt\"")
}

func TestApplyFileOperationAfterInterrupt(t *testing.T) {
	root := sampleTree(t)
	target := filepath.Join(t.TempDir(), "collected")
	res := &search.Result{Matches: []search.MatchRecord{
		{Path: filepath.Join(root, "a.txt"), Kind: search.KindFile},
	}}
	op := search.FileOperationOptions{Operation: search.MoveFiles, TargetDir: target}

	a := newTestApp("", false)
	require.NoError(t, a.applyFileOperation(context.Background(), op, res, context.Canceled))
	assert.Contains(t, a.out.String(), "File operation move skipped, the search did not finish\n")
	assert.NoDirExists(t, target)
	assert.FileExists(t, filepath.Join(root, "a.txt"))

	a = newTestApp("", false)
	require.NoError(t, a.applyFileOperation(context.Background(), op, res, nil))
	assert.Contains(t, a.out.String(), "File operation move: 1 done, 0 skipped, 0 failed\n")
	assert.FileExists(t, filepath.Join(target, "a.txt"))
}
