package search

// commonExcludeDirs are build output, VCS and system directories that are
// rarely worth descending into
var commonExcludeDirs = []string{
	"node_modules", ".git", ".svn",
	"target", "build", "dist",
	"__pycache__", ".idea", ".vscode",
	"$RECYCLE.BIN", "System Volume Information",
	"Windows", "Program Files", "Program Files (x86)",
	"ProgramData", "AppData", "Recovery",
}

// CommonExcludeDirs returns a copy of the built-in exclusion list
func CommonExcludeDirs() []string {
	out := make([]string, len(commonExcludeDirs))
	copy(out, commonExcludeDirs)
	return out
}

// MergeExcludes appends the names in extra that dirs does not already hold
func MergeExcludes(dirs, extra []string) []string {
	seen := make(map[string]bool, len(dirs)+len(extra))
	out := make([]string, 0, len(dirs)+len(extra))
	for _, list := range [][]string{dirs, extra} {
		for _, name := range list {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
