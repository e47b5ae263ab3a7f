package syscmd

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Quoter decides which command tokens are wrapped in double quotes when the
// command is rendered as a single CommandLine.
type Quoter struct {
	// Windows selects Windows quoting rules for the executable.
	Windows bool

	// IsExecutable reports whether path is an existing executable file.
	IsExecutable func(path string) bool

	// IsAbs reports whether path is absolute on the target platform.
	IsAbs func(path string) bool
}

// DefaultQuoter returns a Quoter for the running platform.
func DefaultQuoter() Quoter {
	return Quoter{
		Windows:      runtime.GOOS == "windows",
		IsExecutable: isExecutableFile,
		IsAbs:        filepath.IsAbs,
	}
}

// QuoteExecutable quotes path on Windows when it names an existing executable
// file. Anywhere else path is returned unchanged.
func (q Quoter) QuoteExecutable(path string) string {
	if !q.Windows || q.IsExecutable == nil {
		return path
	}
	if q.IsExecutable(path) {
		return quote(path)
	}
	return path
}

// QuoteAbsolutePaths returns a copy of args with every absolute path quoted.
// Flags and relative arguments are left alone.
func (q Quoter) QuoteAbsolutePaths(args []string) []string {
	isAbs := q.IsAbs
	if isAbs == nil {
		isAbs = filepath.IsAbs
	}
	out := make([]string, len(args))
	for i, arg := range args {
		if isAbs(arg) {
			out[i] = quote(arg)
		} else {
			out[i] = arg
		}
	}
	return out
}

// CommandLine is a command rendered as one string with quoting applied.
type CommandLine string

func (c CommandLine) String() string { return string(c) }

// BuildCommandLine quotes the executable and the absolute-path arguments of
// command and joins them with single spaces. command must not be empty.
func BuildCommandLine(q Quoter, command []string) CommandLine {
	if len(command) == 0 {
		return ""
	}
	parts := make([]string, 0, len(command))
	parts = append(parts, q.QuoteExecutable(command[0]))
	parts = append(parts, q.QuoteAbsolutePaths(command[1:])...)
	return CommandLine(strings.Join(parts, " "))
}

func quote(s string) string {
	return `"` + s + `"`
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
