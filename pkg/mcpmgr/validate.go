package mcpmgr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// MaxJoinedArgsLength bounds the space-joined argument list of a stdio server.
const MaxJoinedArgsLength = 2048

// forbiddenArgChars are shell metacharacters rejected in stdio arguments.
const forbiddenArgChars = "|&;><"

// PackageExecutors are the bare command names allowed without an explicit path.
var PackageExecutors = []string{"npx", "uvx", "bunx"}

var placeholderPatterns = []string{"/users/username/", "path/to/other/allowed/dir"}

// Reason classifies a command rejection.
type Reason string

const (
	ReasonNotAllowed     Reason = "not_allowed"
	ReasonArgsTooLong    Reason = "args_too_long"
	ReasonForbiddenChars Reason = "forbidden_chars"
	ReasonMissingPaths   Reason = "missing_paths"
)

// ValidationError is the rejection verdict of a CommandValidator. It is
// marked ErrSecurity.
type ValidationError struct {
	Reason  Reason
	Message string
	// Missing lists the path-like arguments that do not exist, in argument
	// order. Only set for ReasonMissingPaths.
	Missing []string
}

func (e *ValidationError) Error() string { return e.Message }

func reject(reason Reason, missing []string, format string, args ...any) error {
	return errors.Mark(&ValidationError{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
		Missing: missing,
	}, ErrSecurity)
}

// CommandValidator vets a stdio invocation before anything is spawned.
type CommandValidator struct {
	fs afero.Fs
}

// NewCommandValidator returns a validator that checks path arguments against
// fs. A nil fs means the host filesystem.
func NewCommandValidator(fs afero.Fs) *CommandValidator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &CommandValidator{fs: fs}
}

// ValidateCommand checks command and args against the host filesystem.
func ValidateCommand(command string, args []string) error {
	return NewCommandValidator(nil).Validate(command, args)
}

// Validate returns nil when the invocation is acceptable, or a
// *ValidationError (marked ErrSecurity) naming the first rule it breaks.
func (v *CommandValidator) Validate(command string, args []string) error {
	if !isExplicitPath(command) && !slices.Contains(PackageExecutors, command) && !isWrapperInvocation(command, args) {
		return reject(ReasonNotAllowed, nil,
			"command '%s' is not allowed. use one of: %s, an absolute path, or Windows wrapper 'cmd /c <cmd>'",
			command, strings.Join(PackageExecutors, ", "))
	}
	if len(args) == 0 {
		return nil
	}

	joined := strings.Join(args, " ")
	if len(joined) > MaxJoinedArgsLength {
		return reject(ReasonArgsTooLong, nil, "args too long")
	}
	if strings.ContainsAny(joined, forbiddenArgChars) {
		return reject(ReasonForbiddenChars, nil, "args contains forbidden shell characters")
	}

	var missing []string
	for _, arg := range pathCandidates(command, args) {
		if !IsPathLike(arg) {
			continue
		}
		// Checked verbatim: no ~ expansion.
		if _, err := v.fs.Stat(arg); err != nil {
			missing = append(missing, arg)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	msg := "Path arguments do not exist: " + strings.Join(missing, ", ")
	if slices.ContainsFunc(missing, looksLikePlaceholder) {
		msg += ". It looks like placeholder paths are still present. Please replace them with real existing directories."
	}
	return reject(ReasonMissingPaths, missing, "%s", msg)
}

// pathCandidates returns the arguments that follow the package identifier.
// The `cmd /c` prefix is skipped, and when the first non-flag names a package
// executor the next non-flag is taken as the package.
func pathCandidates(command string, args []string) []string {
	offset := 0
	if isWrapperInvocation(command, args) {
		offset = 2
	}
	rest := args[offset:]
	idx := firstNonFlag(rest, 0)
	if idx < 0 {
		return nil
	}
	if isPackageExecutor(rest[idx]) {
		if pkg := firstNonFlag(rest, idx+1); pkg >= 0 {
			idx = pkg
		}
	}
	return rest[idx+1:]
}

func firstNonFlag(args []string, from int) int {
	for i := from; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			return i
		}
	}
	return -1
}

// PackageName returns the first non-flag argument, which package executors
// treat as the package to run.
func PackageName(args []string) (string, bool) {
	if i := firstNonFlag(args, 0); i >= 0 {
		return args[i], true
	}
	return "", false
}

// IsPathLike reports whether arg looks like a filesystem location. URLs and
// npm scoped packages (@scope/name) are excluded. This is a filter for
// friendlier errors, not a security boundary.
func IsPathLike(arg string) bool {
	if arg == "" {
		return false
	}
	lower := strings.ToLower(arg)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return false
	}
	if strings.HasPrefix(arg, "@") && strings.Contains(arg, "/") &&
		!strings.Contains(arg, `\`) && !strings.Contains(arg, ":") {
		return false
	}
	for _, prefix := range []string{"/", "./", "../", "~/"} {
		if strings.HasPrefix(arg, prefix) {
			return true
		}
	}
	if hasDrivePrefix(arg) {
		return true
	}
	return strings.ContainsAny(arg, `/\`)
}

func hasDrivePrefix(arg string) bool {
	return len(arg) >= 3 && arg[1] == ':' && (arg[2] == '/' || arg[2] == '\\')
}

func looksLikePlaceholder(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range placeholderPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isExplicitPath(command string) bool {
	return strings.ContainsAny(command, `/\`)
}

func isPackageExecutor(name string) bool {
	return slices.ContainsFunc(PackageExecutors, func(e string) bool {
		return strings.EqualFold(e, name)
	})
}

// isWrapperInvocation matches `cmd /c <cmd> ...`.
func isWrapperInvocation(command string, args []string) bool {
	return strings.EqualFold(command, "cmd") && len(args) >= 2 && strings.EqualFold(args[0], "/c")
}
