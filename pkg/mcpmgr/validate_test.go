package mcpmgr

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFS(t *testing.T, paths ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range paths {
		require.NoError(t, fs.MkdirAll(p, 0o755))
	}
	return fs
}

func requireReason(t *testing.T, err error, reason Reason) *ValidationError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSecurity), "validation errors must be marked ErrSecurity")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
	assert.Equal(t, reason, ve.Reason)
	return ve
}

func TestValidateCommandWhitelist(t *testing.T) {
	t.Parallel()

	v := NewCommandValidator(memFS(t))
	tests := []struct {
		name    string
		command string
		args    []string
		allowed bool
	}{
		{"npx", "npx", []string{"-y", "left-pad"}, true},
		{"uvx", "uvx", []string{"mcp-server-git"}, true},
		{"bunx", "bunx", nil, true},
		{"absolute unix path", "/usr/local/bin/server", nil, true},
		{"windows path", `C:\tools\server.exe`, nil, true},
		{"relative path", "./server", nil, true},
		{"cmd wrapper", "cmd", []string{"/c", "npx"}, true},
		{"cmd wrapper upper", "CMD", []string{"/C", "npx"}, true},
		{"cmd without target", "cmd", []string{"/c"}, false},
		{"cmd without /c", "cmd", []string{"/k", "npx"}, false},
		{"rm", "rm", []string{"-rf", "/"}, false},
		{"node", "node", []string{"server.js"}, false},
		{"case sensitive executor", "NPX", nil, false},
		{"python", "python", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.command, tt.args)
			if tt.allowed {
				if err != nil {
					var ve *ValidationError
					require.True(t, errors.As(err, &ve))
					assert.NotEqual(t, ReasonNotAllowed, ve.Reason, "unexpected rejection: %v", err)
				}
				return
			}
			requireReason(t, err, ReasonNotAllowed)
		})
	}
}

func TestValidateRejectsRmRf(t *testing.T) {
	t.Parallel()

	err := NewCommandValidator(memFS(t)).Validate("rm", []string{"-rf", "/"})
	ve := requireReason(t, err, ReasonNotAllowed)
	assert.Equal(t,
		"command 'rm' is not allowed. use one of: npx, uvx, bunx, an absolute path, or Windows wrapper 'cmd /c <cmd>'",
		ve.Message)
}

func TestValidateForbiddenCharacters(t *testing.T) {
	t.Parallel()

	v := NewCommandValidator(memFS(t))
	for _, ch := range []string{"|", "&", ";", ">", "<"} {
		t.Run(ch, func(t *testing.T) {
			for _, command := range []string{"npx", "/usr/bin/env"} {
				err := v.Validate(command, []string{"pkg", "a" + ch + "b"})
				ve := requireReason(t, err, ReasonForbiddenChars)
				assert.Equal(t, "args contains forbidden shell characters", ve.Message)
			}
		})
	}
}

func TestValidateArgsTooLong(t *testing.T) {
	t.Parallel()

	v := NewCommandValidator(memFS(t))
	// Joined with spaces: 2 x 1024 + 1 = 2049.
	long := []string{strings.Repeat("a", 1024), strings.Repeat("b", 1024)}
	ve := requireReason(t, v.Validate("npx", long), ReasonArgsTooLong)
	assert.Equal(t, "args too long", ve.Message)

	atLimit := []string{strings.Repeat("a", 1024), strings.Repeat("b", 1023)}
	assert.NoError(t, v.Validate("npx", atLimit))
}

func TestValidateMissingPaths(t *testing.T) {
	t.Parallel()

	v := NewCommandValidator(memFS(t, "/srv/data"))
	args := []string{"-y", "@modelcontextprotocol/server-filesystem", "/srv/data", "/srv/missing", "./also-missing", "https://example.com/x"}
	ve := requireReason(t, v.Validate("npx", args), ReasonMissingPaths)
	assert.Equal(t, []string{"/srv/missing", "./also-missing"}, ve.Missing)
	assert.Equal(t, "Path arguments do not exist: /srv/missing, ./also-missing", ve.Message)
}

func TestValidatePlaceholderHint(t *testing.T) {
	t.Parallel()

	v := NewCommandValidator(memFS(t))
	err := v.Validate("npx", []string{"-y", "@modelcontextprotocol/server-filesystem", "/Users/username/Desktop", "/path/to/other/allowed/dir"})
	ve := requireReason(t, err, ReasonMissingPaths)
	assert.Equal(t, []string{"/Users/username/Desktop", "/path/to/other/allowed/dir"}, ve.Missing)
	assert.True(t, strings.HasSuffix(ve.Message, "It looks like placeholder paths are still present. Please replace them with real existing directories."))
}

func TestValidateSkipsPackageIdentifier(t *testing.T) {
	t.Parallel()

	v := NewCommandValidator(memFS(t, "/srv/data"))
	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{"scoped package", "npx", []string{"-y", "@scope/server", "/srv/data"}},
		{"package with slash", "uvx", []string{"--from", "git+https://example.com/a/b", "/srv/data"}},
		{"cmd wrapper with executor", "cmd", []string{"/c", "npx", "-y", "some/pkg", "/srv/data"}},
		{"explicit path command", "/usr/bin/server", []string{"./first-non-flag", "/srv/data"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, v.Validate(tt.command, tt.args))
		})
	}
}

func TestValidateNoArgs(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewCommandValidator(memFS(t)).Validate("npx", nil))
}

func TestIsPathLike(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arg  string
		want bool
	}{
		{"", false},
		{"/tmp", true},
		{"./data", true},
		{"../data", true},
		{"~/data", true},
		{`C:\data`, true},
		{"C:/data", true},
		{`dir\file`, true},
		{"a/b", true},
		{"http://example.com/a", false},
		{"HTTPS://example.com/a", false},
		{"@scope/pkg", false},
		{`@scope\pkg`, true},
		{"@scope/pkg:tag", true},
		{"left-pad", false},
		{"--flag", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPathLike(tt.arg), "IsPathLike(%q)", tt.arg)
	}
}

func TestPackageName(t *testing.T) {
	t.Parallel()

	pkg, ok := PackageName([]string{"-y", "left-pad", "--port", "3000"})
	assert.True(t, ok)
	assert.Equal(t, "left-pad", pkg)

	_, ok = PackageName([]string{"-y", "--quiet"})
	assert.False(t, ok)

	_, ok = PackageName(nil)
	assert.False(t, ok)
}

func TestValidateCommand_HostFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ValidateCommand("npx", []string{"-y", "@modelcontextprotocol/server-filesystem", dir}))

	missing := dir + "/does-not-exist"
	err := ValidateCommand("npx", []string{"-y", "@modelcontextprotocol/server-filesystem", missing})
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{missing}, verr.Missing)
}
