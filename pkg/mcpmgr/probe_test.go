package mcpmgr

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathProbeReportsMissingTools(t *testing.T) {
	t.Parallel()

	probe := PathProbe{LookPath: func(name string) (string, error) {
		if name == "node" {
			return "/usr/bin/node", nil
		}
		return "", exec.ErrNotFound
	}}

	assert.False(t, probe.CanRunRequiredTools())
	report := probe.ToolHealthReport()
	assert.Equal(t, []string{"npm", "npx"}, report.Missing)
	assert.Contains(t, report.Recommendations, "npm usually comes with Node.js")
	assert.Contains(t, report.Recommendations, "Or update npm: npm install -g npm@latest")
}

func TestPathProbeAllPresent(t *testing.T) {
	t.Parallel()

	probe := PathProbe{
		Tools:    []string{"uvx"},
		LookPath: func(name string) (string, error) { return "/bin/" + name, nil },
	}
	assert.True(t, probe.CanRunRequiredTools())
	assert.Empty(t, probe.ToolHealthReport().Missing)
}
