package mcpmgr

import (
	"fmt"
	"os/exec"
	"strings"
)

// HealthReport lists the required executables that could not be found and
// what to do about it.
type HealthReport struct {
	Missing         []string `json:"missing"`
	Recommendations []string `json:"recommendations"`
}

// EnvironmentProbe reports whether the executables MCP servers rely on are
// reachable. It is consulted before every connect.
type EnvironmentProbe interface {
	CanRunRequiredTools() bool
	ToolHealthReport() HealthReport
}

// PathProbe checks a fixed tool list against the executable search path.
type PathProbe struct {
	// Tools defaults to node, npm and npx.
	Tools []string
	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

var toolRecommendations = map[string][]string{
	"node": {
		"Install Node.js from https://nodejs.org/",
		"Or use package manager: brew install node (macOS), apt install nodejs (Ubuntu)",
	},
	"npm": {
		"npm usually comes with Node.js",
		"If missing, try: npm install -g npm",
	},
	"npx": {
		"npx usually comes with npm 5.2+",
		"If missing, try: npm install -g npx",
		"Or update npm: npm install -g npm@latest",
	},
}

func (p PathProbe) tools() []string {
	if len(p.Tools) == 0 {
		return []string{"node", "npm", "npx"}
	}
	return p.Tools
}

// CanRunRequiredTools reports whether every tool resolves.
func (p PathProbe) CanRunRequiredTools() bool {
	return len(p.ToolHealthReport().Missing) == 0
}

// ToolHealthReport resolves each tool and collects recommendations for the
// missing ones.
func (p PathProbe) ToolHealthReport() HealthReport {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var report HealthReport
	for _, tool := range p.tools() {
		if _, err := lookPath(tool); err == nil {
			continue
		}
		report.Missing = append(report.Missing, tool)
		report.Recommendations = append(report.Recommendations, toolRecommendations[tool]...)
	}
	return report
}

func environmentError(report HealthReport) error {
	msg := fmt.Sprintf(
		"Cannot connect to MCP server: Required tools are missing: %s\n\nInstallation recommendations:\n%s",
		strings.Join(report.Missing, ", "), strings.Join(report.Recommendations, "\n"))
	return markf(ErrEnvironment, "%s", msg)
}
