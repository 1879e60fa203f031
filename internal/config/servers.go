package config

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

// ServersFile is the on-disk list of MCP servers in the common
// {"mcpServers": {name: config}} shape. JSON files parse as YAML.
type ServersFile struct {
	Servers map[string]mcpmgr.RawServerConfig `yaml:"mcpServers" json:"mcpServers"`
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${NAME} with the environment value. Unset names are
// left as written.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// LoadServers reads and parses the servers file at path from fs.
func LoadServers(fs afero.Fs, path string) (*ServersFile, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading servers file %s", path)
	}
	return ParseServers(data)
}

// ParseServers decodes a servers document after expanding ${VAR} references.
func ParseServers(data []byte) (*ServersFile, error) {
	var file ServersFile
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &file); err != nil {
		return nil, errors.Wrap(err, "parsing servers file")
	}
	if file.Servers == nil {
		file.Servers = map[string]mcpmgr.RawServerConfig{}
	}
	return &file, nil
}

// Names returns the configured server names in sorted order.
func (f *ServersFile) Names() []string {
	names := make([]string, 0, len(f.Servers))
	for name := range f.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the raw configuration of name.
func (f *ServersFile) Lookup(name string) (mcpmgr.RawServerConfig, error) {
	raw, ok := f.Servers[name]
	if !ok {
		return mcpmgr.RawServerConfig{}, errors.Newf("server %q is not defined in the servers file (known: %s)", name, strings.Join(f.Names(), ", "))
	}
	return raw, nil
}
