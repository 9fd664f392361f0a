// Package config provides pipeline configuration loading
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/datafreight/freight/pkg/errors"
)

// Component is one declared pipeline component: the config key it was
// declared under, its type tag, and the remaining free-form parameters.
type Component struct {
	Name   string
	Type   string
	Params Params
}

// Section is an ordered list of components. YAML mappings lose their
// declaration order when decoded into a Go map, so sections decode through
// yaml.Node and keep the order components were written in.
type Section []Component

// UnmarshalYAML decodes a mapping of component name -> {type, ...params}
// preserving declaration order.
func (s *Section) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping of component name to settings, got %s", nodeKind(node))
	}

	components := make(Section, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		var settings map[string]interface{}
		if err := node.Content[i+1].Decode(&settings); err != nil {
			return fmt.Errorf("component %q: %w", name, err)
		}

		component := Component{Name: name, Params: Params(settings)}
		if t, ok := settings["type"].(string); ok {
			component.Type = t
			delete(settings, "type")
		}
		components = append(components, component)
	}

	*s = components
	return nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return "a scalar"
	default:
		return "an unexpected node"
	}
}

// Logging configures the process-wide logger.
type Logging struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Config is a full pipeline configuration.
type Config struct {
	JobID        string  `yaml:"job_id"`
	Logging      Logging `yaml:"logging"`
	Extractors   Section `yaml:"extractors"`
	Transformers Section `yaml:"transformers"`
	Loaders      Section `yaml:"loaders"`
}

// Load reads a YAML configuration file, substituting ${VAR} references with
// environment variable values before parsing.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the CLI user
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	content := substituteEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}

	return cfg, nil
}

// Validate reports structural problems a pipeline run would hit: components
// without a type tag and a configuration with nothing to extract. It returns
// all findings rather than stopping at the first.
func (c *Config) Validate() []error {
	var findings []error

	if len(c.Extractors) == 0 {
		findings = append(findings, errors.New(errors.ErrorTypeConfig, "no extractors configured"))
	}

	check := func(kind string, section Section) {
		for _, component := range section {
			if component.Type == "" {
				findings = append(findings,
					errors.Newf(errors.ErrorTypeConfig, "%s %q has no type", kind, component.Name))
			}
		}
	}
	check("extractor", c.Extractors)
	check("transformer", c.Transformers)
	check("loader", c.Loaders)

	return findings
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values in
// a single left-to-right pass. Substituted values are not re-scanned, so a
// variable whose value contains ${...} cannot loop the scanner.
func substituteEnvVars(content string) string {
	var out strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			out.WriteString(content)
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			out.WriteString(content)
			break
		}
		end += start

		out.WriteString(content[:start])
		out.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	return out.String()
}
