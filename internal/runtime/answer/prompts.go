package answer

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// Template is the system/user prompt pair for one answer style. The user
// template may reference {question} and {context}.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Prompts holds the templates for every answer style.
type Prompts struct {
	DefaultContext string              `yaml:"default_context"`
	DefaultStyle   string              `yaml:"default_style"`
	Styles         map[string]Template `yaml:"styles"`
}

// DefaultPrompts returns the embedded templates.
func DefaultPrompts() *Prompts {
	prompts, err := ParsePrompts(defaultPromptsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return prompts
}

// LoadPrompts reads templates from path. An empty path returns the defaults.
// Styles missing from the file keep their embedded template.
func LoadPrompts(path string) (*Prompts, error) {
	defaults := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	loaded, err := ParsePrompts(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for style, tmpl := range loaded.Styles {
		defaults.Styles[style] = tmpl
	}
	if loaded.DefaultContext != "" {
		defaults.DefaultContext = loaded.DefaultContext
	}
	if loaded.DefaultStyle != "" {
		defaults.DefaultStyle = loaded.DefaultStyle
	}
	return defaults, defaults.Validate()
}

// ParsePrompts decodes a YAML prompts document.
func ParsePrompts(raw []byte) (*Prompts, error) {
	var prompts Prompts
	if err := yaml.Unmarshal(raw, &prompts); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	if prompts.Styles == nil {
		prompts.Styles = map[string]Template{}
	}
	return &prompts, nil
}

// Validate requires the default style to exist and every template to carry
// a {question} placeholder.
func (p *Prompts) Validate() error {
	if _, ok := p.Styles[p.DefaultStyle]; !ok {
		return fmt.Errorf("default_style %q has no template", p.DefaultStyle)
	}
	for style, tmpl := range p.Styles {
		if !strings.Contains(tmpl.User, "{question}") {
			return fmt.Errorf("style %q user template must reference {question}", style)
		}
	}
	return nil
}

// StyleNames returns the configured style names, sorted.
func (p *Prompts) StyleNames() []string {
	names := make([]string, 0, len(p.Styles))
	for name := range p.Styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render fills the template for style. Unknown styles use the default style
// and an empty context uses the default context.
func (p *Prompts) Render(style, question, context string) contracts.Prompt {
	tmpl, ok := p.Styles[style]
	if !ok {
		tmpl = p.Styles[p.DefaultStyle]
	}
	if strings.TrimSpace(context) == "" {
		context = p.DefaultContext
	}
	replacer := strings.NewReplacer("{question}", question, "{context}", context)
	return contracts.Prompt{
		System: tmpl.System,
		User:   replacer.Replace(tmpl.User),
	}
}
