package ignore

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig mirrors the shape of .runeignore.yml (spec.md §6).
type ProjectConfig struct {
	Templates          []string `yaml:"templates"`
	Patterns           []string `yaml:"patterns"`
	SizeThresholdBytes int64    `yaml:"size_threshold_bytes"`
}

// LoadProjectConfig reads and parses .runeignore.yml from workDir. A missing
// file is not an error; it yields a zero-value ProjectConfig.
func LoadProjectConfig(workDir string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(workDir, ".runeignore.yml"))
	if os.IsNotExist(err) {
		return &ProjectConfig{}, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DetectTemplates returns ecosystem template names whose marker file is
// present at workDir's root. Detection only seeds templates; it never
// overrides patterns explicitly listed in ProjectConfig.Templates, and the
// caller is responsible for applying explicit patterns at higher priority
// regardless of detection order.
func DetectTemplates(workDir string) []string {
	var found []string
	for name, marker := range markerFiles {
		matches, _ := filepath.Glob(filepath.Join(workDir, marker))
		if len(matches) > 0 {
			found = append(found, name)
		}
	}
	return found
}

// BuildMatcher assembles a Matcher from a project config, explicit
// templates (auto-detected ones are appended only if not already present),
// a user-global pattern file, and the built-in defaults — in the priority
// order spec.md §4.4 defines.
func BuildMatcher(workDir, userGlobalPath string) (*Matcher, *ProjectConfig, error) {
	cfg, err := LoadProjectConfig(workDir)
	if err != nil {
		return nil, nil, err
	}

	m := NewMatcher()

	if err := m.AddPatterns(SourceBuiltin, BuiltinDefaults); err != nil {
		return nil, nil, err
	}

	if userGlobalPath != "" {
		if data, err := os.ReadFile(userGlobalPath); err == nil {
			if err := m.AddPatterns(SourceUserGlobal, splitLines(string(data))); err != nil {
				return nil, nil, err
			}
		}
	}

	templateNames := append([]string{}, cfg.Templates...)
	for _, auto := range DetectTemplates(workDir) {
		if !contains(templateNames, auto) {
			templateNames = append(templateNames, auto)
		}
	}
	for _, name := range templateNames {
		if pats, ok := Templates[name]; ok {
			if err := m.AddPatterns(SourceTemplate, pats); err != nil {
				return nil, nil, err
			}
		}
	}

	// AddPatterns routes "!"-prefixed project patterns into SourceUnignore
	// automatically, giving explicit unignores tier-1 priority even though
	// they are declared inline in the same project pattern list.
	if err := m.AddPatterns(SourceProject, cfg.Patterns); err != nil {
		return nil, nil, err
	}

	return m, cfg, nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
