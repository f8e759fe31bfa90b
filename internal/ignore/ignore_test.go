package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTierPriorityUnignoreOverridesProject(t *testing.T) {
	m := NewMatcher()
	if err := m.AddPatterns(SourceProject, []string{"target/", "!target/keep.txt"}); err != nil {
		t.Fatalf("AddPatterns: %v", err)
	}

	if res := m.Check("target/a.o", false); !res.Ignored {
		t.Fatal("expected target/a.o to be ignored")
	}
	if res := m.Check("target/keep.txt", false); res.Ignored {
		t.Fatal("expected target/keep.txt to be unignored")
	}
}

func TestTemplateLowerPriorityThanProject(t *testing.T) {
	m := NewMatcher()
	if err := m.AddPatterns(SourceTemplate, []string{"*.log"}); err != nil {
		t.Fatalf("AddPatterns: %v", err)
	}
	if err := m.AddPatterns(SourceProject, []string{"!debug.log"}); err != nil {
		t.Fatalf("AddPatterns: %v", err)
	}

	if res := m.Check("other.log", false); !res.Ignored {
		t.Fatal("expected other.log ignored by template")
	}
	if res := m.Check("debug.log", false); res.Ignored {
		t.Fatal("expected debug.log unignored by explicit project override")
	}
}

func TestBuiltinLowestPriority(t *testing.T) {
	m := NewMatcher()
	if err := m.AddPatterns(SourceBuiltin, []string{"*.tmp"}); err != nil {
		t.Fatalf("AddPatterns: %v", err)
	}
	if err := m.AddPatterns(SourceUserGlobal, []string{"!keep.tmp"}); err != nil {
		t.Fatalf("AddPatterns: %v", err)
	}

	if res := m.Check("keep.tmp", false); res.Ignored {
		t.Fatal("expected user-global unignore to outrank builtin default")
	}
}

func TestDeterministicRegardlessOfCallOrder(t *testing.T) {
	m := NewMatcher()
	m.AddPatterns(SourceProject, []string{"build/", "*.o"})

	first := m.Check("build/x.o", false)
	second := m.Check("other.txt", false)
	third := m.Check("build/x.o", false)

	if first != third {
		t.Fatalf("expected stable result for same path across calls: %+v vs %+v", first, third)
	}
	if second.Ignored {
		t.Fatal("unrelated path should not be ignored")
	}
}

func TestDirOnlyPatternRequiresIsDir(t *testing.T) {
	m := NewMatcher()
	m.AddPatterns(SourceProject, []string{"build/"})

	if res := m.Check("build", false); res.Ignored {
		t.Fatal("dir-only pattern must not match a non-directory path named 'build'")
	}
	if res := m.Check("build", true); !res.Ignored {
		t.Fatal("dir-only pattern should match a directory named 'build'")
	}
}

func TestDoubleStarMatchesNestedPaths(t *testing.T) {
	m := NewMatcher()
	m.AddPatterns(SourceProject, []string{"**/*.generated.go"})

	if res := m.Check("a/b/c/x.generated.go", false); !res.Ignored {
		t.Fatal("expected nested path to match **/*.generated.go")
	}
}

func TestLoadProjectConfigMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadProjectConfig(dir)
	if err != nil {
		t.Fatalf("expected no error for missing config, got %v", err)
	}
	if len(cfg.Patterns) != 0 {
		t.Fatal("expected empty config")
	}
}

func TestLoadProjectConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	content := "templates: [rust, node]\npatterns:\n  - \"target/\"\n  - \"!target/keep.txt\"\nsize_threshold_bytes: 10485760\n"
	if err := os.WriteFile(filepath.Join(dir, ".runeignore.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadProjectConfig(dir)
	if err != nil {
		t.Fatalf("LoadProjectConfig: %v", err)
	}
	if len(cfg.Templates) != 2 || cfg.Templates[0] != "rust" {
		t.Fatalf("unexpected templates: %v", cfg.Templates)
	}
	if cfg.SizeThresholdBytes != 10485760 {
		t.Fatalf("unexpected size threshold: %d", cfg.SizeThresholdBytes)
	}
}

func TestBuildMatcherAppliesAllTiers(t *testing.T) {
	dir := t.TempDir()
	content := "patterns:\n  - \"*.secret\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".runeignore.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(""), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, cfg, err := BuildMatcher(dir, "")
	if err != nil {
		t.Fatalf("BuildMatcher: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if res := m.Check(".rune/objects/x", true); !res.Ignored {
		t.Fatal("expected built-in .rune/ to be ignored")
	}
	if res := m.Check("target/debug/a", true); !res.Ignored {
		t.Fatal("expected auto-detected rust template to ignore target/")
	}
	if res := m.Check("k.secret", false); !res.Ignored {
		t.Fatal("expected project pattern *.secret to be ignored")
	}
}
