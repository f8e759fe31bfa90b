package ignore

// Templates maps an ecosystem name to its built-in ignore pattern set
// (spec.md §4.4 tier 3). Kept small and curated, mirroring the handful of
// ecosystems spec.md names explicitly.
var Templates = map[string][]string{
	"rust": {
		"target/",
		"Cargo.lock",
		"**/*.rs.bk",
	},
	"node": {
		"node_modules/",
		"npm-debug.log*",
		"yarn-error.log*",
		"dist/",
		".env",
	},
	"python": {
		"__pycache__/",
		"*.pyc",
		".venv/",
		"venv/",
		"*.egg-info/",
	},
	"java": {
		"target/",
		"*.class",
		"*.jar",
		".gradle/",
	},
	"dotnet": {
		"bin/",
		"obj/",
		"*.user",
	},
}

// markerFiles maps a template name to the working-tree-root file whose
// presence auto-seeds that template (spec.md §4.4: "Auto-detection seeds
// templates based on the presence of marker files").
var markerFiles = map[string]string{
	"rust":   "Cargo.toml",
	"node":   "package.json",
	"python": "pyproject.toml",
	"java":   "pom.xml",
	"dotnet": "*.csproj",
}

// BuiltinDefaults are the tier-5 patterns applied unconditionally.
var BuiltinDefaults = []string{
	".rune/",
	"*.tmp",
	"*.swp",
	".DS_Store",
}
