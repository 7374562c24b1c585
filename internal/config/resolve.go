package config

import (
	"strconv"
	"strings"
)

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from the pacer.toml config file.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the fully-resolved configuration with source tracking.
// The Config field contains the merged values; Sources tracks where each came from.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // key is dotted path, e.g., "project.store_dir"
	Path    string                  // path to the config file used (empty if none)
}

// CLIOverrides captures flag values that can override configuration.
// A nil pointer means "not overridden".
type CLIOverrides struct {
	StoreDir             *string
	DefaultProject       *string
	HonorDependencyTypes *bool
	RecalcConcurrency    *int
}

// EnvFunc is a function that looks up environment variables.
// Default implementation is os.LookupEnv. Injected for testability.
type EnvFunc func(key string) (string, bool)

// Resolve merges configuration from all sources in priority order:
// CLI flags > environment variables > config file > defaults.
//
// Parameters:
//   - defaults: built-in default config (from NewDefaults())
//   - fileConfig: parsed config from pacer.toml (nil if no file found)
//   - envFn: function to look up environment variables
//   - overrides: CLI flag values (nil fields mean "not set")
//
// Returns the fully-resolved config with source annotations.
func Resolve(defaults *Config, fileConfig *Config, envFn EnvFunc, overrides *CLIOverrides) *ResolvedConfig {
	rc := &ResolvedConfig{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}

	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	// Layer 1: Start with defaults as the base.
	resolveProjectFromDefaults(rc, defaults)
	resolveScheduleFromDefaults(rc, defaults)

	// Layer 2: Merge file config on top (non-zero values override).
	if fileConfig != nil {
		resolveProjectFromFile(rc, fileConfig)
		resolveScheduleFromFile(rc, fileConfig)
	}

	// Layer 3: Merge environment variables on top.
	resolveFromEnv(rc, envFn)

	// Layer 4: Merge CLI overrides on top.
	resolveFromCLI(rc, overrides)

	return rc
}

// --- Layer 1: Defaults ---

func resolveProjectFromDefaults(rc *ResolvedConfig, defaults *Config) {
	p := &rc.Config.Project
	d := &defaults.Project

	setString(&p.Name, d.Name, "project.name", SourceDefault, rc.Sources)
	setString(&p.StoreDir, d.StoreDir, "project.store_dir", SourceDefault, rc.Sources)
	setString(&p.DefaultProject, d.DefaultProject, "project.default_project", SourceDefault, rc.Sources)
}

func resolveScheduleFromDefaults(rc *ResolvedConfig, defaults *Config) {
	s := &rc.Config.Schedule
	d := &defaults.Schedule

	s.HonorDependencyTypes = d.HonorDependencyTypes
	s.RecalcOnLink = d.RecalcOnLink
	s.RecalcOnUnlink = d.RecalcOnUnlink
	s.RecalcConcurrency = d.RecalcConcurrency
	for _, key := range []string{
		"schedule.honor_dependency_types",
		"schedule.recalc_on_link",
		"schedule.recalc_on_unlink",
		"schedule.recalc_concurrency",
	} {
		rc.Sources[key] = SourceDefault
	}
}

// --- Layer 2: File ---

func resolveProjectFromFile(rc *ResolvedConfig, file *Config) {
	p := &rc.Config.Project
	f := &file.Project

	mergeString(&p.Name, f.Name, "project.name", SourceFile, rc.Sources)
	mergeString(&p.StoreDir, f.StoreDir, "project.store_dir", SourceFile, rc.Sources)
	mergeString(&p.DefaultProject, f.DefaultProject, "project.default_project", SourceFile, rc.Sources)
}

// resolveScheduleFromFile merges the [schedule] section. A false boolean in
// the file cannot be told apart from an absent key, so booleans only merge
// when true; every schedule toggle defaults to false.
func resolveScheduleFromFile(rc *ResolvedConfig, file *Config) {
	s := &rc.Config.Schedule
	f := &file.Schedule

	mergeBool(&s.HonorDependencyTypes, f.HonorDependencyTypes, "schedule.honor_dependency_types", SourceFile, rc.Sources)
	mergeBool(&s.RecalcOnLink, f.RecalcOnLink, "schedule.recalc_on_link", SourceFile, rc.Sources)
	mergeBool(&s.RecalcOnUnlink, f.RecalcOnUnlink, "schedule.recalc_on_unlink", SourceFile, rc.Sources)
	if f.RecalcConcurrency != 0 {
		s.RecalcConcurrency = f.RecalcConcurrency
		rc.Sources["schedule.recalc_concurrency"] = SourceFile
	}
}

// --- Layer 3: Environment ---

// Environment variable mapping:
//
//	PACER_PROJECT_NAME            -> project.name
//	PACER_STORE_DIR               -> project.store_dir
//	PACER_PROJECT                 -> project.default_project
//	PACER_HONOR_DEPENDENCY_TYPES  -> schedule.honor_dependency_types
//	PACER_RECALC_CONCURRENCY      -> schedule.recalc_concurrency
//
// Unparseable boolean or integer values are ignored.
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) {
	p := &rc.Config.Project
	s := &rc.Config.Schedule

	if val, ok := envFn("PACER_PROJECT_NAME"); ok {
		p.Name = val
		rc.Sources["project.name"] = SourceEnv
	}
	if val, ok := envFn("PACER_STORE_DIR"); ok {
		p.StoreDir = val
		rc.Sources["project.store_dir"] = SourceEnv
	}
	if val, ok := envFn("PACER_PROJECT"); ok {
		p.DefaultProject = val
		rc.Sources["project.default_project"] = SourceEnv
	}
	if val, ok := envFn("PACER_HONOR_DEPENDENCY_TYPES"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			s.HonorDependencyTypes = b
			rc.Sources["schedule.honor_dependency_types"] = SourceEnv
		}
	}
	if val, ok := envFn("PACER_RECALC_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			s.RecalcConcurrency = n
			rc.Sources["schedule.recalc_concurrency"] = SourceEnv
		}
	}
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, overrides *CLIOverrides) {
	p := &rc.Config.Project
	s := &rc.Config.Schedule

	if overrides.StoreDir != nil {
		p.StoreDir = *overrides.StoreDir
		rc.Sources["project.store_dir"] = SourceCLI
	}
	if overrides.DefaultProject != nil {
		p.DefaultProject = *overrides.DefaultProject
		rc.Sources["project.default_project"] = SourceCLI
	}
	if overrides.HonorDependencyTypes != nil {
		s.HonorDependencyTypes = *overrides.HonorDependencyTypes
		rc.Sources["schedule.honor_dependency_types"] = SourceCLI
	}
	if overrides.RecalcConcurrency != nil {
		s.RecalcConcurrency = *overrides.RecalcConcurrency
		rc.Sources["schedule.recalc_concurrency"] = SourceCLI
	}
}

// --- Helpers ---

// setString unconditionally sets the target to the given value and records the source.
func setString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	*target = value
	sources[path] = source
}

// mergeString overwrites the target only if value is non-empty (non-zero string).
// For file-layer merging, an empty string in the file means "not set in file",
// so it does not override the default.
func mergeString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	if value != "" {
		*target = value
		sources[path] = source
	}
}

// mergeBool overwrites the target only when value is true.
func mergeBool(target *bool, value bool, path string, source ConfigSource, sources map[string]ConfigSource) {
	if value {
		*target = true
		sources[path] = source
	}
}
