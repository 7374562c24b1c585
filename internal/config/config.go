// Package config loads pacer.toml and resolves it against defaults,
// environment variables and command-line overrides.
package config

// Config is the top-level configuration structure mapping to pacer.toml.
type Config struct {
	Project  ProjectConfig  `toml:"project"`
	Schedule ScheduleConfig `toml:"schedule"`
}

// ProjectConfig maps to the [project] section in pacer.toml.
type ProjectConfig struct {
	Name string `toml:"name"`
	// StoreDir holds one JSON document per project.
	StoreDir string `toml:"store_dir"`
	// DefaultProject is used by commands that take an optional project ID.
	DefaultProject string `toml:"default_project"`
}

// ScheduleConfig maps to the [schedule] section in pacer.toml.
type ScheduleConfig struct {
	// HonorDependencyTypes enables per-type boundary selection during
	// propagation. When false every edge is treated as finish-to-start.
	HonorDependencyTypes bool `toml:"honor_dependency_types"`
	// RecalcOnLink recalculates the project after a dependency is created.
	RecalcOnLink bool `toml:"recalc_on_link"`
	// RecalcOnUnlink recalculates the project after a dependency is deleted.
	RecalcOnUnlink bool `toml:"recalc_on_unlink"`
	// RecalcConcurrency bounds how many projects `recalc --all` runs at once.
	RecalcConcurrency int `toml:"recalc_concurrency"`
}
