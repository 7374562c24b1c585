package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError indicates a fatal validation issue; the configuration is unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates an informational validation issue; the configuration works
	// but may have problems.
	SeverityWarning ValidationSeverity = "warning"
)

// maxRecalcConcurrency caps schedule.recalc_concurrency.
const maxRecalcConcurrency = 64

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g., "project.store_dir"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// Validate checks the configuration for correctness and completeness.
// It performs structural validation, semantic validation, and unknown key detection.
//
// Parameters:
//   - cfg: the configuration to validate
//   - meta: TOML metadata from BurntSushi/toml (may be nil if no file was loaded)
//
// Returns validation results. Check HasErrors() to determine if the config is usable.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateProject(vr, &cfg.Project)
	validateSchedule(vr, &cfg.Schedule)
	validateUnknownKeys(vr, meta)

	return vr
}

// validateProject checks the [project] section for errors and warnings.
func validateProject(vr *ValidationResult, p *ProjectConfig) {
	if strings.TrimSpace(p.StoreDir) == "" {
		addError(vr, "project.store_dir", "must not be empty")
	} else if info, err := os.Stat(p.StoreDir); err == nil && !info.IsDir() {
		addError(vr, "project.store_dir",
			fmt.Sprintf("%q exists but is not a directory", p.StoreDir))
	} else if err != nil {
		// The store creates the directory on first write.
		addWarning(vr, "project.store_dir",
			fmt.Sprintf("directory %q does not exist yet", p.StoreDir))
	}

	if p.DefaultProject != "" && !fs.ValidPath(filepath.ToSlash(p.DefaultProject)) {
		addError(vr, "project.default_project",
			fmt.Sprintf("%q is not a valid project ID", p.DefaultProject))
	}

	if p.Name == "" {
		addWarning(vr, "project.name", "is empty")
	}
}

// validateSchedule checks the [schedule] section.
func validateSchedule(vr *ValidationResult, s *ScheduleConfig) {
	switch {
	case s.RecalcConcurrency < 1:
		addError(vr, "schedule.recalc_concurrency",
			fmt.Sprintf("must be at least 1, got %d", s.RecalcConcurrency))
	case s.RecalcConcurrency > maxRecalcConcurrency:
		addWarning(vr, "schedule.recalc_concurrency",
			fmt.Sprintf("%d is above %d; it will be capped", s.RecalcConcurrency, maxRecalcConcurrency))
	}
}

// EffectiveConcurrency returns RecalcConcurrency bounded to [1, 64].
func (s ScheduleConfig) EffectiveConcurrency() int {
	switch {
	case s.RecalcConcurrency < 1:
		return 1
	case s.RecalcConcurrency > maxRecalcConcurrency:
		return maxRecalcConcurrency
	default:
		return s.RecalcConcurrency
	}
}

// validateUnknownKeys checks for TOML keys that did not map to any config struct field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}

	for _, key := range meta.Undecoded() {
		path := strings.Join(key, ".")
		addWarning(vr, path, "unknown configuration key")
	}
}

// addError appends an error-severity issue to the validation result.
func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	})
}

// addWarning appends a warning-severity issue to the validation result.
func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
	})
}
