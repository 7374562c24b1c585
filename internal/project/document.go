// Package project reads and writes portable project documents: a project's
// tasks and dependency edges in YAML or JSON, with edges referring to tasks
// by code. Documents feed `pacer import` and come out of `pacer export`.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// Format is a document encoding.
type Format string

const (
	// FormatYAML is the default document encoding.
	FormatYAML Format = "yaml"
	// FormatJSON encodes documents as indented JSON.
	FormatJSON Format = "json"
)

// ParseFormat normalises a user-supplied format name. An empty name selects
// YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown document format %q (want yaml or json)", s)
	}
}

// FormatFromPath picks the format from a file extension; anything other than
// .json is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Document is the portable description of one project.
type Document struct {
	Project      string           `yaml:"project" json:"project"`
	Tasks        []TaskSpec       `yaml:"tasks" json:"tasks"`
	Dependencies []DependencySpec `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// TaskSpec describes one task. ID is optional; import assigns one when it is
// empty and no task with the same code exists yet.
type TaskSpec struct {
	ID              string     `yaml:"id,omitempty" json:"id,omitempty"`
	Code            string     `yaml:"code" json:"code"`
	Title           string     `yaml:"title" json:"title"`
	SprintID        string     `yaml:"sprint_id,omitempty" json:"sprint_id,omitempty"`
	StartDate       *task.Date `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	DurationDays    int        `yaml:"duration_days,omitempty" json:"duration_days,omitempty"`
	ProgressPercent int        `yaml:"progress_percent,omitempty" json:"progress_percent,omitempty"`
	IsMilestone     bool       `yaml:"is_milestone,omitempty" json:"is_milestone,omitempty"`
	SortOrder       int        `yaml:"sort_order,omitempty" json:"sort_order,omitempty"`
}

// ref is how dependencies address the task.
func (s TaskSpec) ref() string {
	if s.Code != "" {
		return s.Code
	}
	return s.ID
}

// DependencySpec describes one edge: Task depends on DependsOn. Both fields
// hold a task code, or a task ID for tasks without one.
type DependencySpec struct {
	Task      string              `yaml:"task" json:"task"`
	DependsOn string              `yaml:"depends_on" json:"depends_on"`
	Type      task.DependencyType `yaml:"type,omitempty" json:"type,omitempty"`
	LagDays   int                 `yaml:"lag_days,omitempty" json:"lag_days,omitempty"`
}

// Load reads a document from path, choosing the format by extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project document: %w", err)
	}
	doc, err := Decode(bytes.NewReader(data), FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a document. Unknown fields are rejected so typos in a plan
// surface instead of being dropped.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("document is empty")
			}
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
	return &doc, nil
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown document format %q", format)
	}
}

// Validate checks the document on its own, before anything touches a store:
// the project ID is usable, every task has a unique reference, and every
// dependency names known tasks and a known type. All problems are joined.
func (d *Document) Validate() error {
	var errs []error
	if d.Project == "" {
		errs = append(errs, errors.New("project is required"))
	} else if !fs.ValidPath(d.Project) || strings.Contains(d.Project, "/") {
		errs = append(errs, fmt.Errorf("project %q is not a valid project ID", d.Project))
	}

	refs := make(map[string]int, len(d.Tasks))
	ids := make(map[string]int, len(d.Tasks))
	for i, t := range d.Tasks {
		ref := t.ref()
		if ref == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: code or id is required", i))
			continue
		}
		if prev, dup := refs[ref]; dup {
			errs = append(errs, fmt.Errorf("tasks[%d]: %q already used by tasks[%d]", i, ref, prev))
		} else {
			refs[ref] = i
		}
		if t.ID != "" {
			if prev, dup := ids[t.ID]; dup {
				errs = append(errs, fmt.Errorf("tasks[%d]: id %q already used by tasks[%d]", i, t.ID, prev))
			} else {
				ids[t.ID] = i
			}
		}
	}

	for i, dep := range d.Dependencies {
		if _, ok := refs[dep.Task]; !ok {
			errs = append(errs, fmt.Errorf("dependencies[%d]: unknown task %q", i, dep.Task))
		}
		if _, ok := refs[dep.DependsOn]; !ok {
			errs = append(errs, fmt.Errorf("dependencies[%d]: unknown task %q", i, dep.DependsOn))
		}
		if _, err := task.ParseDependencyType(string(dep.Type)); err != nil {
			errs = append(errs, fmt.Errorf("dependencies[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
