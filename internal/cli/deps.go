package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/config"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/graph"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/logging"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/project"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/propagate"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/schedule"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/task"
)

// eventBuffer bounds scheduler events waiting to be logged.
const eventBuffer = 64

// runtimeDeps is everything a store-backed command needs, wired from the
// resolved configuration.
type runtimeDeps struct {
	cfg       *config.Config
	store     *task.FileStore
	manager   *graph.Manager
	engine    *propagate.Engine
	scheduler *schedule.Scheduler
	importer  *project.Importer

	events chan schedule.Event
	wg     sync.WaitGroup
}

// depsOptions tweaks buildRuntimeDeps.
type depsOptions struct {
	// skipGraphCheck opens project documents even when their dependency
	// graph is broken, so `pacer check` can report the problems.
	skipGraphCheck bool
}

// loadRuntimeDeps resolves configuration and builds the runtime.
func loadRuntimeDeps(opts depsOptions) (*runtimeDeps, error) {
	resolved, _, err := loadAndResolveConfig()
	if err != nil {
		return nil, err
	}
	return buildRuntimeDeps(resolved.Config, opts)
}

// buildRuntimeDeps opens the file store and wires the graph manager,
// propagation engine, scheduler and importer over it. Scheduler events are
// logged at debug level until Close.
func buildRuntimeDeps(cfg *config.Config, opts depsOptions) (*runtimeDeps, error) {
	storeOpts := []task.FileStoreOption{
		task.WithStoreLogger(logging.New(logging.ComponentStore)),
	}
	if !opts.skipGraphCheck {
		storeOpts = append(storeOpts, task.WithLoadValidator(graph.ValidateProject))
	}
	store, err := task.OpenFileStore(cfg.Project.StoreDir, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("opening project store: %w", err)
	}

	manager := graph.NewManager(store, logging.New(logging.ComponentGraph))
	engine := propagate.NewEngine(store,
		propagate.WithDependencyTypes(cfg.Schedule.HonorDependencyTypes),
		propagate.WithLogger(logging.New(logging.ComponentPropagate)),
	)

	d := &runtimeDeps{
		cfg:      cfg,
		store:    store,
		manager:  manager,
		engine:   engine,
		importer: project.NewImporter(store, manager, logging.New(logging.ComponentProject)),
		events:   make(chan schedule.Event, eventBuffer),
	}
	d.scheduler = schedule.NewScheduler(store, manager, engine, schedule.Options{
		RecalcOnLink:   cfg.Schedule.RecalcOnLink,
		RecalcOnUnlink: cfg.Schedule.RecalcOnUnlink,
		Concurrency:    cfg.Schedule.EffectiveConcurrency(),
	}, logging.New(logging.ComponentSchedule), d.events)

	logger := logging.New(logging.ComponentCLI)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ev := range d.events {
			logger.Debug("schedule event",
				"type", ev.Type,
				"project", ev.ProjectID,
				"task", ev.TaskID,
				"edge", ev.EdgeID,
				"changed", ev.Changed,
			)
		}
	}()
	return d, nil
}

// Close stops the event logger. The scheduler must not be used afterwards.
func (d *runtimeDeps) Close() {
	close(d.events)
	d.wg.Wait()
}

// projectID returns args[0] when present, else the configured default
// project.
func (d *runtimeDeps) projectID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if d.cfg.Project.DefaultProject != "" {
		return d.cfg.Project.DefaultProject, nil
	}
	return "", errors.New("no project given: pass a project ID, use --project, or set project.default_project")
}

// resolveTask finds a task by ID, or by code within the default project.
func (d *runtimeDeps) resolveTask(ctx context.Context, ref string) (*task.Task, error) {
	t, err := d.store.GetTask(ctx, ref)
	if err == nil {
		return t, nil
	}
	var nf *task.TaskNotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}

	projectID := d.cfg.Project.DefaultProject
	if projectID == "" {
		return nil, err
	}
	tasks, lerr := d.store.GetTasksForProject(ctx, projectID)
	if lerr != nil {
		return nil, fmt.Errorf("loading tasks for project %s: %w", projectID, lerr)
	}
	var match *task.Task
	for i := range tasks {
		if tasks[i].Code != ref {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("code %s matches several tasks in project %s; use the task ID", ref, projectID)
		}
		match = &tasks[i]
	}
	if match == nil {
		return nil, &task.TaskNotFoundError{TaskID: ref, ProjectID: projectID}
	}
	return match, nil
}

// loadAndResolveConfig loads and resolves the configuration from all sources
// (file, env, CLI flags). It returns the resolved config, the TOML metadata
// (nil when no file was found), and any loading error.
//
// When flagConfig is set, that path is used directly. Otherwise,
// config.FindConfigFile searches upward from the current directory.
func loadAndResolveConfig() (*config.ResolvedConfig, *toml.MetaData, error) {
	var (
		fileCfg *config.Config
		meta    *toml.MetaData
		cfgPath string
	)

	if flagConfig != "" {
		cfgPath = flagConfig
	} else {
		found, err := config.FindConfigFile(".")
		if err != nil {
			return nil, nil, fmt.Errorf("finding config file: %w", err)
		}
		cfgPath = found
	}
	if cfgPath != "" {
		fc, md, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		fileCfg = fc
		meta = &md
	}

	resolved := config.Resolve(config.NewDefaults(), fileCfg, lookupEnv, cliOverrides())
	resolved.Path = cfgPath
	return resolved, meta, nil
}

// cliOverrides maps explicitly set global flags onto config overrides.
func cliOverrides() *config.CLIOverrides {
	o := &config.CLIOverrides{}
	if flagStoreDir != "" {
		dir := flagStoreDir
		o.StoreDir = &dir
	}
	if flagProject != "" {
		p := flagProject
		o.DefaultProject = &p
	}
	return o
}
