package config

// DefaultStoreDir is where project documents live when nothing overrides it.
const DefaultStoreDir = ".pacer/projects"

// DefaultRecalcConcurrency bounds `recalc --all` when nothing overrides it.
const DefaultRecalcConcurrency = 4

// NewDefaults returns a Config populated with all default values. Every
// scheduling toggle is off: links and unlinks never move dates on their own
// and every edge propagates as finish-to-start.
func NewDefaults() *Config {
	return &Config{
		Project: ProjectConfig{
			StoreDir: DefaultStoreDir,
		},
		Schedule: ScheduleConfig{
			RecalcConcurrency: DefaultRecalcConcurrency,
		},
	}
}
