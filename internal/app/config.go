package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PlaybookPath is the playbook file to parse.
	PlaybookPath string
	// InventoryPath optionally names an inventory source to parse alongside.
	InventoryPath string

	LogFormat string
	LogLevel  string

	// SyntaxCheck makes any error-severity diagnostic fail the run.
	SyntaxCheck bool

	// MaxIncludeDepth bounds include nesting; zero uses the default.
	MaxIncludeDepth int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PlaybookPath == "" && cfg.InventoryPath == "" {
		return nil, errors.New("a playbook or inventory path is required")
	}
	return &cfg, nil
}
