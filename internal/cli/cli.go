package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/playparse/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("playparse", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
playparse - parse, resolve and validate Ansible-style playbooks and
inventories without executing anything.

Usage:
  playparse [options] [PLAYBOOK_PATH]

Arguments:
  PLAYBOOK_PATH
    Path to a playbook YAML file.

Options:
`)
		flagSet.PrintDefaults()
	}

	playbookFlag := flagSet.String("playbook", "", "Path to the playbook file.")
	pFlag := flagSet.String("p", "", "Path to the playbook file (shorthand).")
	inventoryFlag := flagSet.String("inventory", "", "Path to an inventory source (INI, YAML or JSON).")
	iFlag := flagSet.String("i", "", "Path to an inventory source (shorthand).")
	syntaxCheckFlag := flagSet.Bool("syntax-check", false, "Fail when any error-severity diagnostic is reported.")
	depthFlag := flagSet.Int("max-include-depth", 0, "Include nesting limit. 0 uses the default.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	playbookPath := ""
	if *playbookFlag != "" {
		playbookPath = *playbookFlag
	} else if *pFlag != "" {
		playbookPath = *pFlag
	} else if flagSet.NArg() > 0 {
		playbookPath = flagSet.Arg(0)
	}

	inventoryPath := *inventoryFlag
	if inventoryPath == "" {
		inventoryPath = *iFlag
	}

	if playbookPath == "" && inventoryPath == "" {
		slog.Debug("No input path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PlaybookPath:    playbookPath,
		InventoryPath:   inventoryPath,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		SyntaxCheck:     *syntaxCheckFlag,
		MaxIncludeDepth: *depthFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
