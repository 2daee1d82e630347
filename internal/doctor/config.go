package doctor

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/errors"
)

// ConfigFileCheck reports which config file is in use.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		msg, suggestion := explain(err)
		return CheckResult{
			Status:     StatusFail,
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	if path == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No config file, using defaults",
			Suggestion: "Run 'dutctl config init' to write " + config.DefaultPath(),
			Fixable:    true,
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: "Config file: " + path,
	}
}

// Fix writes the default config where the search would find it.
func (c *ConfigFileCheck) Fix() error {
	path := c.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.WriteDefault(path, false)
}

// ConfigSchemaCheck loads and validates the effective config.
type ConfigSchemaCheck struct {
	ConfigPath string
}

func (c *ConfigSchemaCheck) Name() string     { return "config_schema" }
func (c *ConfigSchemaCheck) Category() string { return "CONFIG" }

func (c *ConfigSchemaCheck) Run(context.Context) CheckResult {
	cfg, _, err := config.LoadAndValidate(c.ConfigPath)
	if err != nil {
		msg, suggestion := explain(err)
		return CheckResult{
			Status:     StatusFail,
			Message:    msg,
			Suggestion: suggestion,
		}
	}
	if cfg.Version < config.CurrentConfigVersion {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Config version %d is older than %d", cfg.Version, config.CurrentConfigVersion),
			Suggestion: "Run 'dutctl config init --force' and reapply your changes",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: "Config is valid",
	}
}

func (c *ConfigSchemaCheck) Fix() error { return nil }

// explain splits a structured error into its message and suggestion.
func explain(err error) (string, string) {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Message, e.Suggestion
	}
	return err.Error(), ""
}
