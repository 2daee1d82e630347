package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"gopkg.in/yaml.v3"
)

// WriteDefault writes DefaultConfig to path as YAML, creating parent
// directories. An existing file is an error unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Pass --force to overwrite it.")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Can't create "+filepath.Dir(path), "")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Can't write "+path, "")
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultConfig()); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Can't write "+path, "")
	}
	if err := enc.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Can't write "+path, "")
	}
	return nil
}
