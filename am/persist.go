package am

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teranos/hireflow/errors"
)

// backupCount is how many rotated copies Save keeps (.back1 newest)
const backupCount = 3

// Render encodes cfg as toml, json or yaml
func Render(cfg *Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "toml":
		data, err := toml.Marshal(cfg)
		return data, errors.Wrap(err, "failed to marshal config to TOML")
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		return data, errors.Wrap(err, "failed to marshal config to JSON")
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		return data, errors.Wrap(err, "failed to marshal config to YAML")
	}
	return nil, errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
}

// Save writes cfg as TOML to path, rotating up to three backups of the previous file
func Save(cfg *Config, path string) error {
	data, err := Render(cfg, "toml")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := createBackup(path); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

func backupPath(path string, n int) string {
	return path + ".back" + strconv.Itoa(n)
}

// createBackup rotates .back1..back3 and copies the current file to .back1
func createBackup(path string) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s for backup", path)
	}

	if err := os.Remove(backupPath(path, backupCount)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to drop oldest backup")
	}
	for n := backupCount - 1; n >= 1; n-- {
		if _, err := os.Stat(backupPath(path, n)); err != nil {
			continue
		}
		if err := os.Rename(backupPath(path, n), backupPath(path, n+1)); err != nil {
			return errors.Wrapf(err, "failed to rotate backup %d", n)
		}
	}
	if err := os.WriteFile(backupPath(path, 1), content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write backup")
	}
	return nil
}
