// Package config loads the devserve configuration.
//
// Values are layered in this order, later layers overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. A YAML file, .devserve.yaml in the project directory or an explicit path
//  3. DEVSERVE_* environment variables
//  4. Command-line flags (applied by the cli package)
//
// Fields left empty after all layers are filled from project detection
// (package manager, dev script port) by ApplyDetected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/devserve/internal/model"
	"github.com/mmr-tortoise/devserve/internal/project"
)

// FileName is the config file looked up in the project directory when no
// explicit path is given.
const FileName = ".devserve.yaml"

const (
	// DefaultPort is the dev server port used when neither configuration
	// nor the dev script names one.
	DefaultPort = 3000

	// DefaultHost is the host used to build the server URL.
	DefaultHost = "localhost"

	// DefaultLogFile is the log file path relative to the project directory.
	DefaultLogFile = "logs/vite.log"

	// DefaultInstallTimeout bounds the dependency install.
	DefaultInstallTimeout = 10 * time.Minute

	// DefaultLaunchGrace is how long the launcher watches the detached
	// process for an early exit before declaring the launch clean.
	DefaultLaunchGrace = 2 * time.Second
)

// Config is the resolved devserve configuration.
type Config struct {
	// ProjectDir is the front-end project root. Read-only input.
	ProjectDir string `yaml:"project_dir" env:"DEVSERVE_PROJECT_DIR"`

	// Host and Port form the server URL and Port is the probed port.
	Host string `yaml:"host" env:"DEVSERVE_HOST"`
	Port int    `yaml:"port" env:"DEVSERVE_PORT"`

	// LogFile receives the dev server's combined output. Relative paths
	// are resolved against ProjectDir.
	LogFile string `yaml:"log_file" env:"DEVSERVE_LOG_FILE"`

	// PackageManager selects the default install/dev commands.
	// Empty means detect from the project.
	PackageManager string `yaml:"package_manager" env:"DEVSERVE_PACKAGE_MANAGER"`

	// DevScript is the package.json script that starts the server.
	DevScript string `yaml:"dev_script" env:"DEVSERVE_DEV_SCRIPT"`

	// InstallCommand and DevCommand override the package manager defaults.
	InstallCommand []string `yaml:"install_command" env:"DEVSERVE_INSTALL_COMMAND" envSeparator:" "`
	DevCommand     []string `yaml:"dev_command" env:"DEVSERVE_DEV_COMMAND" envSeparator:" "`

	InstallTimeout time.Duration `yaml:"install_timeout" env:"DEVSERVE_INSTALL_TIMEOUT"`
	LaunchGrace    time.Duration `yaml:"launch_grace" env:"DEVSERVE_LAUNCH_GRACE"`

	// DockerLookup enables asking the Docker daemon which container
	// publishes the port when it is held by a Docker port proxy.
	DockerLookup bool `yaml:"docker_lookup" env:"DEVSERVE_DOCKER_LOOKUP"`
}

// Default returns the built-in configuration for projectDir.
func Default(projectDir string) *Config {
	return &Config{
		ProjectDir:     projectDir,
		Host:           DefaultHost,
		LogFile:        DefaultLogFile,
		DevScript:      project.DefaultDevScript,
		InstallTimeout: DefaultInstallTimeout,
		LaunchGrace:    DefaultLaunchGrace,
		DockerLookup:   true,
	}
}

// Load builds a Config from defaults, the YAML file and the environment.
//
// path is an explicit config file; when empty, projectDir/.devserve.yaml is
// used if it exists. A missing default file is not an error; a missing
// explicit file is.
func Load(projectDir, path string) (*Config, error) {
	cfg := Default(projectDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(projectDir, FileName)
	}

	// A missing project config file leaves the defaults in place.
	if err := cfg.loadFile(path); err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML file over cfg. Unknown keys are rejected so that
// typos (e.g. "instal_timeout") surface instead of being ignored.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// An empty file would decode to io.EOF.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyDetected fills fields that no layer set from project detection:
// the package manager (lockfiles / packageManager field), the port from the
// dev script command line, and the install/dev commands derived from the
// package manager.
func (c *Config) ApplyDetected(pkg *project.PackageJSON) model.PackageManager {
	var pm model.PackageManager
	if c.PackageManager == "" {
		pm = project.DetectPackageManager(c.ProjectDir, pkg)
		c.PackageManager = pm.String()
	} else if parsed, err := model.ParsePackageManager(c.PackageManager); err == nil {
		pm = parsed
	} else {
		// Left for Validate to reject; commands still need a program name.
		pm = model.PackageManagerNPM
	}

	if c.Port == 0 {
		if script, ok := pkg.Script(c.DevScript); ok {
			c.Port = project.DetectPort(script)
		}
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if len(c.InstallCommand) == 0 {
		c.InstallCommand = pm.InstallArgs()
	}
	if len(c.DevCommand) == 0 {
		c.DevCommand = pm.DevArgs(c.DevScript)
	}
	return pm
}

// Validate checks that the configuration can drive a run. It must be called
// after ApplyDetected.
func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return fmt.Errorf("project directory must not be empty")
	}
	info, err := os.Stat(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("project directory %s: %w", c.ProjectDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project directory %s is not a directory", c.ProjectDir)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", c.Port)
	}
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.LogFile == "" {
		return fmt.Errorf("log file must not be empty")
	}
	if c.PackageManager != "" {
		if _, err := model.ParsePackageManager(c.PackageManager); err != nil {
			return err
		}
	}
	if len(c.InstallCommand) == 0 || c.InstallCommand[0] == "" {
		return fmt.Errorf("install command must not be empty")
	}
	if len(c.DevCommand) == 0 || c.DevCommand[0] == "" {
		return fmt.Errorf("dev command must not be empty")
	}
	if c.InstallTimeout <= 0 {
		return fmt.Errorf("install timeout must be positive, got %s", c.InstallTimeout)
	}
	if c.LaunchGrace <= 0 {
		return fmt.Errorf("launch grace must be positive, got %s", c.LaunchGrace)
	}
	return nil
}

// LogFilePath returns the absolute log file path.
func (c *Config) LogFilePath() string {
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.ProjectDir, c.LogFile)
}

// URL returns the dev server URL, e.g. "http://localhost:3000".
func (c *Config) URL() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
