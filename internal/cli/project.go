package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devserve/internal/config"
	"github.com/mmr-tortoise/devserve/internal/model"
	"github.com/mmr-tortoise/devserve/internal/project"
)

// configFlags holds the per-command flags that override configuration.
// A flag only takes effect when it was set on the command line.
type configFlags struct {
	port           int
	host           string
	logFile        string
	packageManager string
	devScript      string
	noDocker       bool
}

// register adds the override flags to cmd.
func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Dev server port (default: from the dev script, else 3000)")
	cmd.Flags().StringVar(&f.host, "host", "", "Host used in the server URL (default: localhost)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Dev server log file, relative to the project (default: logs/vite.log)")
	cmd.Flags().StringVar(&f.packageManager, "package-manager", "", "npm, yarn, pnpm or bun (default: detected)")
	cmd.Flags().StringVar(&f.devScript, "script", "", "package.json script that starts the server (default: dev)")
	cmd.Flags().BoolVar(&f.noDocker, "no-docker", false, "Do not ask Docker which container publishes the port")
}

// apply copies the flags that were set on cmd onto cfg.
func (f *configFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if changed("package-manager") {
		cfg.PackageManager = f.packageManager
	}
	if changed("script") {
		cfg.DevScript = f.devScript
	}
	if changed("no-docker") {
		cfg.DockerLookup = !f.noDocker
	}
}

// resolveProjectDir returns the absolute project directory from --dir,
// falling back to the working directory.
func resolveProjectDir() (string, error) {
	dir := projectDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

// loadProject resolves the configuration for a run.
//
// Layers apply in order: defaults, config file, environment, flags, then
// detection from package.json and lockfiles for whatever is still unset.
// Problems with package.json are returned as warnings, not errors: the run
// goes ahead and the install or launch step reports the real failure.
func loadProject(cmd *cobra.Command, flags *configFlags) (*config.Config, []string, error) {
	dir, err := resolveProjectDir()
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitConfigInvalid, "failed to resolve project directory", err)
	}

	cfg, err := config.Load(dir, configPath)
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitConfigInvalid, "failed to load configuration", err)
	}
	if !filepath.IsAbs(cfg.ProjectDir) {
		cfg.ProjectDir = filepath.Join(dir, cfg.ProjectDir)
	}
	flags.apply(cmd, cfg)

	VerboseLog("Project directory: %s", cfg.ProjectDir)

	var warnings []string
	pkg, err := project.LoadPackageJSON(cfg.ProjectDir)
	switch {
	case errors.Is(err, project.ErrNoPackageJSON):
		warnings = append(warnings, fmt.Sprintf("no %s in %s", project.PackageJSONFile, cfg.ProjectDir))
	case err != nil:
		warnings = append(warnings, err.Error())
	default:
		// An explicit dev command does not need the script.
		if _, ok := pkg.Script(cfg.DevScript); !ok && len(cfg.DevCommand) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s has no %q script", project.PackageJSONFile, cfg.DevScript))
		}
	}

	pm := cfg.ApplyDetected(pkg)
	VerboseLog("Package manager: %s, port: %d", pm, cfg.Port)

	if err := cfg.Validate(); err != nil {
		return nil, nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid configuration", err)
	}

	return cfg, warnings, nil
}
