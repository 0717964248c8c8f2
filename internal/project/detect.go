package project

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mmr-tortoise/devserve/internal/model"
)

// lockfiles maps lockfile names to the package manager that writes them.
// Checked in order; the first one present wins.
var lockfiles = []struct {
	name string
	pm   model.PackageManager
}{
	{"pnpm-lock.yaml", model.PackageManagerPNPM},
	{"yarn.lock", model.PackageManagerYarn},
	{"bun.lockb", model.PackageManagerBun},
	{"bun.lock", model.PackageManagerBun},
	{"package-lock.json", model.PackageManagerNPM},
}

// DetectPackageManager determines which package manager the project uses.
//
// The detection order is:
//  1. The "packageManager" field of package.json (e.g., "pnpm@9.1.0")
//  2. The first lockfile found in dir (see lockfiles)
//  3. npm
//
// pkg may be nil when the project has no package.json.
func DetectPackageManager(dir string, pkg *PackageJSON) model.PackageManager {
	if pkg != nil && pkg.PackageManager != "" {
		name, _, _ := strings.Cut(pkg.PackageManager, "@")
		if pm, err := model.ParsePackageManager(name); err == nil {
			return pm
		}
	}

	for _, lf := range lockfiles {
		if _, err := os.Stat(filepath.Join(dir, lf.name)); err == nil {
			return lf.pm
		}
	}

	return model.PackageManagerNPM
}

// DetectPort extracts the port passed on a dev script command line.
//
// Recognized forms are "--port N", "--port=N" and "-p N". Returns 0 if no
// valid port is present.
//
// Example:
//
//	"vite --port 5173 --host" → 5173
//	"next dev -p 4000"        → 4000
//	"vite"                    → 0
func DetectPort(script string) int {
	fields := strings.Fields(script)
	for i, f := range fields {
		var value string
		switch {
		case f == "--port" || f == "-p":
			if i+1 < len(fields) {
				value = fields[i+1]
			}
		case strings.HasPrefix(f, "--port="):
			value = strings.TrimPrefix(f, "--port=")
		default:
			continue
		}

		port, err := strconv.Atoi(value)
		if err == nil && port > 0 && port <= 65535 {
			return port
		}
	}
	return 0
}
