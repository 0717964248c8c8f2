// packagejson.go parses package.json. Editors and scaffolding tools
// sometimes leave comments or trailing commas behind, so the file is run
// through github.com/tidwall/jsonc before decoding with encoding/json.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// PackageJSONFile is the manifest file name looked up in the project root.
const PackageJSONFile = "package.json"

// DefaultDevScript is the package.json script that starts the dev server.
const DefaultDevScript = "dev"

// ErrNoPackageJSON is returned by LoadPackageJSON when the project
// directory has no package.json.
var ErrNoPackageJSON = errors.New("package.json not found")

// PackageJSON holds the package.json fields devserve cares about.
// Other fields are silently ignored during parsing.
type PackageJSON struct {
	// Name is the package name.
	Name string `json:"name"`

	// Scripts maps script names to their shell command lines.
	Scripts map[string]string `json:"scripts,omitempty"`

	// PackageManager is the corepack field, e.g. "pnpm@9.1.0".
	PackageManager string `json:"packageManager,omitempty"`
}

// Script returns the command line of the named script and whether it exists.
func (p *PackageJSON) Script(name string) (string, bool) {
	if p == nil || p.Scripts == nil {
		return "", false
	}
	s, ok := p.Scripts[name]
	return s, ok
}

// LoadPackageJSON reads dir/package.json, strips JSONC comments and
// trailing commas, and parses it.
//
// Returns an error wrapping ErrNoPackageJSON if the file does not exist.
func LoadPackageJSON(dir string) (*PackageJSON, error) {
	path := filepath.Join(dir, PackageJSONFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoPackageJSON, dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var pkg PackageJSON
	if err := json.Unmarshal(jsonc.ToJSON(data), &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &pkg, nil
}
