package plotforge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestFileName is the optional interface-manifest file a plot module
// may carry in its directory. Its presence alone makes the directory
// discoverable.
const ManifestFileName = "manifest.toml"

// Manifest declares a module's identity and dependencies ahead of loading.
// Declared requires feed the dependency resolver so load order can be
// computed without constructing execution contexts first.
type Manifest struct {
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	Requires     []string `toml:"requires"`
	Capabilities []string `toml:"capabilities"`
}

// LoadManifest reads and parses the manifest.toml of a module directory.
func LoadManifest(moduleDir string) (*Manifest, error) {
	path := filepath.Join(moduleDir, ManifestFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
	}

	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestParse, path, err)
	}
	return &m, nil
}

// HasManifest reports whether a module directory carries a manifest file.
func HasManifest(moduleDir string) bool {
	_, err := os.Stat(filepath.Join(moduleDir, ManifestFileName))
	return err == nil
}
