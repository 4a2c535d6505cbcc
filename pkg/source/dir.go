package source

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/compkgs/pkg/errors"
)

const (
	componentsDir = "homeassistant/components"
	testsDir      = "tests/components"
	manifestFile  = "manifest.json"
)

// LoadDir reads a Project from the source tree at root. A missing tests
// directory yields an empty Tested set.
func LoadDir(root string) (*Project, error) {
	entries, err := os.ReadDir(filepath.Join(root, componentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s is not a Home Assistant source tree", root)
		}
		return nil, err
	}

	p := newProject()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, componentsDir, e.Name(), manifestFile))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p.Manifests[e.Name()] = data
	}

	tests, err := os.ReadDir(filepath.Join(root, testsDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, e := range tests {
		if e.IsDir() {
			p.Tested[e.Name()] = true
		}
	}
	return p, nil
}
