package source

import (
	"maps"
	"slices"

	"github.com/matzehuels/compkgs/pkg/component"
)

// Project is the raw component data of one upstream release.
type Project struct {
	Manifests map[string][]byte `json:"manifests"` // manifest.json contents by directory name
	Tested    map[string]bool   `json:"tested"`    // Directories under tests/components
}

func newProject() *Project {
	return &Project{Manifests: make(map[string][]byte), Tested: make(map[string]bool)}
}

// Components parses every manifest, in directory order.
func (p *Project) Components() ([]component.Manifest, error) {
	dirs := slices.Sorted(maps.Keys(p.Manifests))
	out := make([]component.Manifest, 0, len(dirs))
	for _, dir := range dirs {
		m, err := component.ParseManifest(dir, p.Manifests[dir])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// TestedDomains returns the directories under tests/components in sorted
// order.
func (p *Project) TestedDomains() []string {
	return slices.Sorted(maps.Keys(p.Tested))
}
