package component

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// Manifest is the part of a component's manifest.json that matters for
// dependency resolution.
type Manifest struct {
	Domain            string   `json:"domain"`
	Name              string   `json:"name,omitempty"`
	Requirements      []string `json:"requirements,omitempty"`
	Dependencies      []string `json:"dependencies,omitempty"`
	AfterDependencies []string `json:"after_dependencies,omitempty"`
	Disabled          bool     `json:"disabled,omitempty"`
	DisabledReason    string   `json:"disabled_reason,omitempty"`
}

type rawManifest struct {
	Domain            string          `json:"domain"`
	Name              string          `json:"name"`
	Requirements      []string        `json:"requirements"`
	Dependencies      []string        `json:"dependencies"`
	AfterDependencies []string        `json:"after_dependencies"`
	Disabled          json.RawMessage `json:"disabled"`
}

// ParseManifest decodes a manifest.json document. dir is the name of the
// directory the manifest was found in; it is used when the document has no
// "domain" field and must agree with it otherwise.
//
// "disabled" may be a reason string (the upstream convention) or a boolean.
func ParseManifest(dir string, data []byte) (Manifest, error) {
	var raw rawManifest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return Manifest{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode manifest for %q", dir)
	}

	domain := raw.Domain
	if domain == "" {
		domain = dir
	}
	if dir != "" && domain != dir {
		return Manifest{}, errors.New(errors.ErrCodeInvalidManifest, "manifest in %q declares domain %q", dir, domain)
	}
	if err := errors.ValidateDomain(domain); err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Domain:            domain,
		Name:              raw.Name,
		Requirements:      raw.Requirements,
		Dependencies:      raw.Dependencies,
		AfterDependencies: raw.AfterDependencies,
	}
	disabled, reason, err := parseDisabled(raw.Disabled)
	if err != nil {
		return Manifest{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "manifest for %q", domain)
	}
	m.Disabled, m.DisabledReason = disabled, reason
	return m, nil
}

func parseDisabled(raw json.RawMessage) (bool, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, "", nil
	}
	var reason string
	if err := json.Unmarshal(raw, &reason); err == nil {
		return reason != "", reason, nil
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return flag, "", nil
	}
	return false, "", fmt.Errorf("field \"disabled\" must be a string or boolean, got %s", raw)
}

// Deps returns the dependencies and after-dependencies of m, in that order.
func (m Manifest) Deps() []string {
	deps := make([]string, 0, len(m.Dependencies)+len(m.AfterDependencies))
	deps = append(deps, m.Dependencies...)
	return append(deps, m.AfterDependencies...)
}
