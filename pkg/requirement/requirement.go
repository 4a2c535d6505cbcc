// Package requirement parses pinned requirement strings as they appear in
// component manifests.
//
// Accepted forms:
//
//	name==1.2.3
//	name[extra1,extra2]==1.2.3
//	name==1.2.3; python_version<"3.12"
//	https://example.org/archive.zip#name==1.2.3
//
// Only exact pins are supported. A requirement without "==" is a
// configuration error.
package requirement

import (
	"strings"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// Spec is a parsed requirement string.
type Spec struct {
	Raw     string   // Requirement as declared
	URL     string   // Text before the last '#', if any
	Name    string   // Package name without extras
	Extras  []string // Requested extras, in declaration order
	Version string   // Pinned version with environment markers removed
}

// HasExtras reports whether the requirement requests optional features.
func (s Spec) HasExtras() bool { return len(s.Extras) > 0 }

// Parse splits a raw requirement string into its parts.
func Parse(raw string) (Spec, error) {
	spec := Spec{Raw: raw}

	req := raw
	if i := strings.LastIndex(req, "#"); i >= 0 {
		spec.URL = req[:i]
		req = req[i+1:]
	}
	req = strings.TrimSpace(req)

	name, version, ok := strings.Cut(req, "==")
	if !ok {
		return Spec{}, errors.New(errors.ErrCodeInvalidRequirement, "requirement %q is not pinned with '=='", raw)
	}
	version, _, _ = strings.Cut(version, ";")
	spec.Version = strings.TrimSpace(version)

	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, "]") {
		open := strings.Index(name, "[")
		if open < 0 {
			return Spec{}, errors.New(errors.ErrCodeInvalidRequirement, "requirement %q has unbalanced extras", raw)
		}
		for _, extra := range strings.Split(name[open+1:len(name)-1], ",") {
			if extra = strings.TrimSpace(extra); extra != "" {
				spec.Extras = append(spec.Extras, extra)
			}
		}
		name = strings.TrimSpace(name[:open])
	}

	if err := errors.ValidatePackageName(name); err != nil {
		return Spec{}, errors.Wrap(errors.ErrCodeInvalidRequirement, err, "requirement %q", raw)
	}
	if spec.Version == "" {
		return Spec{}, errors.New(errors.ErrCodeInvalidRequirement, "requirement %q has an empty version", raw)
	}
	spec.Name = name
	return spec, nil
}

// String returns the canonical "name[extras]==version" form.
func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if len(s.Extras) > 0 {
		b.WriteByte('[')
		b.WriteString(strings.Join(s.Extras, ","))
		b.WriteByte(']')
	}
	b.WriteString("==")
	b.WriteString(s.Version)
	return b.String()
}
