// Package report aggregates per-component resolution results.
//
// A [Builder] walks every component of a graph, resolves each requirement
// of its closure and sorts the outcome into three buckets:
//
//   - Attrs: packages found in the registry
//   - ExtraAttrs: optional feature sets those packages provide
//   - Missing: requirement names with no package, and extras a package lacks
//
// A component is supported when nothing is missing. Packages whose
// registry version is older than a pinned requirement are collected in
// [Report.Outdated], once per package across all components.
package report

import (
	"encoding/json"
	"io"
	"os"
	"slices"
	"time"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// ComponentResult is the resolution of one component's closure.
type ComponentResult struct {
	Domain       string   `json:"domain" bson:"domain"`
	Requirements []string `json:"requirements" bson:"requirements"`
	Attrs        []string `json:"attrs" bson:"attrs"`
	ExtraAttrs   []string `json:"extra_attrs,omitempty" bson:"extra_attrs,omitempty"`
	Missing      []string `json:"missing,omitempty" bson:"missing,omitempty"`
	Tested       bool     `json:"tested" bson:"tested"`
}

// Supported reports whether every requirement of the closure is packaged.
func (c ComponentResult) Supported() bool { return len(c.Missing) == 0 }

// Outdated is a package whose registry version is older than a requirement
// pins.
type Outdated struct {
	Attr    string `json:"attr" bson:"attr"`
	Current string `json:"current" bson:"current"`
	Wanted  string `json:"wanted" bson:"wanted"`
	Reason  string `json:"reason" bson:"reason"`
}

// Summary holds the headline counts of a report.
type Summary struct {
	Total              int `json:"total" bson:"total"`
	Supported          int `json:"supported" bson:"supported"`
	SupportedWithTests int `json:"supported_with_tests" bson:"supported_with_tests"`
	Outdated           int `json:"outdated" bson:"outdated"`
}

// Percent returns the share of supported components in percent.
func (s Summary) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return 100 * float64(s.Supported) / float64(s.Total)
}

// Report is the result of one run.
type Report struct {
	RunID              string            `json:"run_id" bson:"_id"`
	Version            string            `json:"version" bson:"version"`
	PackageSet         string            `json:"package_set" bson:"package_set"`
	CreatedAt          time.Time         `json:"created_at" bson:"created_at"`
	Components         []ComponentResult `json:"components" bson:"components"`
	SupportedWithTests []string          `json:"supported_with_tests" bson:"supported_with_tests"`
	Outdated           []Outdated        `json:"outdated" bson:"outdated"`
	Summary            Summary           `json:"summary" bson:"summary"`
}

// Component returns the result for domain.
func (r *Report) Component(domain string) (ComponentResult, bool) {
	i, ok := slices.BinarySearchFunc(r.Components, domain, func(c ComponentResult, d string) int {
		switch {
		case c.Domain < d:
			return -1
		case c.Domain > d:
			return 1
		}
		return 0
	})
	if !ok {
		return ComponentResult{}, false
	}
	return r.Components[i], true
}

// Unsupported returns the components with missing requirements.
func (r *Report) Unsupported() []ComponentResult {
	var out []ComponentResult
	for _, c := range r.Components {
		if !c.Supported() {
			out = append(out, c)
		}
	}
	return out
}

// WriteJSON encodes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadJSON decodes a report written by [Report.WriteJSON].
func ReadJSON(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode report")
	}
	return &rep, nil
}

// ReadFile loads a JSON report from path.
func ReadFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "report %s", path)
		}
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}
