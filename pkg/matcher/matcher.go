// Package matcher maps requirement strings to packages of a registry
// snapshot.
//
// Upstream package names and registry display names rarely agree
// verbatim. A requirement "python-mpd2==3.1" is packaged as
// "python3.12-mpd2-3.1.1", and "PyTurboJPEG" as "python3.12-pyturbojpeg-1.7.5".
// [Matcher.Resolve] bridges the gap:
//
//  1. An override table maps names that cannot be matched by pattern.
//  2. Otherwise the name, and the name without a "python-" or "python_"
//     prefix, are matched case-insensitively against every display name
//     of the form "<lang><major>.<minor>-<name>-<version>", treating "-",
//     "_" and "." as equal.
//  3. More than one matching attribute is an error; the override table is
//     the only way to settle an ambiguity.
//
// Requested extras are checked individually with a [registry.Prober].
package matcher

import (
	"context"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/registry"
	"github.com/matzehuels/compkgs/pkg/requirement"
)

// DefaultLangPrefix is the display name prefix of Python packages in nixpkgs.
const DefaultLangPrefix = "python"

// Options configures a Matcher.
type Options struct {
	// PackageSet is the attribute path of the package namespace, e.g.
	// "home-assistant.python.pkgs". Resolved attributes are reported
	// relative to it.
	PackageSet string
	// LangPrefix precedes the interpreter version in display names.
	// Defaults to [DefaultLangPrefix].
	LangPrefix string
	// Overrides map requirement names to attributes below PackageSet.
	// Lookups are exact and case-sensitive.
	Overrides map[string]string
	Logger    *log.Logger
}

// Outcome is the result of resolving one requirement string.
type Outcome struct {
	Spec           requirement.Spec
	AttrPath       string   // Full attribute path; empty if unresolved
	Attr           string   // AttrPath relative to the package set
	Resolved       bool     // Whether the base package was found
	ExtrasResolved []string // "<attr>.optional-dependencies.<extra>" the package provides
	ExtrasMissing  []string // Same form, for extras the package lacks
	Override       bool     // Resolved through the override table
}

// Missing returns what the outcome leaves unmet: the package name when the
// package is unresolved, otherwise the missing extras.
func (o Outcome) Missing() []string {
	if !o.Resolved {
		return []string{o.Spec.Name}
	}
	return o.ExtrasMissing
}

// Matcher resolves requirements against a fixed registry snapshot. It is
// safe for sequential use; the index is never modified.
type Matcher struct {
	opts    Options
	prefix  string
	entries []registry.Entry
	prober  registry.Prober
	logger  *log.Logger
}

// New creates a Matcher over index. A nil prober reports every extra as
// missing.
func New(index *registry.Index, prober registry.Prober, opts Options) (*Matcher, error) {
	if index == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "matcher needs a registry index")
	}
	if err := errors.ValidateAttrPath(opts.PackageSet); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "package set")
	}
	if opts.LangPrefix == "" {
		opts.LangPrefix = DefaultLangPrefix
	}
	for name, attr := range opts.Overrides {
		if err := errors.ValidateAttrPath(attr); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "override for %q", name)
		}
	}
	if prober == nil {
		prober = registry.ProberFunc(func(context.Context, string, string) (bool, error) { return false, nil })
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Matcher{
		opts:    opts,
		prefix:  opts.PackageSet + ".",
		entries: index.Entries(),
		prober:  prober,
		logger:  logger,
	}, nil
}

// Resolve parses raw and looks up its package and extras. Malformed
// requirements, ambiguous matches and probe failures are returned as
// errors; an unknown package is a valid, unresolved Outcome.
func (m *Matcher) Resolve(ctx context.Context, raw string) (Outcome, error) {
	spec, err := requirement.Parse(raw)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Spec: spec}

	attrPath, override, err := m.Lookup(spec.Name)
	if err != nil {
		return Outcome{}, err
	}
	if attrPath == "" {
		m.logger.Debug("requirement unresolved", "name", spec.Name)
		return out, nil
	}
	out.AttrPath = attrPath
	out.Attr = strings.TrimPrefix(attrPath, m.prefix)
	out.Resolved = true
	out.Override = override

	for _, extra := range spec.Extras {
		extraAttr := registry.ExtraAttr(out.Attr, extra)
		ok, err := m.prober.HasExtra(ctx, attrPath, extra)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			out.ExtrasResolved = append(out.ExtrasResolved, extraAttr)
		} else {
			out.ExtrasMissing = append(out.ExtrasMissing, extraAttr)
		}
	}
	return out, nil
}

// Lookup returns the attribute path for a package name, or "" when nothing
// matches. The boolean reports whether the override table answered.
func (m *Matcher) Lookup(name string) (string, bool, error) {
	if attr, ok := m.opts.Overrides[name]; ok {
		return m.prefix + attr, true, nil
	}

	matches := make(map[string]bool)
	for _, candidate := range Candidates(name) {
		re, err := m.pattern(candidate)
		if err != nil {
			return "", false, err
		}
		for _, e := range m.entries {
			if re.MatchString(e.Name) {
				matches[e.AttrPath] = true
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		for attr := range matches {
			return attr, false, nil
		}
	}
	return "", false, errors.New(errors.ErrCodeAmbiguousMatch,
		"%s matches more than one package: %s", name, strings.Join(slices.Sorted(maps.Keys(matches)), ", "))
}

// Candidates returns the names searched for a requirement name: the name
// itself and, for "python-" or "python_" prefixed names, the name without
// the prefix.
func Candidates(name string) []string {
	out := []string{name}
	for _, p := range []string{"python-", "python_"} {
		if rest, ok := strings.CutPrefix(name, p); ok && rest != "" {
			out = append(out, rest)
			break
		}
	}
	return out
}

// Pattern returns the display name pattern for a candidate name. "-", "_"
// and "." are interchangeable, so "jaraco.abode" matches
// "python3.12-jaraco-abode-6.2.1". The trailing version qualifier keeps
// "pyserial" from matching "pyserial-asyncio".
func Pattern(lang, candidate string) string {
	var b strings.Builder
	b.WriteString(`(?i)^`)
	b.WriteString(regexp.QuoteMeta(lang))
	b.WriteString(`\d+\.\d+-`)
	for _, r := range candidate {
		if r == '-' || r == '_' || r == '.' {
			b.WriteString("[-_.]")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`-(?:\d|unstable-.*)`)
	return b.String()
}

func (m *Matcher) pattern(candidate string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(Pattern(m.opts.LangPrefix, candidate))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequirement, err, "package name %q", candidate)
	}
	return re, nil
}
