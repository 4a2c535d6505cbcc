package report

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/compkgs/pkg/audit"
	"github.com/matzehuels/compkgs/pkg/component"
	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/matcher"
	"github.com/matzehuels/compkgs/pkg/registry"
)

// Resolver resolves a single requirement string. *matcher.Matcher
// implements it.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (matcher.Outcome, error)
}

// Builder produces a [Report] from a component graph and a registry
// snapshot.
type Builder struct {
	Graph      *component.Graph
	Resolver   Resolver
	Index      *registry.Index // Source of packaged versions
	Auditor    *audit.Auditor
	Tested     map[string]bool // Components with an upstream test suite
	Version    string          // Upstream project version
	PackageSet string
	Logger     *log.Logger

	// OnComponent, if set, is called after each component is resolved.
	OnComponent func(done, total int, result ComponentResult)
}

// Build resolves every component in domain order. The first error aborts
// the run; unresolved requirements are recorded, not returned.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	if b.Graph == nil || b.Resolver == nil || b.Index == nil || b.Auditor == nil {
		return nil, errors.New(errors.ErrCodeInternal, "report builder is missing a collaborator")
	}
	logger := b.Logger
	if logger == nil {
		logger = log.Default()
	}

	domains := b.Graph.Domains()
	rep := &Report{
		RunID:      uuid.NewString(),
		Version:    b.Version,
		PackageSet: b.PackageSet,
		CreatedAt:  time.Now().UTC(),
		Components: make([]ComponentResult, 0, len(domains)),
	}

	outcomes := make(map[string]matcher.Outcome)
	outdated := make(map[string]Outdated)
	for i, domain := range domains {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reqs, err := b.Graph.Closure(domain)
		if err != nil {
			return nil, err
		}

		attrs := make(map[string]bool)
		extras := make(map[string]bool)
		missing := make(map[string]bool)
		for _, raw := range reqs {
			out, ok := outcomes[raw]
			if !ok {
				if out, err = b.Resolver.Resolve(ctx, raw); err != nil {
					return nil, fmt.Errorf("component %s: %w", domain, err)
				}
				outcomes[raw] = out
				if err := b.audit(out, outdated); err != nil {
					return nil, fmt.Errorf("component %s: %w", domain, err)
				}
			}

			if out.Resolved {
				attrs[out.Attr] = true
			}
			for _, e := range out.ExtrasResolved {
				extras[e] = true
			}
			for _, m := range out.Missing() {
				missing[m] = true
			}
		}

		result := ComponentResult{
			Domain:       domain,
			Requirements: reqs,
			Attrs:        slices.Sorted(maps.Keys(attrs)),
			ExtraAttrs:   slices.Sorted(maps.Keys(extras)),
			Missing:      slices.Sorted(maps.Keys(missing)),
			Tested:       b.Tested[domain],
		}
		rep.Components = append(rep.Components, result)
		if result.Supported() && result.Tested {
			rep.SupportedWithTests = append(rep.SupportedWithTests, domain)
		}
		logger.Debug("component resolved", "domain", domain, "attrs", len(result.Attrs), "missing", len(result.Missing))
		if b.OnComponent != nil {
			b.OnComponent(i+1, len(domains), result)
		}
	}

	for _, attr := range slices.Sorted(maps.Keys(outdated)) {
		rep.Outdated = append(rep.Outdated, outdated[attr])
	}
	rep.Summary = Summary{
		Total:              len(rep.Components),
		Supported:          len(rep.Components) - len(rep.Unsupported()),
		SupportedWithTests: len(rep.SupportedWithTests),
		Outdated:           len(rep.Outdated),
	}
	return rep, nil
}

// audit records out in outdated when the packaged version is behind. When
// several requirements pin the same package the highest wanted version is
// kept. A pinned version that is not PEP 440 cannot be compared and is a
// configuration error.
func (b *Builder) audit(out matcher.Outcome, outdated map[string]Outdated) error {
	if !out.Resolved {
		return nil
	}
	current := b.Index.Version(out.AttrPath)
	if current == "" {
		return nil
	}
	wanted := out.Spec.Version
	if !audit.Valid(wanted) {
		return errors.New(errors.ErrCodeInvalidRequirement, "requirement %q pins %q, which is not a PEP 440 version", out.Spec.Raw, wanted)
	}
	attr := registry.AttrName(out.AttrPath)
	res := b.Auditor.Check(attr, current, wanted)
	if !res.Outdated {
		return nil
	}
	if prev, ok := outdated[attr]; ok && !audit.Newer(wanted, prev.Wanted) {
		return nil
	}
	outdated[attr] = Outdated{Attr: attr, Current: current, Wanted: wanted, Reason: string(res.Reason)}
	return nil
}
