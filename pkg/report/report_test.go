package report

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/audit"
	"github.com/matzehuels/compkgs/pkg/component"
	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/matcher"
	"github.com/matzehuels/compkgs/pkg/registry"
)

func testIndex() *registry.Index {
	return registry.NewIndex(
		registry.Entry{AttrPath: "ps.aiohttp", Name: "python3.12-aiohttp-3.9.1", Version: "3.9.1"},
		registry.Entry{AttrPath: "ps.gps3", Name: "python3.12-gps3-unstable-2017-11-01", Version: "unstable-2017-11-01"},
		registry.Entry{AttrPath: "ps.dup-a", Name: "python3.12-dup_a-1.0", Version: "1.0"},
		registry.Entry{AttrPath: "ps.dup_a", Name: "python3.12-dup-a-1.0", Version: "1.0"},
	)
}

func testBuilder(t *testing.T, manifests []component.Manifest) *Builder {
	t.Helper()
	logger := log.New(io.Discard)
	g, err := component.Build(manifests, component.BuildOptions{Logger: logger})
	if err != nil {
		t.Fatalf("Build graph: %v", err)
	}
	ix := testIndex()
	m, err := matcher.New(ix, nil, matcher.Options{PackageSet: "ps", Logger: logger})
	if err != nil {
		t.Fatalf("matcher.New: %v", err)
	}
	return &Builder{
		Graph:      g,
		Resolver:   m,
		Index:      ix,
		Auditor:    audit.New(nil, logger),
		Tested:     map[string]bool{"a": true, "c": true, "e": true},
		Version:    "2024.1.0",
		PackageSet: "ps",
		Logger:     logger,
	}
}

func testManifests() []component.Manifest {
	return []component.Manifest{
		{Domain: "a", Requirements: []string{"aiohttp==3.9.1"}, Dependencies: []string{"b"}},
		{Domain: "b", Requirements: []string{"foo==1.0"}, Dependencies: []string{"a"}},
		{Domain: "c", Requirements: []string{"aiohttp[speedups]==4.0"}},
		{Domain: "d", Requirements: []string{"aiohttp==3.10.0"}},
		{Domain: "e"},
		{Domain: "f", Requirements: []string{"gps3==0.34"}},
	}
}

func TestBuild(t *testing.T) {
	rep, err := testBuilder(t, testManifests()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if rep.RunID == "" || rep.Version != "2024.1.0" || rep.CreatedAt.IsZero() {
		t.Errorf("report metadata not set: %+v", rep)
	}

	want := map[string]ComponentResult{
		"a": {Attrs: []string{"aiohttp"}, Missing: []string{"foo"}},
		"b": {Attrs: []string{"aiohttp"}, Missing: []string{"foo"}},
		"c": {Attrs: []string{"aiohttp"}, Missing: []string{"aiohttp.optional-dependencies.speedups"}},
		"d": {Attrs: []string{"aiohttp"}},
		"e": {},
		"f": {Attrs: []string{"gps3"}},
	}
	var domains []string
	for _, c := range rep.Components {
		domains = append(domains, c.Domain)
		w := want[c.Domain]
		if !slices.Equal(c.Attrs, w.Attrs) || !slices.Equal(c.Missing, w.Missing) || len(c.ExtraAttrs) != 0 {
			t.Errorf("%s: attrs=%v extras=%v missing=%v, want attrs=%v missing=%v",
				c.Domain, c.Attrs, c.ExtraAttrs, c.Missing, w.Attrs, w.Missing)
		}
	}
	if !slices.Equal(domains, []string{"a", "b", "c", "d", "e", "f"}) {
		t.Errorf("components = %v, want sorted a..f", domains)
	}

	if !slices.Equal(rep.SupportedWithTests, []string{"e"}) {
		t.Errorf("SupportedWithTests = %v, want [e]", rep.SupportedWithTests)
	}
	if rep.Summary.Total != 6 || rep.Summary.Supported != 3 || rep.Summary.Outdated != 2 {
		t.Errorf("Summary = %+v", rep.Summary)
	}
	if got := rep.Summary.Percent(); got != 50 {
		t.Errorf("Percent = %v, want 50", got)
	}

	wantOutdated := []Outdated{
		{Attr: "aiohttp", Current: "3.9.1", Wanted: "4.0", Reason: string(audit.ReasonOlder)},
		{Attr: "gps3", Current: "unstable-2017-11-01", Wanted: "0.34", Reason: string(audit.ReasonUnparseable)},
	}
	if !slices.Equal(rep.Outdated, wantOutdated) {
		t.Errorf("Outdated = %+v, want %+v", rep.Outdated, wantOutdated)
	}
}

func TestBuild_ClosureRequirements(t *testing.T) {
	rep, err := testBuilder(t, testManifests()).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	a, ok := rep.Component("a")
	if !ok {
		t.Fatal("component a missing")
	}
	if want := []string{"aiohttp==3.9.1", "foo==1.0"}; !slices.Equal(a.Requirements, want) {
		t.Errorf("a.Requirements = %v, want %v", a.Requirements, want)
	}
	if _, ok := rep.Component("zz"); ok {
		t.Error("Component(zz) found")
	}
}

func TestBuild_EveryRequirementLandsOnce(t *testing.T) {
	rep, err := testBuilder(t, testManifests()).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range rep.Components {
		for _, attr := range c.Attrs {
			if slices.Contains(c.Missing, attr) {
				t.Errorf("%s: %s both resolved and missing", c.Domain, attr)
			}
		}
		for _, e := range c.ExtraAttrs {
			if slices.Contains(c.Missing, e) {
				t.Errorf("%s: extra %s both resolved and missing", c.Domain, e)
			}
		}
	}
}

func TestBuild_KeepsHighestWanted(t *testing.T) {
	for _, order := range [][]string{{"x", "y"}, {"y", "x"}} {
		manifests := []component.Manifest{
			{Domain: order[0], Requirements: []string{"aiohttp==5.0"}},
			{Domain: order[1], Requirements: []string{"aiohttp==4.0"}},
		}
		rep, err := testBuilder(t, manifests).Build(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(rep.Outdated) != 1 || rep.Outdated[0].Wanted != "5.0" {
			t.Errorf("order %v: Outdated = %+v, want wanted 5.0", order, rep.Outdated)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name      string
		manifests []component.Manifest
		code      errors.Code
	}{
		{"unknown dependency", []component.Manifest{{Domain: "a", Dependencies: []string{"ghost"}}}, errors.ErrCodeUnknownComponent},
		{"ambiguous", []component.Manifest{{Domain: "a", Requirements: []string{"dup-a==1.0"}}}, errors.ErrCodeAmbiguousMatch},
		{"malformed", []component.Manifest{{Domain: "a", Requirements: []string{"aiohttp>=3"}}}, errors.ErrCodeInvalidRequirement},
		{"pin not PEP 440", []component.Manifest{{Domain: "a", Requirements: []string{"aiohttp==latest"}}}, errors.ErrCodeInvalidRequirement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testBuilder(t, tt.manifests).Build(context.Background())
			if !errors.Is(err, tt.code) {
				t.Errorf("Build error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestBuild_UnpackagedPinNotChecked(t *testing.T) {
	manifests := []component.Manifest{{Domain: "a", Requirements: []string{"foo==latest"}}}
	rep, err := testBuilder(t, manifests).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := rep.Components[0].Missing; !slices.Equal(got, []string{"foo"}) {
		t.Errorf("Missing = %v, want [foo]", got)
	}
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testBuilder(t, testManifests()).Build(ctx); err == nil {
		t.Error("Build with canceled context succeeded")
	}
}

func TestBuild_OnComponent(t *testing.T) {
	b := testBuilder(t, testManifests())
	var calls []int
	b.OnComponent = func(done, total int, _ ComponentResult) {
		if total != 6 {
			t.Errorf("total = %d, want 6", total)
		}
		calls = append(calls, done)
	}
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(calls, []int{1, 2, 3, 4, 5, 6}) {
		t.Errorf("OnComponent calls = %v", calls)
	}
}

func TestReportJSON(t *testing.T) {
	rep, err := testBuilder(t, testManifests()).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := rep.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.RunID != rep.RunID || len(back.Components) != len(rep.Components) || back.Summary != rep.Summary {
		t.Errorf("round trip mismatch: %+v", back)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("ReadFile(missing) = %v, want FILE_NOT_FOUND", err)
	}
}
