package matcher

import (
	"context"
	"regexp"
	"slices"
	"testing"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/registry"
)

func testIndex() *registry.Index {
	return registry.NewIndex(
		registry.Entry{AttrPath: "ps.aiohttp", Name: "python3.12-aiohttp-3.9.1", Version: "3.9.1"},
		registry.Entry{AttrPath: "ps.mpd2", Name: "python3.12-mpd2-3.1.1", Version: "3.1.1"},
		registry.Entry{AttrPath: "ps.pyserial", Name: "python3.12-pyserial-3.5", Version: "3.5"},
		registry.Entry{AttrPath: "ps.pyserial-asyncio", Name: "python3.12-pyserial-asyncio-0.6", Version: "0.6"},
		registry.Entry{AttrPath: "ps.gps3", Name: "python3.12-gps3-unstable-2017-11-01", Version: "unstable-2017-11-01"},
		registry.Entry{AttrPath: "ps.zha-quirks", Name: "python3.12-zha-quirks-0.0.100", Version: "0.0.100"},
		registry.Entry{AttrPath: "ps.pyturbojpeg", Name: "python3.12-PyTurboJPEG-1.7.5", Version: "1.7.5"},
		registry.Entry{AttrPath: "ps.foo-bar", Name: "python3.12-foo-bar-1.0", Version: "1.0"},
		registry.Entry{AttrPath: "ps.foo_bar", Name: "python3.12-foo_bar-2.0", Version: "2.0"},
		registry.Entry{AttrPath: "ps.python-baz", Name: "python3.12-python-baz-1.0", Version: "1.0"},
		registry.Entry{AttrPath: "ps.baz", Name: "python3.12-baz-1.0", Version: "1.0"},
		registry.Entry{AttrPath: "ps.jaraco-abode", Name: "python3.12-jaraco-abode-6.2.1", Version: "6.2.1"},
		registry.Entry{AttrPath: "ps.hello", Name: "hello-2.12", Version: "2.12"},
	)
}

func extrasProber(available ...string) registry.Prober {
	return registry.ProberFunc(func(_ context.Context, attrPath, extra string) (bool, error) {
		return slices.Contains(available, registry.ExtraAttr(attrPath, extra)), nil
	})
}

func newTestMatcher(t *testing.T, prober registry.Prober) *Matcher {
	t.Helper()
	m, err := New(testIndex(), prober, Options{
		PackageSet: "ps",
		Overrides:  map[string]string{"slackclient": "slack-sdk", "foo-bar": "foo-bar"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestResolve(t *testing.T) {
	m := newTestMatcher(t, extrasProber("ps.aiohttp.optional-dependencies.speedups"))

	tests := []struct {
		name     string
		raw      string
		attr     string
		resolved bool
		override bool
	}{
		{"exact", "aiohttp==3.9.1", "aiohttp", true, false},
		{"case insensitive", "PyTurboJPEG==1.7.5", "pyturbojpeg", true, false},
		{"underscore folds to hyphen", "zha_quirks==0.0.100", "zha-quirks", true, false},
		{"dot folds to hyphen", "jaraco.abode==6.2.1", "jaraco-abode", true, false},
		{"python prefix stripped", "python-mpd2==3.1", "mpd2", true, false},
		{"python underscore prefix stripped", "python_mpd2==3.1", "mpd2", true, false},
		{"unstable version", "gps3==0.33.3", "gps3", true, false},
		{"version qualifier required", "pyserial==3.5", "pyserial", true, false},
		{"url fragment", "https://github.com/x/y/archive/main.zip#aiohttp==3.9.1", "aiohttp", true, false},
		{"environment marker", `aiohttp==3.9.1; python_version<"3.13"`, "aiohttp", true, false},
		{"override wins over missing", "slackclient==2.5.0", "slack-sdk", true, true},
		{"override wins over ambiguity", "foo-bar==1.0", "foo-bar", true, true},
		{"not python package", "hello==2.12", "", false, false},
		{"unknown", "foo==1.0", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Resolve(context.Background(), tt.raw)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.raw, err)
			}
			if out.Resolved != tt.resolved || out.Attr != tt.attr || out.Override != tt.override {
				t.Errorf("Resolve(%q) = {Attr: %q, Resolved: %v, Override: %v}, want {%q, %v, %v}",
					tt.raw, out.Attr, out.Resolved, out.Override, tt.attr, tt.resolved, tt.override)
			}
			if tt.resolved && out.AttrPath != "ps."+tt.attr {
				t.Errorf("AttrPath = %q, want %q", out.AttrPath, "ps."+tt.attr)
			}
		})
	}
}

func TestResolve_UnresolvedIsMissing(t *testing.T) {
	m := newTestMatcher(t, nil)
	out, err := m.Resolve(context.Background(), "foo==1.0")
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Missing(); !slices.Equal(got, []string{"foo"}) {
		t.Errorf("Missing() = %v, want [foo]", got)
	}
}

func TestResolve_URLFragmentMatchesPlain(t *testing.T) {
	m := newTestMatcher(t, nil)
	a, err := m.Resolve(context.Background(), "https://x/y#aiohttp==2.0")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Resolve(context.Background(), "aiohttp==2.0")
	if err != nil {
		t.Fatal(err)
	}
	if a.AttrPath != b.AttrPath || a.Spec.Version != b.Spec.Version || a.Spec.Name != b.Spec.Name {
		t.Errorf("fragment outcome %+v differs from plain %+v", a, b)
	}
}

func TestResolve_Extras(t *testing.T) {
	m := newTestMatcher(t, extrasProber("ps.aiohttp.optional-dependencies.speedups"))
	out, err := m.Resolve(context.Background(), "aiohttp[speedups,brotli]==3.9.1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Resolved || out.Attr != "aiohttp" {
		t.Fatalf("base package not resolved: %+v", out)
	}
	if want := []string{"aiohttp.optional-dependencies.speedups"}; !slices.Equal(out.ExtrasResolved, want) {
		t.Errorf("ExtrasResolved = %v, want %v", out.ExtrasResolved, want)
	}
	if want := []string{"aiohttp.optional-dependencies.brotli"}; !slices.Equal(out.ExtrasMissing, want) {
		t.Errorf("ExtrasMissing = %v, want %v", out.ExtrasMissing, want)
	}
	if !slices.Equal(out.Missing(), out.ExtrasMissing) {
		t.Errorf("Missing() = %v, want extras", out.Missing())
	}
}

func TestResolve_ExtraOfUnresolvedPackageNotProbed(t *testing.T) {
	probed := false
	m := newTestMatcher(t, registry.ProberFunc(func(context.Context, string, string) (bool, error) {
		probed = true
		return true, nil
	}))
	out, err := m.Resolve(context.Background(), "foo[bar]==1.0")
	if err != nil {
		t.Fatal(err)
	}
	if out.Resolved || probed {
		t.Errorf("unresolved package probed for extras: %+v", out)
	}
	if !slices.Equal(out.Missing(), []string{"foo"}) {
		t.Errorf("Missing() = %v, want [foo]", out.Missing())
	}
}

func TestResolve_ProbeError(t *testing.T) {
	want := errors.New(errors.ErrCodeProbeFailed, "nix-instantiate not found")
	m := newTestMatcher(t, registry.ProberFunc(func(context.Context, string, string) (bool, error) {
		return false, want
	}))
	if _, err := m.Resolve(context.Background(), "aiohttp[speedups]==3.9.1"); !errors.Is(err, errors.ErrCodeProbeFailed) {
		t.Errorf("Resolve error = %v, want PROBE_FAILED", err)
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	m, err := New(testIndex(), nil, Options{PackageSet: "ps"})
	if err != nil {
		t.Fatal(err)
	}
	for _, raw := range []string{"foo-bar==1.0", "foo_bar==1.0", "python-baz==1.0"} {
		t.Run(raw, func(t *testing.T) {
			out, err := m.Resolve(context.Background(), raw)
			if !errors.Is(err, errors.ErrCodeAmbiguousMatch) {
				t.Errorf("Resolve(%q) = %+v, %v; want AMBIGUOUS_MATCH", raw, out, err)
			}
		})
	}
}

func TestResolve_InvalidRequirement(t *testing.T) {
	m := newTestMatcher(t, nil)
	for _, raw := range []string{"aiohttp>=3.9", "aiohttp", "==1.0"} {
		if _, err := m.Resolve(context.Background(), raw); !errors.Is(err, errors.ErrCodeInvalidRequirement) {
			t.Errorf("Resolve(%q) error = %v, want INVALID_REQUIREMENT", raw, err)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, Options{PackageSet: "ps"}); err == nil {
		t.Error("New with nil index should fail")
	}
	if _, err := New(testIndex(), nil, Options{PackageSet: ""}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("empty package set error = %v, want INVALID_CONFIG", err)
	}
	if _, err := New(testIndex(), nil, Options{PackageSet: "ps", Overrides: map[string]string{"x": "bad attr"}}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("bad override error = %v, want INVALID_CONFIG", err)
	}
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"aiohttp", []string{"aiohttp"}},
		{"python-mpd2", []string{"python-mpd2", "mpd2"}},
		{"python_mpd2", []string{"python_mpd2", "mpd2"}},
		{"pythonista", []string{"pythonista"}},
		{"python-", []string{"python-"}},
	}
	for _, tt := range tests {
		if got := Candidates(tt.name); !slices.Equal(got, tt.want) {
			t.Errorf("Candidates(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPattern(t *testing.T) {
	tests := []struct {
		candidate string
		name      string
		match     bool
	}{
		{"pyserial", "python3.12-pyserial-3.5", true},
		{"pyserial", "python3.12-pyserial-asyncio-0.6", false},
		{"zha-quirks", "python3.11-zha_quirks-0.0.1", true},
		{"a.b", "python3.12-a.b-1.0", true},
		{"a.b", "python3.12-axb-1.0", false},
		{"a.b", "python3.12-a-b-1.0", true},
		{"a-b", "python3.12-a.b-1.0", true},
		{"a+b", "python3.12-a+b-1.0", true},
		{"a+b", "python3.12-aab-1.0", false},
		{"gps3", "python3.12-gps3-unstable-2017-11-01", true},
		{"gps3", "python3.12-gps3-git", false},
		{"AIOHTTP", "python3.12-aiohttp-3.9.1", true},
		{"aiohttp", "aiohttp-3.9.1", false},
	}
	for _, tt := range tests {
		re := regexp.MustCompile(Pattern("python", tt.candidate))
		if got := re.MatchString(tt.name); got != tt.match {
			t.Errorf("Pattern(%q) match %q = %v, want %v", tt.candidate, tt.name, got, tt.match)
		}
	}
}
