package component

import (
	"slices"
	"testing"

	"github.com/matzehuels/compkgs/pkg/errors"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`{
  "domain": "hue",
  "name": "Philips Hue",
  "codeowners": ["@balloob"],
  "requirements": ["aiohue==4.7.1"],
  "dependencies": ["http"],
  "after_dependencies": ["zeroconf"],
  "iot_class": "local_push"
}`)

	m, err := ParseManifest("hue", data)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if m.Domain != "hue" || m.Name != "Philips Hue" {
		t.Errorf("got domain=%q name=%q", m.Domain, m.Name)
	}
	if !slices.Equal(m.Requirements, []string{"aiohue==4.7.1"}) {
		t.Errorf("Requirements = %v", m.Requirements)
	}
	if !slices.Equal(m.Deps(), []string{"http", "zeroconf"}) {
		t.Errorf("Deps() = %v", m.Deps())
	}
	if m.Disabled {
		t.Error("Disabled = true, want false")
	}
}

func TestParseManifest_Disabled(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		want       bool
		wantReason string
	}{
		{"reason string", `{"domain": "x", "disabled": "Dependency conflicts"}`, true, "Dependency conflicts"},
		{"empty string", `{"domain": "x", "disabled": ""}`, false, ""},
		{"bool true", `{"domain": "x", "disabled": true}`, true, ""},
		{"bool false", `{"domain": "x", "disabled": false}`, false, ""},
		{"null", `{"domain": "x", "disabled": null}`, false, ""},
		{"absent", `{"domain": "x"}`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest("x", []byte(tt.data))
			if err != nil {
				t.Fatalf("ParseManifest failed: %v", err)
			}
			if m.Disabled != tt.want || m.DisabledReason != tt.wantReason {
				t.Errorf("Disabled = %v (%q), want %v (%q)", m.Disabled, m.DisabledReason, tt.want, tt.wantReason)
			}
		})
	}
}

func TestParseManifest_DomainFromDir(t *testing.T) {
	m, err := ParseManifest("backup", []byte(`{"requirements": []}`))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if m.Domain != "backup" {
		t.Errorf("Domain = %q, want backup", m.Domain)
	}
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		data string
	}{
		{"invalid json", "x", `{`},
		{"domain mismatch", "x", `{"domain": "y"}`},
		{"invalid domain", "", `{"domain": "Bad-Domain"}`},
		{"no domain", "", `{}`},
		{"disabled wrong type", "x", `{"domain": "x", "disabled": 3}`},
		{"requirements wrong type", "x", `{"domain": "x", "requirements": "foo==1.0"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(tt.dir, []byte(tt.data))
			if !errors.Is(err, errors.ErrCodeInvalidManifest) {
				t.Errorf("ParseManifest error = %v, want INVALID_MANIFEST", err)
			}
		})
	}
}
