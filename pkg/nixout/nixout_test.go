package nixout

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/report"
)

func testReport() *report.Report {
	return &report.Report{
		Version: "2024.1.0",
		Components: []report.ComponentResult{
			{Domain: "default_config"},
			{Domain: "hue", Attrs: []string{"aiohue"}},
			{
				Domain:     "zha",
				Attrs:      []string{"bellows", "zigpy"},
				ExtraAttrs: []string{"zigpy.optional-dependencies.ezsp", "zigpy.optional-dependencies.znp"},
				Missing:    []string{"pyserial-asyncio-fast", "zigpy.optional-dependencies.xbee"},
			},
		},
		SupportedWithTests: []string{"default_config", "hue"},
	}
}

const golden = `# Generated by compkgs
# Do not edit!

{
  version = "2024.1.0";
  components = {
    "default_config" = ps: with ps; [
    ];
    "hue" = ps: with ps; [
      aiohue
    ];
    "zha" = ps: with ps; [
      bellows
      zigpy
    ]
    ++ zigpy.optional-dependencies.ezsp
    ++ zigpy.optional-dependencies.znp; # missing inputs: pyserial-asyncio-fast zigpy.optional-dependencies.xbee
  };
  # components listed in tests/components for which all dependencies are packaged
  supportedComponentsWithTests = [
    "default_config"
    "hue"
  ];
}
`

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testReport(), Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != golden {
		t.Errorf("Write output mismatch\ngot:\n%s\nwant:\n%s", got, golden)
	}
}

func TestWrite_Generator(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, &report.Report{Version: "1"}, Options{Generator: "update-component-packages"}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("# Generated by update-component-packages\n")) {
		t.Errorf("header = %q", buf.String())
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"hue":      `"hue"`,
		`a"b`:      `"a\"b"`,
		`a\b`:      `"a\\b"`,
		"${x}":     `"\${x}"`,
		"2024.1.0": `"2024.1.0"`,
	}
	for in, want := range tests {
		if got := quote(in); got != want {
			t.Errorf("quote(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "component-packages.nix")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, testReport(), Options{}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != golden {
		t.Errorf("file content mismatch:\n%s", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFormat(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "out.nix")
	if err := os.WriteFile(path, []byte("{ }"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := Format(ctx, "", path); err != nil {
		t.Errorf("empty formatter: %v", err)
	}

	touch := filepath.Join(dir, "fmt.sh")
	script := "#!/bin/sh\necho formatted > \"$1\"\n"
	if err := os.WriteFile(touch, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	if err := Format(ctx, touch, path); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "formatted\n" {
		t.Errorf("formatter did not run, content %q", data)
	}

	if err := Format(ctx, "false", path); !errors.Is(err, errors.ErrCodeFormatterFailed) {
		t.Errorf("failing formatter = %v, want FORMATTER_FAILED", err)
	}
}
