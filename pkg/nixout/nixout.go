// Package nixout writes a report as the Nix expression consumed by the
// home-assistant derivation (component-packages.nix):
//
//	{
//	  version = "2024.1.0";
//	  components = {
//	    "hue" = ps: with ps; [
//	      aiohue
//	    ];
//	    "zha" = ps: with ps; [
//	      zigpy
//	    ]
//	    ++ zigpy.optional-dependencies.ezsp; # missing inputs: bellows
//	  };
//	  # components listed in tests/components for which all dependencies are packaged
//	  supportedComponentsWithTests = [
//	    "hue"
//	  ];
//	}
//
// The output is deterministic: components and attributes are sorted. An
// external formatter (nixfmt) may reflow it afterwards.
package nixout

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/report"
)

// DefaultGenerator names the program in the file header.
const DefaultGenerator = "compkgs"

// Options configures the output.
type Options struct {
	Generator string // Program named in the header; defaults to [DefaultGenerator]
}

// Write renders rep to w.
func Write(w io.Writer, rep *report.Report, opts Options) error {
	gen := opts.Generator
	if gen == "" {
		gen = DefaultGenerator
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Generated by %s\n", gen)
	bw.WriteString("# Do not edit!\n\n")
	bw.WriteString("{\n")
	fmt.Fprintf(bw, "  version = %s;\n", quote(rep.Version))
	bw.WriteString("  components = {\n")
	for _, c := range rep.Components {
		fmt.Fprintf(bw, "    %s = ps: with ps; [", quote(c.Domain))
		for _, attr := range c.Attrs {
			fmt.Fprintf(bw, "\n      %s", attr)
		}
		bw.WriteString("\n    ]")
		for _, extra := range c.ExtraAttrs {
			fmt.Fprintf(bw, "\n    ++ %s", extra)
		}
		bw.WriteString(";")
		if len(c.Missing) > 0 {
			fmt.Fprintf(bw, " # missing inputs: %s", strings.Join(c.Missing, " "))
		}
		bw.WriteString("\n")
	}
	bw.WriteString("  };\n")
	bw.WriteString("  # components listed in tests/components for which all dependencies are packaged\n")
	bw.WriteString("  supportedComponentsWithTests = [\n")
	for _, domain := range rep.SupportedWithTests {
		fmt.Fprintf(bw, "    %s\n", quote(domain))
	}
	bw.WriteString("  ];\n")
	bw.WriteString("}\n")
	return bw.Flush()
}

// WriteFile renders rep to path. The file is replaced atomically.
func WriteFile(path string, rep *report.Report, opts Options) error {
	var buf bytes.Buffer
	if err := Write(&buf, rep, opts); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Format runs an external formatter on path, in place. The command is
// split on whitespace and path is appended as its last argument; an empty
// command does nothing.
func Format(ctx context.Context, command, path string) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(errors.ErrCodeFormatterFailed, err, "%s %s: %s", args[0], path, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// quote renders s as a Nix string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `${`, `\${`)
	return `"` + r.Replace(s) + `"`
}
