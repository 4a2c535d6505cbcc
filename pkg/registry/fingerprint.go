package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// DefaultFingerprintPaths are the parts of a nixpkgs checkout, relative to
// its root, that define the Home Assistant Python package set.
var DefaultFingerprintPaths = []string{
	"pkgs/development/python-modules",
	"pkgs/servers/home-assistant",
	"pkgs/top-level/python-packages.nix",
	"pkgs/top-level/python-aliases.nix",
}

// Fingerprint summarizes the state of paths below root: the relative name,
// size and modification time of every regular file. Editing, adding or
// removing a file changes the result, so a snapshot cached under a key
// containing it is never reused after the checkout changes.
//
// Files named in skip, such as the generated output that lives inside the
// checkout, are left out. Missing paths are recorded as missing rather than
// failing.
func Fingerprint(root string, paths []string, skip ...string) (string, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = true
		}
	}

	h := sha256.New()
	for _, p := range paths {
		base := filepath.Join(root, p)
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "%s\x00%d\x00%d\n", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
			return nil
		})
		switch {
		case os.IsNotExist(err):
			fmt.Fprintf(h, "%s\x00missing\n", filepath.ToSlash(p))
		case err != nil:
			return "", errors.Wrap(errors.ErrCodeRegistryDump, err, "fingerprint %s", base)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
