package source

import (
	"os"
	"regexp"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// DefaultVersionPattern matches the version pin in
// pkgs/servers/home-assistant/default.nix.
const DefaultVersionPattern = `hassVersion = "([\d\.b]+)";`

// ReadPinnedVersion returns the first submatch of pattern in the file at
// path.
func ReadPinnedVersion(path, pattern string) (string, error) {
	if pattern == "" {
		pattern = DefaultVersionPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "version pattern")
	}
	if re.NumSubexp() < 1 {
		return "", errors.New(errors.ErrCodeInvalidConfig, "version pattern %q has no capture group", pattern)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(errors.ErrCodeFileNotFound, err, "version file")
		}
		return "", err
	}
	m := re.FindSubmatch(data)
	if m == nil {
		return "", errors.New(errors.ErrCodeNotFound, "no version pin in %s", path)
	}
	return string(m[1]), nil
}
