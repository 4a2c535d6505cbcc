package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateDomain validates a component identifier taken from a manifest or
// the command line. Domains become directory names and keys in the
// generated Nix file, so they are restricted to a conservative alphabet.
func ValidateDomain(domain string) error {
	if domain == "" {
		return New(ErrCodeInvalidManifest, "component domain cannot be empty")
	}
	if len(domain) > 128 {
		return New(ErrCodeInvalidManifest, "component domain too long (max 128 characters)")
	}
	if !domainRegex.MatchString(domain) {
		return New(ErrCodeInvalidManifest, "invalid component domain: %q", domain)
	}
	return nil
}

var domainRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// ValidatePackageName validates a package name for safety and correctness.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No whitespace
//   - Maximum length of 256 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidRequirement, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidRequirement, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidRequirement, "package name contains invalid control characters")
		}
		if unicode.IsSpace(r) {
			return New(ErrCodeInvalidRequirement, "package name contains whitespace: %q", name)
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// attrPathRegex matches dotted Nix attribute paths.
var attrPathRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_'+-]*(\.[A-Za-z0-9_][A-Za-z0-9_'+-]*)*$`)

// ValidateAttrPath validates a Nix attribute path such as
// "home-assistant.python.pkgs.aiohttp" before it is handed to a subprocess.
func ValidateAttrPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "attribute path cannot be empty")
	}
	if !attrPathRegex.MatchString(path) {
		return New(ErrCodeInvalidInput, "invalid attribute path: %q", path)
	}
	return nil
}
