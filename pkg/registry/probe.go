package registry

import (
	"context"
	"errors"
	"os/exec"
	"time"

	gocache "github.com/patrickmn/go-cache"

	pkgerrors "github.com/matzehuels/compkgs/pkg/errors"
)

// Prober answers whether a package exposes an optional feature set.
type Prober interface {
	HasExtra(ctx context.Context, attrPath, extra string) (bool, error)
}

// ProberFunc adapts a function to [Prober].
type ProberFunc func(ctx context.Context, attrPath, extra string) (bool, error)

// HasExtra calls f.
func (f ProberFunc) HasExtra(ctx context.Context, attrPath, extra string) (bool, error) {
	return f(ctx, attrPath, extra)
}

// ExtraAttr returns the attribute under which a package publishes the
// dependencies of extra.
func ExtraAttr(attr, extra string) string {
	return attr + ".optional-dependencies." + extra
}

// NixInstantiate probes extras by instantiating
// <attrPath>.optional-dependencies.<extra>: exit status 0 means the extra
// exists, any other exit status means it does not.
type NixInstantiate struct {
	Root   string // nixpkgs checkout
	Binary string // nix-instantiate executable; defaults to "nix-instantiate"
}

// HasExtra runs nix-instantiate. Failing to start the process is an error;
// a non-zero exit is a negative answer.
func (n NixInstantiate) HasExtra(ctx context.Context, attrPath, extra string) (bool, error) {
	target := ExtraAttr(attrPath, extra)
	if err := pkgerrors.ValidateAttrPath(target); err != nil {
		return false, err
	}
	bin := n.Binary
	if bin == "" {
		bin = "nix-instantiate"
	}

	err := exec.CommandContext(ctx, bin, n.Root, "-A", target).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return false, nil
	}
	return false, pkgerrors.Wrap(pkgerrors.ErrCodeProbeFailed, err, "probe %s", target)
}

// MemoProber remembers answers of an underlying Prober for the lifetime of
// a run. Several components often request the same extra.
type MemoProber struct {
	next  Prober
	cache *gocache.Cache
}

// NewMemoProber wraps next. Answers never expire.
func NewMemoProber(next Prober) *MemoProber {
	return &MemoProber{next: next, cache: gocache.New(gocache.NoExpiration, time.Hour)}
}

// HasExtra returns the remembered answer or asks the wrapped prober.
// Errors are not remembered.
func (m *MemoProber) HasExtra(ctx context.Context, attrPath, extra string) (bool, error) {
	key := ExtraAttr(attrPath, extra)
	if v, ok := m.cache.Get(key); ok {
		return v.(bool), nil
	}
	ok, err := m.next.HasExtra(ctx, attrPath, extra)
	if err != nil {
		return false, err
	}
	m.cache.Set(key, ok, gocache.NoExpiration)
	return ok, nil
}
