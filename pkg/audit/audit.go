// Package audit decides whether a packaged version falls behind the
// version a requirement pins.
//
// Versions are ordered by PEP 440, so pre-releases sort below their
// release ("1.0b1" < "1.0"). Packaged versions that are not PEP 440 (snapshot
// builds such as "unstable-2020-01-01") cannot be compared directly. For
// those, a floor table names a release the snapshot is known to be at least
// as new as:
//
//	a := audit.New(map[string]string{"gps3": "0.33.3"}, nil)
//	a.Check("gps3", "unstable-2017-11-01", "0.33.3") // not outdated
//	a.Check("gps3", "unstable-2017-11-01", "0.34.0") // outdated
//
// A snapshot without a floor is reported outdated, since nothing proves
// otherwise.
package audit

import (
	version "github.com/aquasecurity/go-pep440-version"
	"github.com/charmbracelet/log"
)

// Reason explains a [Result].
type Reason string

// Reasons reported by [Auditor.Check].
const (
	ReasonOlder             Reason = "older"              // current < wanted
	ReasonCurrent           Reason = "current"            // current >= wanted
	ReasonFloorOlder        Reason = "floor-older"        // unparseable current, floor < wanted
	ReasonFloorCurrent      Reason = "floor-current"      // unparseable current, floor >= wanted
	ReasonUnparseable       Reason = "unparseable"        // unparseable current, no usable floor
	ReasonWantedUnparseable Reason = "wanted-unparseable" // the pinned version itself is not PEP 440
)

// Result is the verdict for one package.
type Result struct {
	Outdated bool
	Reason   Reason
}

// Auditor compares packaged versions with wanted versions.
type Auditor struct {
	floors map[string]string
	logger *log.Logger
}

// New creates an Auditor. floors maps attribute names to the release their
// unparseable packaged version is known to be at least as new as.
func New(floors map[string]string, logger *log.Logger) *Auditor {
	if logger == nil {
		logger = log.Default()
	}
	return &Auditor{floors: floors, logger: logger}
}

// Check reports whether attr at version current is older than wanted.
func (a *Auditor) Check(attr, current, wanted string) Result {
	cur, err := version.Parse(current)
	if err != nil {
		a.logger.Warn("invalid version specifier", "attr", attr, "version", current)
		return a.checkFloor(attr, wanted)
	}
	want, err := version.Parse(wanted)
	if err != nil {
		a.logger.Warn("wanted version is not comparable", "attr", attr, "wanted", wanted)
		return Result{Reason: ReasonWantedUnparseable}
	}
	if cur.LessThan(want) {
		return Result{Outdated: true, Reason: ReasonOlder}
	}
	return Result{Reason: ReasonCurrent}
}

func (a *Auditor) checkFloor(attr, wanted string) Result {
	floorText, ok := a.floors[attr]
	if !ok {
		return Result{Outdated: true, Reason: ReasonUnparseable}
	}
	floor, err := version.Parse(floorText)
	if err != nil {
		a.logger.Warn("ignoring invalid version floor", "attr", attr, "floor", floorText)
		return Result{Outdated: true, Reason: ReasonUnparseable}
	}
	want, err := version.Parse(wanted)
	if err != nil {
		a.logger.Warn("wanted version is not comparable", "attr", attr, "wanted", wanted)
		return Result{Reason: ReasonWantedUnparseable}
	}
	if floor.LessThan(want) {
		return Result{Outdated: true, Reason: ReasonFloorOlder}
	}
	return Result{Reason: ReasonFloorCurrent}
}

// Newer reports whether version a sorts after version b. A parseable
// version is newer than an unparseable one; two unparseable versions are
// never newer than each other.
func Newer(a, b string) bool {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	switch {
	case errA != nil:
		return false
	case errB != nil:
		return true
	}
	return va.GreaterThan(vb)
}

// Valid reports whether v is a PEP 440 version.
func Valid(v string) bool {
	_, err := version.Parse(v)
	return err == nil
}
