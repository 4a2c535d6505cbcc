package audit_test

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/audit"
)

func ExampleAuditor_Check() {
	a := audit.New(map[string]string{"gps3": "0.33.3"}, log.New(io.Discard))

	for _, c := range []struct{ attr, current, wanted string }{
		{"aiohue", "4.6.0", "4.7.1"},
		{"aiohttp", "3.9.1", "3.9.1"},
		{"gps3", "unstable-2017-11-01", "0.33.3"},
		{"gps3", "unstable-2017-11-01", "0.34.0"},
	} {
		r := a.Check(c.attr, c.current, c.wanted)
		fmt.Printf("%s %s: outdated=%v (%s)\n", c.attr, c.current, r.Outdated, r.Reason)
	}
	// Output:
	// aiohue 4.6.0: outdated=true (older)
	// aiohttp 3.9.1: outdated=false (current)
	// gps3 unstable-2017-11-01: outdated=false (floor-current)
	// gps3 unstable-2017-11-01: outdated=true (floor-older)
}
