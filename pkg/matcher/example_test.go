package matcher_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/compkgs/pkg/matcher"
	"github.com/matzehuels/compkgs/pkg/registry"
)

func ExampleMatcher_Resolve() {
	index := registry.NewIndex(
		registry.Entry{AttrPath: "ps.aiohttp", Name: "python3.12-aiohttp-3.9.1", Version: "3.9.1"},
	)
	// Without a prober every requested extra is reported missing.
	m, err := matcher.New(index, nil, matcher.Options{PackageSet: "ps"})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	out, err := m.Resolve(context.Background(), "aiohttp[speedups]==3.9.1")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Attr:", out.Attr)
	fmt.Println("Resolved:", out.Resolved)
	fmt.Println("Missing:", out.Missing())
	// Output:
	// Attr: aiohttp
	// Resolved: true
	// Missing: [aiohttp.optional-dependencies.speedups]
}
