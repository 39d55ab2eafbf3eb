// Package main compiles a name-keyed payout source into the id-indexed table
// the conductor loads at runtime.
//
// Usage:
//
//	build-payouts -source us.source.json -out content/payouts/us.json \
//	    -checks "Albany:Atlanta=30;Atlanta:Baltimore=21"
//
// The source lists the map's cities in map order and a payoutsByName object
// of per-city rows. The conductor picks the output up from data.payouts_dir
// as <map>.json. See content/payouts/README.md for the source format.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cory-johannsen/boxcars/internal/game/payout"
)

func main() {
	source := flag.String("source", "", "path to the name-keyed payout source JSON")
	out := flag.String("out", "", "path of the compiled payout table to write")
	checks := flag.String("checks", os.Getenv("BOXCARS_CHECKS"), `spot checks, "CityA:CityB=value;..." (defaults to $BOXCARS_CHECKS)`)
	flag.Parse()

	if *source == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: build-payouts -source <file> -out <file> [-checks <list>]")
		os.Exit(1)
	}

	start := time.Now()

	spot, err := payout.ParseSpotChecks(*checks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	src, err := payout.LoadSource(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	compiled, err := payout.Compile(src, spot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := payout.WriteCompiled(*out, compiled); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("compiled %d cities (%d spot checks) to %s in %s\n",
		len(compiled.Cities), len(spot), *out, time.Since(start).Round(time.Millisecond))
}
