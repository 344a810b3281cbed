package main

import (
	"flag"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/symtab/vm"
)

// runStress has many goroutines intern an overlapping set of names and
// verifies that every goroutine observed the same symbol for each name.
func runStress(st *vm.SymbolTable, args []string) error {
	fs := flag.NewFlagSet("stress", flag.ContinueOnError)
	workers := fs.Int("workers", 32, "Concurrent goroutines")
	names := fs.Int("names", 1000, "Distinct names shared by all workers")
	rounds := fs.Int("rounds", 4, "Times each worker interns the full set")
	prefix := fs.String("prefix", "stress", "Name prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workers < 1 || *names < 1 || *rounds < 1 {
		return fmt.Errorf("stress: workers, names and rounds must be positive")
	}

	keys := make([][]byte, *names)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("%s-%d", *prefix, i))
	}

	before := st.Len()
	seen := make([][]*vm.Symbol, *workers)
	start := time.Now()

	var g errgroup.Group
	for w := 0; w < *workers; w++ {
		g.Go(func() error {
			out := make([]*vm.Symbol, len(keys))
			for r := 0; r < *rounds; r++ {
				for i := range keys {
					k := (i + w*7 + r) % len(keys)
					sym, err := st.Intern(keys[k])
					if err != nil {
						return err
					}
					if out[k] != nil && out[k] != sym {
						return fmt.Errorf("stress: worker %d saw two symbols for %q", w, keys[k])
					}
					out[k] = sym
				}
			}
			seen[w] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	for w := 1; w < *workers; w++ {
		for k := range keys {
			if seen[w][k] != seen[0][k] {
				return fmt.Errorf("stress: workers 0 and %d disagree on %q", w, keys[k])
			}
		}
	}
	if err := st.Check(); err != nil {
		return err
	}

	ops := *workers * *names * *rounds
	fmt.Printf("%d interns in %v (%.0f ops/s), %d new symbols\n",
		ops, elapsed, float64(ops)/elapsed.Seconds(), st.Len()-before)
	printStats(st)
	return nil
}
