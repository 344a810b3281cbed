package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chazu/symtab/manifest"
	"github.com/chazu/symtab/vm/image"
	"github.com/chazu/symtab/vm/journal"
)

// handleJournalCommand processes the `symtab journal` subcommand.
// Usage:
//
//	symtab journal list        List snapshots, newest first
//	symtab journal show [ID]   Print the names of a snapshot (latest if omitted)
func handleJournalCommand(ctx context.Context, m *manifest.Manifest, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: symtab journal [list|show] ...")
		fmt.Fprintln(os.Stderr, "  list        List snapshots, newest first")
		fmt.Fprintln(os.Stderr, "  show [ID]   Print the names of a snapshot (latest if omitted)")
		return fmt.Errorf("missing journal subcommand")
	}

	j, err := journal.Open(ctx, m.JournalPath())
	if err != nil {
		return err
	}
	defer j.Close()

	switch args[0] {
	case "list":
		entries, err := j.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			created := time.Unix(0, e.Created).Format(time.RFC3339)
			fmt.Printf("%4d  %s  %s  symbols=%d counter=%d\n", e.Seq, e.ID, created, e.Symbols, e.Counter)
		}
	case "show":
		var snap *image.Snapshot
		if len(args) > 1 {
			snap, err = j.Get(ctx, args[1])
		} else {
			snap, err = j.Latest(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("# snapshot %s, counter %d\n", snap.ID, snap.Counter)
		for _, name := range snap.Names {
			fmt.Println(name)
		}
	default:
		return fmt.Errorf("unknown journal subcommand %q", args[0])
	}
	return nil
}
