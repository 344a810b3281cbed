// symtab CLI - inspect and exercise the runtime symbol table
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/symtab/manifest"
	"github.com/chazu/symtab/vm"
	"github.com/chazu/symtab/vm/image"
	"github.com/chazu/symtab/vm/journal"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	configDir := flag.String("config", ".", "Directory to search upward for symtab.toml")
	verbose := flag.Bool("v", false, "Verbose output")
	replay := flag.Bool("replay", false, "Restore the latest journal snapshot before running the command")
	checkpoint := flag.Bool("checkpoint", false, "Append a journal snapshot after running the command")
	interactive := flag.Bool("i", false, "Start interactive prompt")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: symtab [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  intern NAME...        Intern names and print their hashes\n")
		fmt.Fprintf(os.Stderr, "  lookup NAME...        Look names up without interning\n")
		fmt.Fprintf(os.Stderr, "  gensym [TAG]          Generate a fresh symbol\n")
		fmt.Fprintf(os.Stderr, "  stats                 Show table size and shape\n")
		fmt.Fprintf(os.Stderr, "  check                 Verify tree invariants\n")
		fmt.Fprintf(os.Stderr, "  dump                  Print names in tree pre-order\n")
		fmt.Fprintf(os.Stderr, "  stress [flags]        Intern concurrently and verify identities\n")
		fmt.Fprintf(os.Stderr, "  save FILE             Write a snapshot file\n")
		fmt.Fprintf(os.Stderr, "  restore FILE          Restore a snapshot file\n")
		fmt.Fprintf(os.Stderr, "  journal [list|show]   Inspect the snapshot journal\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  symtab intern foo bar foo          # foo is interned once\n")
		fmt.Fprintf(os.Stderr, "  symtab -replay -checkpoint gensym  # continue the journaled gensym sequence\n")
		fmt.Fprintf(os.Stderr, "  symtab stress -workers 64 -names 1000\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default(*configDir)
	}

	verbosity := m.Log.Verbosity
	if *verbose && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	st, err := vm.InitSymbols(m.Options())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if *replay {
		if err := replayJournal(ctx, st, m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	args := flag.Args()
	if *interactive || len(args) == 0 {
		runPrompt(st)
	} else if err := runCommand(ctx, st, m, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *checkpoint {
		if err := checkpointJournal(ctx, st, m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func runCommand(ctx context.Context, st *vm.SymbolTable, m *manifest.Manifest, args []string) error {
	switch args[0] {
	case "intern":
		for _, name := range args[1:] {
			sym, err := st.InternChecked([]byte(name))
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%#016x\n", sym, sym.Hash())
		}
	case "lookup":
		for _, name := range args[1:] {
			if sym, ok := st.LookupString(name); ok {
				fmt.Printf("%s\t%#016x\n", sym, sym.Hash())
			} else {
				fmt.Printf("%s\tnot found\n", name)
			}
		}
	case "gensym":
		if len(args) < 2 {
			fmt.Println(st.Gensym().Name())
			return nil
		}
		sym, err := st.TaggedGensymString(args[1])
		if err != nil {
			return err
		}
		fmt.Println(sym.Name())
	case "stats":
		printStats(st)
	case "check":
		if err := st.Check(); err != nil {
			return err
		}
		fmt.Printf("ok: %d symbols\n", st.Len())
	case "dump":
		st.Walk(func(sym *vm.Symbol) bool {
			fmt.Println(sym.Name())
			return true
		})
	case "stress":
		return runStress(st, args[1:])
	case "save":
		if len(args) < 2 {
			return fmt.Errorf("usage: symtab save FILE")
		}
		snap := image.Capture(st)
		if err := image.Save(args[1], snap); err != nil {
			return err
		}
		fmt.Printf("saved %d symbols, counter %d to %s\n", len(snap.Names), snap.Counter, args[1])
	case "restore":
		if len(args) < 2 {
			return fmt.Errorf("usage: symtab restore FILE")
		}
		snap, err := image.Load(args[1])
		if err != nil {
			return err
		}
		if err := image.Restore(st, snap); err != nil {
			return err
		}
		printStats(st)
	case "journal":
		return handleJournalCommand(ctx, m, args[1:])
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func printStats(st *vm.SymbolTable) {
	stats := st.Stats()
	fmt.Printf("Symbols:        %d\n", stats.Symbols)
	fmt.Printf("Max depth:      %d\n", stats.MaxDepth)
	fmt.Printf("Gensym counter: %d\n", stats.Counter)
	if stats.Arena != nil {
		fmt.Printf("Arena blocks:   %d\n", stats.Arena.Blocks)
		fmt.Printf("Name bytes:     %d\n", stats.Arena.NameBytes)
	}
}

// runPrompt interns each line read from stdin. Lines starting with ':'
// are commands.
func runPrompt(st *vm.SymbolTable) {
	fmt.Println("symtab prompt. Enter a name to intern, :help for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			sym, err := internLine(st, line)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Printf("%s\t%#016x\n", sym, sym.Hash())
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case ":help", ":h", ":?":
			fmt.Println("  NAME          intern NAME")
			fmt.Println("  :lookup NAME  look NAME up without interning")
			fmt.Println("  :gensym [TAG] generate a fresh symbol")
			fmt.Println("  :stats        show table stats")
			fmt.Println("  :quit         exit")
		case ":lookup":
			if len(fields) < 2 {
				fmt.Println("usage: :lookup NAME")
				continue
			}
			if sym, ok := st.LookupString(fields[1]); ok {
				fmt.Printf("%s\t%#016x\n", sym, sym.Hash())
			} else {
				fmt.Println("not found")
			}
		case ":gensym":
			if len(fields) > 1 {
				sym, err := st.TaggedGensymString(fields[1])
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					continue
				}
				fmt.Println(sym.Name())
			} else {
				fmt.Println(st.Gensym().Name())
			}
		case ":stats":
			printStats(st)
		case ":quit", ":q":
			return
		default:
			fmt.Printf("unknown command %s\n", fields[0])
		}
	}
}

// internLine interns a name typed at the prompt. Stdin is untrusted, so
// embedded 0 bytes are rejected.
func internLine(st *vm.SymbolTable, line string) (*vm.Symbol, error) {
	return st.InternChecked([]byte(line))
}

func replayJournal(ctx context.Context, st *vm.SymbolTable, m *manifest.Manifest) error {
	j, err := journal.Open(ctx, m.JournalPath())
	if err != nil {
		return err
	}
	defer j.Close()

	snap, err := j.Latest(ctx)
	if errors.Is(err, journal.ErrNoSnapshot) {
		fmt.Fprintf(os.Stderr, "journal %s is empty, nothing to replay\n", j.Path())
		return nil
	}
	if err != nil {
		return err
	}
	return image.Restore(st, snap)
}

func checkpointJournal(ctx context.Context, st *vm.SymbolTable, m *manifest.Manifest) error {
	j, err := journal.Open(ctx, m.JournalPath())
	if err != nil {
		return err
	}
	defer j.Close()

	snap := image.Capture(st)
	if err := j.Append(ctx, snap); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "checkpoint %s: %d symbols, counter %d\n", snap.ID, len(snap.Names), snap.Counter)
	return nil
}
