package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/generator"
	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

func parseAlgorithms(list string) ([]fingerprint.Algorithm, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []fingerprint.Algorithm
	for _, part := range strings.Split(list, ",") {
		a, err := fingerprint.Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func handleGenerate(args []string) error {
	cmd := flag.NewFlagSet("generate", flag.ExitOnError)
	algos := cmd.String("algos", "", "Comma separated algorithms (default: all)")
	missing := cmd.Bool("missing", false, "Only compute algorithms a file does not have yet")
	force := cmd.Bool("force", false, "Recompute even when the file is unchanged")
	cmd.Parse(args)

	if cmd.NArg() < 1 {
		fmt.Println("Usage: rehearsaldna generate [-algos a,b] [-missing] [-force] <folder> [files...]")
		os.Exit(1)
	}
	selected, err := parseAlgorithms(*algos)
	if err != nil {
		return err
	}

	req := rehearsaldna.GenerateRequest{
		Folder:     cmd.Arg(0),
		Files:      cmd.Args()[1:],
		Algorithms: selected,
		Force:      *force,
	}
	if *missing {
		req.Policy = rehearsaldna.MissingAlgorithms
	}

	eng := mustEngine()
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	task, err := eng.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to start generation: %w", err)
	}
	_, total := task.Progress()

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Fingerprinting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)

	var failures []generator.Event
	for ev := range task.Events() {
		switch ev.Kind {
		case generator.EventFileFailed:
			failures = append(failures, ev)
			bar.Increment()
		case generator.EventProgress, generator.EventSkipped:
			bar.Increment()
		case generator.EventFinished:
			if ev.Status != generator.StatusCompleted {
				bar.Abort(false)
			}
		}
	}
	p.Wait()

	sum, _ := task.Wait(context.Background())
	for _, f := range failures {
		yellow.Printf("  skipped %s: %v\n", f.Filename, f.Err)
	}

	switch sum.Status {
	case generator.StatusCompleted:
		green.Printf("Done: %d fingerprinted, %d up to date, %d failed\n", sum.Processed, sum.Skipped, len(sum.Failed))
	case generator.StatusCancelled:
		yellow.Printf("Cancelled: %d fingerprinted before stopping (saved)\n", sum.Processed)
	default:
		return fmt.Errorf("generation failed: %w", sum.Err)
	}
	return nil
}

func printResult(query string, m *rehearsaldna.MatchResult) {
	if m == nil {
		yellow.Printf("%s: no match\n", query)
		return
	}
	fmt.Printf("%s -> %s  %s\n", query, bold.Sprint(m.ProvidedName), green.Sprintf("%.1f%%", m.RawSimilarity*100))
	fmt.Printf("   %s in %s\n", m.Filename, m.SourceFolder)
}

func handleMatch(args []string) error {
	cmd := flag.NewFlagSet("match", flag.ExitOnError)
	file := cmd.String("file", "", "Match a loose audio file instead of a fingerprinted one")
	cmd.Parse(args)

	eng := mustEngine()
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *file != "" {
		m, err := eng.MatchFile(ctx, *file, rehearsaldna.MatchQuery{})
		if err != nil {
			return fmt.Errorf("failed to match %s: %w", *file, err)
		}
		printResult(*file, m)
		return nil
	}

	if cmd.NArg() < 2 {
		fmt.Println("Usage: rehearsaldna match <folder> <filename>")
		os.Exit(1)
	}
	q := rehearsaldna.MatchQuery{Folder: cmd.Arg(0), Filename: cmd.Arg(1)}
	m, err := eng.FindMatch(ctx, q)
	if errors.Is(err, rehearsaldna.ErrNotFingerprinted) {
		return fmt.Errorf("%s has no %s fingerprint yet, run generate first: %w", q.Filename, eng.Config().Algorithm, err)
	}
	if err != nil {
		return fmt.Errorf("failed to match: %w", err)
	}
	printResult(q.Filename, m)
	return nil
}

func handleMatchFolder(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: rehearsaldna match-folder <folder>")
		os.Exit(1)
	}
	eng := mustEngine()
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	info := eng.Folder(args[0])
	results, err := eng.MatchFolder(ctx, rehearsaldna.MatchQuery{Folder: args[0]})
	if err != nil {
		return fmt.Errorf("failed to match folder: %w", err)
	}
	for _, f := range info.Files {
		if !f.Excluded {
			printResult(f.Filename, results[f.Filename])
		}
	}
	fmt.Printf("\n%d of %d files matched\n", len(results), matchable(info.Files))
	return nil
}

// matchable counts the fingerprinted files that take part in matching.
func matchable(files []rehearsaldna.FileInfo) int {
	n := 0
	for _, f := range files {
		if !f.Excluded {
			n++
		}
	}
	return n
}

func toggleOutput(what string, on bool, err error) error {
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	state := red.Sprint("off")
	if on {
		state = green.Sprint("on")
	}
	fmt.Printf("%s: %s\n", what, state)
	return nil
}

func handleExclude(args []string) error {
	if len(args) < 2 {
		fmt.Println("Usage: rehearsaldna exclude <folder> <filename>")
		os.Exit(1)
	}
	eng := mustEngine()
	defer eng.Close()
	on, err := eng.ToggleExclusion(args[0], args[1])
	return toggleOutput("excluded "+args[1], on, err)
}

func handleReference(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: rehearsaldna reference <folder>")
		os.Exit(1)
	}
	eng := mustEngine()
	defer eng.Close()
	on, err := eng.ToggleReferenceFolder(args[0])
	return toggleOutput("reference folder", on, err)
}

func handleIgnore(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: rehearsaldna ignore <folder>")
		os.Exit(1)
	}
	eng := mustEngine()
	defer eng.Close()
	on, err := eng.ToggleIgnoreFolder(args[0])
	return toggleOutput("ignore fingerprints", on, err)
}

func handleName(args []string) error {
	if len(args) < 3 {
		fmt.Println("Usage: rehearsaldna name <folder> <filename> <name>")
		os.Exit(1)
	}
	eng := mustEngine()
	defer eng.Close()
	name := strings.Join(args[2:], " ")
	if err := eng.SetProvidedName(args[0], args[1], name); err != nil {
		return fmt.Errorf("failed to set name: %w", err)
	}
	green.Printf("%s is now %q\n", args[1], name)
	return nil
}

func handleRefSong(args []string) error {
	cmd := flag.NewFlagSet("refsong", flag.ExitOnError)
	off := cmd.Bool("off", false, "Clear the reference song flag")
	cmd.Parse(args)
	if cmd.NArg() < 2 {
		fmt.Println("Usage: rehearsaldna refsong [-off] <folder> <filename>")
		os.Exit(1)
	}
	eng := mustEngine()
	defer eng.Close()
	err := eng.SetReferenceSong(cmd.Arg(0), cmd.Arg(1), !*off)
	return toggleOutput("reference song "+cmd.Arg(1), !*off, err)
}

func handleList(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: rehearsaldna list <folder>")
		os.Exit(1)
	}
	eng := mustEngine()
	defer eng.Close()

	info := eng.Folder(args[0])
	var flags []string
	if info.IsGlobalReference {
		flags = append(flags, "global reference")
	}
	if info.IsReferenceFolder {
		flags = append(flags, "reference")
	}
	if info.IgnoreFingerprints {
		flags = append(flags, "ignored")
	}
	bold.Printf("%s", info.Folder)
	if len(flags) > 0 {
		fmt.Printf(" [%s]", strings.Join(flags, ", "))
	}
	fmt.Println()

	if len(info.Files) == 0 {
		fmt.Println("\nNo fingerprints yet")
		return nil
	}
	fmt.Println()
	for i, f := range info.Files {
		d := time.Duration(f.DurationMs) * time.Millisecond
		line := fmt.Sprintf("%3d. %-32s %6s  %8s  %s", i+1, f.Filename,
			fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60),
			humanize.Bytes(uint64(f.Size)), strings.Join(f.Algorithms, ","))
		switch {
		case f.Excluded:
			red.Println(line + "  (excluded)")
		case f.ProvidedName != "":
			fmt.Println(line + "  " + green.Sprint(f.ProvidedName))
		default:
			fmt.Println(line)
		}
	}
	return nil
}

func handleFolders() error {
	eng := mustEngine()
	defer eng.Close()

	folders, err := eng.DiscoverFolders()
	if err != nil {
		return fmt.Errorf("failed to discover folders: %w", err)
	}
	if len(folders) == 0 {
		fmt.Println("No fingerprinted folders under the library roots (set -roots)")
		return nil
	}
	sort.Strings(folders)
	for _, f := range folders {
		info := eng.Folder(f)
		fmt.Printf("%-60s %d files\n", f, len(info.Files))
	}
	return nil
}
