package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/store"
	"github.com/himanishpuri/RehearsalDNA/pkg/logger"
	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

// Global flags
var (
	dbPath       string
	tempDir      string
	sampleRate   int
	algorithm    string
	threshold    float64
	referenceDir string
	libraryRoots string
	storeFile    string
	verbose      bool
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
)

func registerGlobalFlags() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("REHEARSAL_DB_PATH", "rehearsaldna.sqlite3"), "Path to the annotations SQLite database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("REHEARSAL_TEMP_DIR", os.TempDir()), "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", getEnvIntOrDefault("REHEARSAL_SAMPLE_RATE", 22050), "Sample rate used when converting with ffmpeg")
	flag.StringVar(&algorithm, "algo", getEnvOrDefault("REHEARSAL_ALGORITHM", string(fingerprint.DefaultAlgorithm)), "Fingerprint algorithm used for matching")
	flag.Float64Var(&threshold, "threshold", getEnvFloatOrDefault("REHEARSAL_THRESHOLD", 0.70), "Minimum weighted similarity for a match")
	flag.StringVar(&referenceDir, "ref", os.Getenv("REHEARSAL_REFERENCE_DIR"), "Global reference folder")
	flag.StringVar(&libraryRoots, "roots", os.Getenv("REHEARSAL_LIBRARY_ROOTS"), "Library roots searched for session folders, separated by '"+string(filepath.ListSeparator)+"'")
	flag.StringVar(&storeFile, "store", getEnvOrDefault("REHEARSAL_STORE_FILE", store.DefaultFileName), "Name of the per-folder fingerprint file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func splitRoots(s string) []string {
	var roots []string
	for _, r := range strings.Split(s, string(filepath.ListSeparator)) {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	return roots
}

// createEngine builds an engine from the global flags.
func createEngine() (*rehearsaldna.Engine, error) {
	algo, err := fingerprint.Parse(algorithm)
	if err != nil {
		return nil, err
	}
	return rehearsaldna.NewEngine(
		rehearsaldna.WithAnnotationsDBPath(dbPath),
		rehearsaldna.WithTempDir(tempDir),
		rehearsaldna.WithSampleRate(sampleRate),
		rehearsaldna.WithAlgorithm(algo),
		rehearsaldna.WithThreshold(threshold),
		rehearsaldna.WithGlobalReferenceFolder(referenceDir),
		rehearsaldna.WithLibraryRoots(splitRoots(libraryRoots)...),
		rehearsaldna.WithStoreFileName(storeFile),
	)
}

func mustEngine() *rehearsaldna.Engine {
	eng, err := createEngine()
	if err != nil {
		fail("Failed to initialise engine: %v", err)
	}
	return eng
}

// fail reports the error and exits. Deferred calls in the caller do not run.
func fail(format string, args ...any) {
	red.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	logger.GetLogger().Errorf(format, args...)
	os.Exit(1)
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	registerGlobalFlags()
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger()
	log.SetColorize(!color.NoColor)
	if verbose {
		log.SetLevel(logger.DEBUG)
		log.SetShowCaller(true)
	} else if os.Getenv(logger.EnvLevel) == "" {
		log.SetLevel(logger.WARN)
	}

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	if err := run(command, args); err != nil {
		fail("%v", err)
	}
}

func run(command string, args []string) error {
	switch command {
	case "generate":
		return handleGenerate(args)
	case "match":
		return handleMatch(args)
	case "match-folder":
		return handleMatchFolder(args)
	case "exclude":
		return handleExclude(args)
	case "reference":
		return handleReference(args)
	case "ignore":
		return handleIgnore(args)
	case "name":
		return handleName(args)
	case "refsong":
		return handleRefSong(args)
	case "list":
		return handleList(args)
	case "folders":
		return handleFolders()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	return nil
}

func printUsage() {
	fmt.Println("RehearsalDNA - match rehearsal recordings across sessions")
	fmt.Println("\nGlobal Options:")
	flag.PrintDefaults()
	fmt.Println("\nUsage:")
	fmt.Println("  rehearsaldna [global-options] generate [-algos a,b] [-missing] [-force] <folder> [files...]")
	fmt.Println("  rehearsaldna [global-options] match <folder> <filename>")
	fmt.Println("  rehearsaldna [global-options] match -file <audio_file>")
	fmt.Println("  rehearsaldna [global-options] match-folder <folder>")
	fmt.Println("  rehearsaldna [global-options] exclude <folder> <filename>")
	fmt.Println("  rehearsaldna [global-options] reference <folder>")
	fmt.Println("  rehearsaldna [global-options] ignore <folder>")
	fmt.Println("  rehearsaldna [global-options] name <folder> <filename> <name>")
	fmt.Println("  rehearsaldna [global-options] refsong [-off] <folder> <filename>")
	fmt.Println("  rehearsaldna [global-options] list <folder>")
	fmt.Println("  rehearsaldna [global-options] folders")
	fmt.Println("\nExamples:")
	fmt.Println("  # Fingerprint a session with every algorithm")
	fmt.Println("  rehearsaldna generate ~/band/2024-03-02")
	fmt.Println()
	fmt.Println("  # Name the files of a new session from earlier ones")
	fmt.Println("  rehearsaldna -roots ~/band -ref ~/band/masters match-folder ~/band/2024-03-09")
}
