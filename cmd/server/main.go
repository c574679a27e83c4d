package main

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/store"
	"github.com/himanishpuri/RehearsalDNA/pkg/logger"
	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

var (
	port           int
	dbPath         string
	tempDir        string
	sampleRate     int
	algorithm      string
	threshold      float64
	referenceDir   string
	libraryRoots   string
	storeFile      string
	allowedOrigins string
)

func registerFlags(fs *flag.FlagSet) {
	fs.IntVar(&port, "port", getEnvIntOrDefault("REHEARSAL_PORT", 8080), "HTTP server port")
	fs.StringVar(&dbPath, "db", getEnvOrDefault("REHEARSAL_DB_PATH", "rehearsaldna.sqlite3"), "Path to the annotations SQLite database")
	fs.StringVar(&tempDir, "temp", getEnvOrDefault("REHEARSAL_TEMP_DIR", os.TempDir()), "Temporary directory")
	fs.IntVar(&sampleRate, "rate", getEnvIntOrDefault("REHEARSAL_SAMPLE_RATE", 22050), "Sample rate used when converting with ffmpeg")
	fs.StringVar(&algorithm, "algo", getEnvOrDefault("REHEARSAL_ALGORITHM", string(fingerprint.DefaultAlgorithm)), "Default fingerprint algorithm")
	fs.Float64Var(&threshold, "threshold", getEnvFloatOrDefault("REHEARSAL_THRESHOLD", 0.70), "Default match threshold")
	fs.StringVar(&referenceDir, "ref", os.Getenv("REHEARSAL_REFERENCE_DIR"), "Global reference folder")
	fs.StringVar(&libraryRoots, "roots", os.Getenv("REHEARSAL_LIBRARY_ROOTS"), "Library roots, separated by '"+string(filepath.ListSeparator)+"'")
	fs.StringVar(&storeFile, "store", getEnvOrDefault("REHEARSAL_STORE_FILE", store.DefaultFileName), "Name of the per-folder fingerprint file")
	fs.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
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

func main() {
	_ = godotenv.Load()
	registerFlags(flag.CommandLine)
	flag.Parse()

	log := logger.GetLogger()

	// Parse allowed origins
	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	algo, err := fingerprint.Parse(algorithm)
	if err != nil {
		log.Fatalf("Invalid algorithm: %v", err)
	}

	var roots []string
	for _, r := range strings.Split(libraryRoots, string(filepath.ListSeparator)) {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}

	engine, err := rehearsaldna.NewEngine(
		rehearsaldna.WithAnnotationsDBPath(dbPath),
		rehearsaldna.WithTempDir(tempDir),
		rehearsaldna.WithSampleRate(sampleRate),
		rehearsaldna.WithAlgorithm(algo),
		rehearsaldna.WithThreshold(threshold),
		rehearsaldna.WithGlobalReferenceFolder(referenceDir),
		rehearsaldna.WithLibraryRoots(roots...),
		rehearsaldna.WithStoreFileName(storeFile),
		rehearsaldna.WithLogger(log),
	)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	server := NewServer(engine, &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		AllowedOrigins: origins,
	})
	if err := server.Start(); err != nil {
		log.Errorf("Server failed: %v", err)
	}
}
