package rehearsaldna

import (
	"os"

	"github.com/himanishpuri/RehearsalDNA/internal/annotations"
	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/matcher"
	"github.com/himanishpuri/RehearsalDNA/internal/store"
)

// Config holds every engine setting. There is no process-wide state: two
// engines with different configs can run side by side.
type Config struct {
	Algorithm             fingerprint.Algorithm
	Threshold             float64
	GlobalReferenceFolder string
	// LibraryRoots are searched for folders holding a fingerprint store.
	LibraryRoots      []string
	StoreFileName     string
	AnnotationsDBPath string
	TempDir           string
	SampleRate        int
	Logger            Logger
	Decoder           SampleSource
	Annotations       Annotations
}

type Option func(*Config)

func WithAlgorithm(a fingerprint.Algorithm) Option {
	return func(c *Config) {
		c.Algorithm = a
	}
}

func WithThreshold(t float64) Option {
	return func(c *Config) {
		c.Threshold = t
	}
}

func WithGlobalReferenceFolder(dir string) Option {
	return func(c *Config) {
		c.GlobalReferenceFolder = dir
	}
}

func WithLibraryRoots(roots ...string) Option {
	return func(c *Config) {
		c.LibraryRoots = append(c.LibraryRoots, roots...)
	}
}

func WithStoreFileName(name string) Option {
	return func(c *Config) {
		c.StoreFileName = name
	}
}

func WithAnnotationsDBPath(path string) Option {
	return func(c *Config) {
		c.AnnotationsDBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithDecoder replaces the file decoder, mostly for tests.
func WithDecoder(d SampleSource) Option {
	return func(c *Config) {
		c.Decoder = d
	}
}

// WithAnnotations supplies an annotation store instead of opening the
// sqlite database. The engine does not close it.
func WithAnnotations(a Annotations) Option {
	return func(c *Config) {
		c.Annotations = a
	}
}

func defaultConfig() *Config {
	return &Config{
		Algorithm:         fingerprint.DefaultAlgorithm,
		Threshold:         matcher.DefaultThreshold,
		StoreFileName:     store.DefaultFileName,
		AnnotationsDBPath: annotations.DefaultDBFile,
		TempDir:           os.TempDir(),
		SampleRate:        22050,
		Logger:            nil,
	}
}
