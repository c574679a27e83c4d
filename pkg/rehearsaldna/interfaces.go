package rehearsaldna

import (
	"context"

	"github.com/himanishpuri/RehearsalDNA/internal/audio"
)

// SampleSource decodes an audio file into samples.
type SampleSource interface {
	Decode(ctx context.Context, path string) (*audio.Samples, error)
}

// Annotations stores user metadata about individual files. Lookups used
// during matching are best-effort.
type Annotations interface {
	ProvidedName(folder, filename string) (string, error)
	SetProvidedName(folder, filename, name string) error
	IsReferenceSong(folder, filename string) (bool, error)
	SetReferenceSong(folder, filename string, on bool) error
	ListFolder(folder string) ([]Annotation, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
