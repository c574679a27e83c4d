package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoSamples         = errors.New("audio contains no samples")
)

// Samples is a decoded recording downmixed to mono.
type Samples struct {
	Mono       []float64
	SampleRate int
}

// DurationMs is the length of the recording in milliseconds.
func (s *Samples) DurationMs() int64 {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	return int64(len(s.Mono)) * 1000 / int64(s.SampleRate)
}

// Logger is the subset of pkg/logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type DecoderConfig struct {
	// TempDir receives intermediate WAV files produced by ffmpeg.
	TempDir string
	// SampleRate is the rate ffmpeg resamples to. Native WAV and MP3 keep
	// their own rate.
	SampleRate int
	// ConvertTimeout bounds a single ffmpeg run when ctx has no deadline.
	ConvertTimeout time.Duration
	Logger         Logger
}

// FileDecoder decodes WAV and MP3 natively and everything else through ffmpeg.
type FileDecoder struct {
	cfg DecoderConfig
}

func NewFileDecoder(cfg DecoderConfig) *FileDecoder {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}
	if cfg.ConvertTimeout == 0 {
		cfg.ConvertTimeout = 2 * time.Minute
	}
	return &FileDecoder{cfg: cfg}
}

// Decode reads path into normalised float samples in [-1, 1].
func (d *FileDecoder) Decode(ctx context.Context, path string) (*Samples, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		s   *Samples
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		s, err = ReadWAV(path)
		if errors.Is(err, ErrUnsupportedFormat) {
			d.debugf("native WAV decode of %s failed (%v), converting with ffmpeg", path, err)
			s, err = d.decodeViaFFmpeg(ctx, path)
		}
	case ".mp3":
		s, err = ReadMP3(path)
	default:
		s, err = d.decodeViaFFmpeg(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if len(s.Mono) == 0 {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), ErrNoSamples)
	}
	return s, nil
}

func (d *FileDecoder) decodeViaFFmpeg(ctx context.Context, path string) (*Samples, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ConvertTimeout)
		defer cancel()
	}

	wavPath, err := ConvertToMonoWAV(ctx, path, d.cfg.TempDir, ConvertWAVConfig{SampleRate: d.cfg.SampleRate})
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	return ReadWAV(wavPath)
}

func (d *FileDecoder) debugf(format string, args ...any) {
	if d.cfg.Logger != nil {
		d.cfg.Logger.Debugf(format, args...)
	}
}

// downmix averages interleaved channels into mono.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
