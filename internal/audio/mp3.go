package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// ReadMP3 decodes an MP3 file. go-mp3 always yields 16-bit stereo frames.
func ReadMP3(path string) (*Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("reading MP3 frames: %w", err)
	}

	const scale = 1.0 / 32768.0
	interleaved := make([]float64, len(raw)/2)
	for i := range interleaved {
		interleaved[i] = float64(int16(binary.LittleEndian.Uint16(raw[2*i:]))) * scale
	}

	mono := downmix(interleaved, 2)
	return &Samples{
		Mono:       mono,
		SampleRate: dec.SampleRate(),
	}, nil
}
