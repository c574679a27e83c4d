package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ReadWAV decodes an integer PCM WAV file of any common bit depth.
func ReadWAV(path string) (*Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeWAV(f)
}

func DecodeWAV(r io.ReadSeeker) (*Samples, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV audio format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing sample rate", ErrUnsupportedFormat)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, depth)
	}

	interleaved := make([]float64, len(buf.Data))
	scale := 1.0 / float64(int64(1)<<(depth-1))
	for i, v := range buf.Data {
		if depth == 8 {
			// 8-bit WAV is unsigned
			interleaved[i] = float64(v-128) / 128.0
			continue
		}
		interleaved[i] = float64(v) * scale
	}

	mono := downmix(interleaved, buf.Format.NumChannels)
	return &Samples{
		Mono:       mono,
		SampleRate: buf.Format.SampleRate,
	}, nil
}
