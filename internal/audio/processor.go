package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/himanishpuri/RehearsalDNA/pkg/utils"
)

type ConvertWAVConfig struct {
	SampleRate int // e.g. 11025, 22050, 44100
}

// ConvertToMonoWAV converts any ffmpeg-readable file to a mono 16-bit PCM WAV
// inside outputDir and returns its path. The caller removes the file.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}

	if _, err := os.Stat(inputPath); err != nil {
		return "", err
	}
	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	out, err := os.CreateTemp(outputDir, utils.Stem(inputPath)+"-*.wav")
	if err != nil {
		return "", err
	}
	outputPath := out.Name()
	out.Close()

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1", // mono
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if combined, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed on %s: %v (%s)", filepath.Base(inputPath), err, combined)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		os.Remove(outputPath)
		return "", err
	}

	return outputPath, nil
}
