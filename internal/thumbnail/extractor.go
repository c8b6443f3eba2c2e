package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	ffmpeg_go "github.com/u2takey/ffmpeg-go"
)

const (
	keySeek   = "ss"
	keyFrames = "vframes"
	keyFormat = "f"
	keyCodec  = "vcodec"
)

// Extractor produces a still image for a downloaded media file.
type Extractor interface {
	Extract(ctx context.Context, mediaPath string) ([]byte, error)
}

type errorWriter struct {
	lastWrite []byte
}

// ffmpeg-go sends you all output regardless if it is an error or not.
// Just track the last write so we can use it if there is an error
func (w *errorWriter) Write(p []byte) (n int, err error) {
	w.lastWrite = append(w.lastWrite[:0], p...)
	return len(p), nil
}

type ffmpegExtractor struct {
	seekSeconds float64
}

// NewExtractor grabs a single jpeg frame seekSeconds into the media using the
// ffmpeg binary found on the PATH.
func NewExtractor(seekSeconds float64) Extractor {
	if seekSeconds < 0 {
		seekSeconds = 0
	}

	return &ffmpegExtractor{seekSeconds: seekSeconds}
}

func (e *ffmpegExtractor) Extract(ctx context.Context, mediaPath string) ([]byte, error) {
	if _, err := os.Stat(mediaPath); err != nil {
		return nil, fmt.Errorf("cannot extract thumbnail: %w", err)
	}

	out, err := os.CreateTemp("", "mediapire-offline-thumb-*.jpg")
	if err != nil {
		return nil, err
	}

	outputPath := out.Name()
	out.Close()

	defer func() {
		err := os.Remove(outputPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Err(err).Msgf("failed to cleanup temporary thumbnail %s", outputPath)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &errorWriter{}
	err = ffmpeg_go.Input(mediaPath, ffmpeg_go.KwArgs{keySeek: e.seekSeconds}).
		Output(outputPath, ffmpeg_go.KwArgs{keyFrames: 1, keyFormat: "image2", keyCodec: "mjpeg"}).
		OverWriteOutput().
		WithErrorOutput(w).
		Silent(true).
		Run()
	if err != nil {
		return nil, fmt.Errorf("err: %w. %s", err, string(w.lastWrite))
	}

	b, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, err
	}

	// seeking past the end of short media yields no frame
	if len(b) == 0 {
		return nil, errors.New("ffmpeg produced an empty thumbnail")
	}

	return b, nil
}
