package artifact

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/keagan/previewcut/internal/ffmpeg"
	"golang.org/x/image/webp"
)

// Prober reads stream geometry for containers the image decoders cannot open
type Prober interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

// Dimensions returns the canvas size of a rendered artifact. WebP and GIF
// headers are decoded directly, everything else goes through the prober.
func Dimensions(ctx context.Context, path string, prober Prober) (int, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		return decodeConfig(path, webp.DecodeConfig)
	case ".gif":
		return decodeConfig(path, gif.DecodeConfig)
	}

	if prober == nil {
		return 0, 0, fmt.Errorf("no prober for %s", filepath.Base(path))
	}
	info, err := prober.ProbeVideo(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return info.Width, info.Height, nil
}

func decodeConfig(path string, decode func(io.Reader) (image.Config, error)) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s header: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}
