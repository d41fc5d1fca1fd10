package sheet

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/keagan/previewcut/pkg/util"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Header drawing constants
const (
	lineHeight   = 30
	headerMargin = 20
	keyX         = 20
	valueX       = 150
	fontSize     = 18
	narrowFont   = 16
	notAvailable = "N/A"
)

var headerBackground = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// HeaderOptions controls the header geometry
type HeaderOptions struct {
	Grid      int
	Vertical  bool
	BlackBars bool
	// FontFile replaces the built-in Go Regular face when set
	FontFile string
	// Title replaces the container title when set
	Title string
	// Date adds a Date row when set
	Date string
}

func (o HeaderOptions) narrow() bool {
	return o.Vertical && !o.BlackBars
}

// Width matches the width of the grid below the header
func (o HeaderOptions) Width() int {
	w, _ := CellSize(o.Vertical, o.BlackBars)
	return o.Grid * w
}

// FontSize is smaller on narrow sheets
func (o HeaderOptions) FontSize() float64 {
	if o.narrow() {
		return narrowFont
	}
	return fontSize
}

// BreakLimit is the longest value that fits on one line
func (o HeaderOptions) BreakLimit() int {
	switch {
	case o.Grid == 3 && o.narrow():
		return 75
	case o.Grid == 3:
		return 110
	case o.narrow():
		return 105
	default:
		return 130
	}
}

// Row is one key with its value split into display lines
type Row struct {
	Key   string
	Lines []string
}

// HeaderHeight is the pixel height needed to draw rows
func HeaderHeight(rows []Row) int {
	lines := 0
	for _, r := range rows {
		lines += len(r.Lines)
	}
	return lines*lineHeight + headerMargin
}

// BuildRows describes the source in header rows. Long names and titles are
// broken over several lines.
func BuildRows(info *ffmpeg.VideoInfo, checksum string, opts HeaderOptions) []Row {
	limit := opts.BreakLimit()

	title := opts.Title
	if title == "" {
		title = info.Title
	}
	if title == "" {
		title = notAvailable
	}
	if checksum == "" {
		checksum = notAvailable
	}

	rows := []Row{
		{Key: "File Name", Lines: breakValue(filepath.Base(info.FilePath), limit, ".", " ", "-")},
		{Key: "Title", Lines: breakValue(title, limit, " ")},
		{Key: "File Size", Lines: []string{fmt.Sprintf("%.2f MB", float64(info.Size)/(1024*1024))}},
		{Key: "Resolution", Lines: []string{fmt.Sprintf("%dx%d", info.Width, info.Height)}},
		{Key: "Duration", Lines: []string{util.FormatClock(info.Seconds())}},
		{Key: "Video", Lines: []string{videoDetails(info)}},
		{Key: "Audio", Lines: []string{audioDetails(info)}},
		{Key: "MD5", Lines: []string{strings.ToUpper(checksum)}},
	}
	if opts.Date != "" {
		rows = append(rows, Row{Key: "Date", Lines: []string{opts.Date}})
	}
	return rows
}

func videoDetails(info *ffmpeg.VideoInfo) string {
	codec := strings.ToUpper(info.VideoCodec)
	if codec == "" {
		codec = notAvailable
	}
	profile := info.VideoProfile
	if profile == "" {
		profile = notAvailable
	}
	fps := strconv.FormatFloat(util.Round(info.FPS, 2), 'f', -1, 64)
	return fmt.Sprintf("%s (%s) @ %d kbps, %s fps", codec, profile, kbps(info.VideoBitrate), fps)
}

func audioDetails(info *ffmpeg.VideoInfo) string {
	if !info.HasAudio {
		return notAvailable
	}
	codec := strings.ToUpper(info.AudioCodec)
	if codec == "AAC" && strings.Contains(strings.ToUpper(info.AudioProfile), "LC") {
		codec += " (LC)"
	}
	return fmt.Sprintf("%s (%dch) @ %d kbps", codec, info.AudioChannels, kbps(info.AudioBitrate))
}

func kbps(bitrate int64) int64 {
	return (bitrate + 500) / 1000
}

// breakValue splits s into lines no longer than limit, breaking at the last
// separator before the limit. Separators are tried in order. A space used as
// the break is dropped, other separators stay on the first line.
func breakValue(s string, limit int, seps ...string) []string {
	var lines []string
	rest := []rune(s)
	for len(rest) > limit {
		head := string(rest[:limit])
		cut := -1
		var sep string
		for _, sep = range seps {
			if i := strings.LastIndex(head, sep); i > 0 {
				cut = len([]rune(head[:i]))
				break
			}
		}
		if cut < 0 {
			break
		}
		if sep == " " {
			lines = append(lines, string(rest[:cut]))
			rest = rest[cut+1:]
		} else {
			lines = append(lines, string(rest[:cut+1]))
			rest = rest[cut+1:]
		}
	}
	return append(lines, string(rest))
}

// RenderHeader draws rows as white text on a grey canvas
func RenderHeader(rows []Row, opts HeaderOptions) (*image.NRGBA, error) {
	face, err := loadFace(opts.FontFile, opts.FontSize())
	if err != nil {
		return nil, err
	}
	defer face.Close()

	img := imaging.New(opts.Width(), HeaderHeight(rows), headerBackground)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()

	y := headerMargin / 2
	for _, r := range rows {
		for i, line := range r.Lines {
			baseline := y + ascent
			if i == 0 && strings.TrimSpace(r.Key) != "" {
				d.Dot = fixed.P(keyX, baseline)
				d.DrawString(r.Key + " :")
			}
			d.Dot = fixed.P(valueX, baseline)
			d.DrawString(line)
			y += lineHeight
		}
	}
	return img, nil
}

// WriteHeader renders rows to a PNG at path and returns the image height
func WriteHeader(path string, rows []Row, opts HeaderOptions) (int, error) {
	img, err := RenderHeader(rows, opts)
	if err != nil {
		return 0, err
	}
	if err := imaging.Save(img, path); err != nil {
		return 0, fmt.Errorf("save header image: %w", err)
	}
	return img.Bounds().Dy(), nil
}

func loadFace(fontFile string, size float64) (font.Face, error) {
	data := goregular.TTF
	if fontFile != "" {
		custom, err := os.ReadFile(fontFile)
		if err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
		data = custom
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// FileMD5 hashes the file at path
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
