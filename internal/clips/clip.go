package clips

import (
	"fmt"
	"os"
	"sort"

	"github.com/keagan/previewcut/internal/ffmpeg"
)

// VideoSource is the probed source of one run. It never changes during the run.
type VideoSource struct {
	Path     string
	Duration float64
	Width    int
	Height   int
	FPS      float64
	Codec    string
	Rotation int
	// Info keeps the full probe result for the sheet header
	Info *ffmpeg.VideoInfo
}

// Vertical reports whether the source is taller than wide
func (v VideoSource) Vertical() bool {
	return v.Height > v.Width
}

// CutPoint is one sampling position in the source
type CutPoint struct {
	// Index is 1-based and stays attached to everything derived from this point
	Index    int
	Fraction float64
	Seconds  float64
}

// Segment is a short clip extracted at a cut point
type Segment struct {
	Index    int
	Path     string
	Start    float64
	Duration float64
	Tagged   bool
}

// SortByIndex orders segments by cut point index, tagged copies after their source
func SortByIndex(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Index != segs[j].Index {
			return segs[i].Index < segs[j].Index
		}
		return !segs[i].Tagged && segs[j].Tagged
	})
}

// Variant names a playlist
type Variant string

const (
	VariantFull      Variant = "full"
	VariantGIFSubset Variant = "gif-subset"
	VariantSheet     Variant = "sheet"
)

// Playlist is an ordered list of segments for one artifact variant.
// Segments are always sorted by cut point index.
type Playlist struct {
	Variant  Variant
	Segments []Segment
}

// NewPlaylist copies segs into a playlist sorted by index
func NewPlaylist(v Variant, segs []Segment) Playlist {
	out := make([]Segment, len(segs))
	copy(out, segs)
	SortByIndex(out)
	return Playlist{Variant: v, Segments: out}
}

// Len returns the number of segments
func (p Playlist) Len() int {
	return len(p.Segments)
}

// Paths returns segment paths in playback order
func (p Playlist) Paths() []string {
	paths := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		paths[i] = s.Path
	}
	return paths
}

// Indexes returns the cut point indexes in playback order
func (p Playlist) Indexes() []int {
	idx := make([]int, len(p.Segments))
	for i, s := range p.Segments {
		idx[i] = s.Index
	}
	return idx
}

// Equal reports whether both playlists play the same files in the same order
func (p Playlist) Equal(o Playlist) bool {
	if len(p.Segments) != len(o.Segments) {
		return false
	}
	for i := range p.Segments {
		if p.Segments[i].Path != o.Segments[i].Path {
			return false
		}
	}
	return true
}

// WriteConcatList writes the playlist as a concat demuxer list file
func (p Playlist) WriteConcatList(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	if err := ffmpeg.WriteConcatList(f, p.Paths()); err != nil {
		f.Close()
		return fmt.Errorf("write concat list: %w", err)
	}
	return f.Close()
}

// Format is an artifact encoding
type Format string

const (
	FormatWebP Format = ffmpeg.FormatWebP
	FormatWebM Format = ffmpeg.FormatWebM
	FormatGIF  Format = ffmpeg.FormatGIF
)

// Formats lists every format in publishing order
var Formats = []Format{FormatWebP, FormatWebM, FormatGIF}

// Kind distinguishes single-strip previews from grid sheets
type Kind string

const (
	KindPreview       Kind = "preview"
	KindSheet         Kind = "sheet"
	KindSheetOriginal Kind = "sheet-original"
)

// Artifact is one rendered output. Path is where it was rendered (scratch),
// Target is where it is published.
type Artifact struct {
	Kind   Kind
	Format Format
	Path   string
	Target string
}
