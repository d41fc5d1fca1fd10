package sheet

import (
	"fmt"
	"math/rand"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
)

// Kind selects how segments are arranged on the sheet
type Kind string

const (
	KindStandard       Kind = "standard"
	KindEnlargedCorner Kind = "enlarged-corner"
)

// Valid reports whether k is a known layout
func (k Kind) Valid() bool {
	return k == KindStandard || k == KindEnlargedCorner
}

// cornerCells is how many extra cells the enlarged first segment covers
const cornerCells = 3

// Validate checks the segment count against the grid and the gif subset size.
// It runs before any external command.
func Validate(grid, segments, gifSize int, sheetEnabled bool) error {
	if gifSize <= 0 || gifSize > segments {
		return failure.Errorf(failure.Configuration, failure.StageConfig,
			"gif segment count %d must be between 1 and the segment count %d", gifSize, segments)
	}
	if !sheetEnabled {
		return nil
	}

	var lo, hi int
	switch grid {
	case 3:
		lo, hi = 9, 30
	case 4:
		lo, hi = 12, 28
	default:
		return failure.Errorf(failure.Configuration, failure.StageConfig, "grid width must be 3 or 4, got %d", grid)
	}
	if segments%grid != 0 || segments < lo || segments > hi {
		return failure.Errorf(failure.Configuration, failure.StageConfig,
			"grid width %d needs a multiple of %d segments between %d and %d, got %d", grid, grid, lo, hi, segments)
	}
	return nil
}

// CellSize returns the segment geometry for an orientation
func CellSize(vertical, blackBars bool) (int, int) {
	if vertical && !blackBars {
		return ffmpeg.SegmentNarrow, ffmpeg.SegmentWide
	}
	return ffmpeg.SegmentWide, ffmpeg.SegmentNarrow
}

// Layout is the geometry of one sheet
type Layout struct {
	Kind    Kind
	Grid    int
	Rows    int
	CellW   int
	CellH   int
	Padding int
	HeaderH int
}

// NewLayout sizes a layout for count cells
func NewLayout(kind Kind, grid, count, cellW, cellH, padding, headerH int) Layout {
	cells := count
	if kind == KindEnlargedCorner {
		cells += cornerCells
	}
	rows := (cells + grid - 1) / grid
	if kind == KindEnlargedCorner && rows < 2 {
		rows = 2
	}
	return Layout{
		Kind:    kind,
		Grid:    grid,
		Rows:    rows,
		CellW:   cellW,
		CellH:   cellH,
		Padding: padding,
		HeaderH: headerH,
	}
}

// Width is the sheet width
func (l Layout) Width() int {
	return l.Grid*l.CellW + (l.Grid+1)*l.Padding
}

// BodyHeight is the height of the segment area below the header
func (l Layout) BodyHeight() int {
	return l.Padding + l.Rows*(l.CellH+l.Padding)
}

// Height is the sheet height including the header
func (l Layout) Height() int {
	return l.HeaderH + l.Padding + l.Rows*(l.CellH+l.Padding)
}

// Placement puts one segment on the sheet body. Coordinates are relative to
// the top left of the body, below the header.
type Placement struct {
	Segment clips.Segment
	X, Y    int
	W, H    int
	Large   bool
}

// Tile converts p into an xstack tile
func (p Placement) Tile() ffmpeg.Tile {
	return ffmpeg.Tile{X: p.X, Y: p.Y, Width: p.W, Height: p.H, Scale: p.Large}
}

// Select picks the segments shown by a layout of kind. Standard layouts show
// every segment. The enlarged corner keeps the first and last segments and
// samples the middle down to what fits.
func Select(kind Kind, grid int, segs []clips.Segment, rng *rand.Rand) []clips.Segment {
	out := make([]clips.Segment, len(segs))
	copy(out, segs)
	clips.SortByIndex(out)

	capacity := grid*grid - cornerCells
	if kind != KindEnlargedCorner || len(out) <= capacity {
		return out
	}

	middle := out[1 : len(out)-1]
	picked := []clips.Segment{out[0]}
	for _, i := range rng.Perm(len(middle))[:capacity-2] {
		picked = append(picked, middle[i])
	}
	picked = append(picked, out[len(out)-1])
	clips.SortByIndex(picked)
	return picked
}

// Assign places segments cell by cell in row-major order
func (l Layout) Assign(segs []clips.Segment) ([]Placement, error) {
	limit := l.Grid * l.Rows
	if l.Kind == KindEnlargedCorner {
		limit -= cornerCells
	}
	if len(segs) > limit {
		return nil, fmt.Errorf("%d segments do not fit a %d-row %s layout", len(segs), l.Rows, l.Kind)
	}

	out := make([]Placement, 0, len(segs))
	next := 0
	for row := 0; row < l.Rows && next < len(segs); row++ {
		for col := 0; col < l.Grid && next < len(segs); col++ {
			if l.Kind == KindEnlargedCorner && row < 2 && col < 2 {
				if row == 0 && col == 0 {
					out = append(out, Placement{
						Segment: segs[next],
						X:       l.Padding,
						Y:       0,
						W:       2*l.CellW + l.Padding,
						H:       2*l.CellH + l.Padding,
						Large:   true,
					})
					next++
				}
				continue
			}
			out = append(out, Placement{
				Segment: segs[next],
				X:       l.Padding + col*(l.CellW+l.Padding),
				Y:       row * (l.CellH + l.Padding),
				W:       l.CellW,
				H:       l.CellH,
			})
			next++
		}
	}
	return out, nil
}

// Batches groups segments into rows of grid for hstack
func Batches(segs []clips.Segment, grid int) [][]clips.Segment {
	var rows [][]clips.Segment
	for i := 0; i < len(segs); i += grid {
		end := i + grid
		if end > len(segs) {
			end = len(segs)
		}
		rows = append(rows, segs[i:end])
	}
	return rows
}
