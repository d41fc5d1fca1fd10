package playlist

import (
	"fmt"
	"math/rand"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
)

// Mode selects where timestamped segments are used
type Mode int

const (
	// ModeTaggedEverywhere uses tagged segments for the preview and the sheet
	ModeTaggedEverywhere Mode = 1
	// ModeTaggedSheet uses tagged segments for the sheet only
	ModeTaggedSheet Mode = 2
	// ModeUntagged never uses tagged segments
	ModeUntagged Mode = 3
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m >= ModeTaggedEverywhere && m <= ModeUntagged
}

// NeedsTagged reports whether segments need timestamped copies
func (m Mode) NeedsTagged(sheetEnabled bool) bool {
	return m == ModeTaggedEverywhere || (m == ModeTaggedSheet && sheetEnabled)
}

// anchors are kept verbatim at each end of a trimmed gif subset
const anchors = 2

// Set holds the playlists of one run
type Set struct {
	Full  clips.Playlist
	GIF   clips.Playlist
	Sheet clips.Playlist
}

// GIFDiffers reports whether the gif needs its own concatenation
func (s Set) GIFDiffers() bool {
	return !s.GIF.Equal(s.Full)
}

// Build selects the full, sheet and gif-subset playlists from extracted segments
func Build(segs []clips.Segment, mode Mode, sheetEnabled bool, gifTarget int, rng *rand.Rand) (Set, error) {
	if !mode.Valid() {
		return Set{}, failure.Errorf(failure.Configuration, failure.StageFiltering, "unknown timestamps mode %d", mode)
	}

	plain, tagged := split(segs)
	if len(plain) == 0 {
		return Set{}, failure.Errorf(failure.Extraction, failure.StageFiltering, "no segments to build playlists from")
	}

	var set Set
	switch mode {
	case ModeTaggedEverywhere:
		set.Full = clips.NewPlaylist(clips.VariantFull, prefer(plain, tagged))
	default:
		set.Full = clips.NewPlaylist(clips.VariantFull, plain)
	}

	if sheetEnabled {
		switch mode {
		case ModeUntagged:
			set.Sheet = clips.NewPlaylist(clips.VariantSheet, plain)
		default:
			set.Sheet = clips.NewPlaylist(clips.VariantSheet, prefer(plain, tagged))
		}
	}

	gif, err := Subset(set.Full, gifTarget, rng)
	if err != nil {
		return Set{}, err
	}
	set.GIF = gif
	return set, nil
}

// Subset trims full down to target entries. The first and last two entries
// are always kept, the middle is sampled without replacement.
func Subset(full clips.Playlist, target int, rng *rand.Rand) (clips.Playlist, error) {
	if target <= 0 {
		return clips.Playlist{}, failure.Errorf(failure.Configuration, failure.StageFiltering,
			"gif segment count must be positive, got %d", target)
	}
	if target >= full.Len() {
		return clips.NewPlaylist(clips.VariantGIFSubset, full.Segments), nil
	}
	if target < 2*anchors {
		return clips.Playlist{}, failure.Errorf(failure.Configuration, failure.StageFiltering,
			"gif segment count %d is below %d and cannot keep both ends", target, 2*anchors)
	}

	segs := full.Segments
	middle := segs[anchors : len(segs)-anchors]

	picked := make([]clips.Segment, 0, target)
	picked = append(picked, segs[:anchors]...)
	for _, i := range rng.Perm(len(middle))[:target-2*anchors] {
		picked = append(picked, middle[i])
	}
	picked = append(picked, segs[len(segs)-anchors:]...)

	return clips.NewPlaylist(clips.VariantGIFSubset, picked), nil
}

// WriteConcatList writes p as a concat list at path
func WriteConcatList(p clips.Playlist, path string) error {
	if p.Len() == 0 {
		return fmt.Errorf("playlist %s is empty", p.Variant)
	}
	return p.WriteConcatList(path)
}

func split(segs []clips.Segment) (plain, tagged []clips.Segment) {
	for _, s := range segs {
		if s.Tagged {
			tagged = append(tagged, s)
		} else {
			plain = append(plain, s)
		}
	}
	return plain, tagged
}

// prefer picks the tagged copy of every index that has one, the plain segment otherwise
func prefer(plain, tagged []clips.Segment) []clips.Segment {
	byIndex := make(map[int]clips.Segment, len(tagged))
	for _, s := range tagged {
		byIndex[s.Index] = s
	}
	out := make([]clips.Segment, len(plain))
	for i, s := range plain {
		if t, ok := byIndex[s.Index]; ok {
			out[i] = t
		} else {
			out[i] = s
		}
	}
	return out
}
