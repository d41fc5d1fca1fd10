package playlist

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segments(n int, tagged bool) []clips.Segment {
	var out []clips.Segment
	// reverse order so every build has to sort
	for i := n; i >= 1; i-- {
		out = append(out, clips.Segment{Index: i, Path: fmt.Sprintf("/s/seg-%02d.mp4", i)})
		if tagged {
			out = append(out, clips.Segment{Index: i, Path: fmt.Sprintf("/s/timestamped_seg-%02d.mp4", i), Tagged: true})
		}
	}
	return out
}

func allTagged(p clips.Playlist) bool {
	for _, s := range p.Segments {
		if !s.Tagged {
			return false
		}
	}
	return true
}

func anyTagged(p clips.Playlist) bool {
	for _, s := range p.Segments {
		if s.Tagged {
			return true
		}
	}
	return false
}

func TestBuildModes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	segs := segments(12, true)

	set, err := Build(segs, ModeTaggedEverywhere, true, 12, rng)
	require.NoError(t, err)
	assert.True(t, allTagged(set.Full))
	assert.True(t, allTagged(set.Sheet))

	set, err = Build(segs, ModeTaggedSheet, true, 12, rng)
	require.NoError(t, err)
	assert.False(t, anyTagged(set.Full))
	assert.True(t, allTagged(set.Sheet))

	set, err = Build(segs, ModeUntagged, true, 12, rng)
	require.NoError(t, err)
	assert.False(t, anyTagged(set.Full))
	assert.False(t, anyTagged(set.Sheet))

	set, err = Build(segs, ModeTaggedSheet, false, 12, rng)
	require.NoError(t, err)
	assert.Zero(t, set.Sheet.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, set.Full.Indexes())
}

func TestBuildFallsBackToPlainWhenTagMissing(t *testing.T) {
	segs := segments(4, false)
	segs = append(segs, clips.Segment{Index: 2, Path: "/s/timestamped_seg-02.mp4", Tagged: true})

	set, err := Build(segs, ModeTaggedEverywhere, false, 4, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"/s/seg-01.mp4", "/s/timestamped_seg-02.mp4", "/s/seg-03.mp4", "/s/seg-04.mp4"}, set.Full.Paths())
}

func TestNeedsTagged(t *testing.T) {
	assert.True(t, ModeTaggedEverywhere.NeedsTagged(false))
	assert.True(t, ModeTaggedSheet.NeedsTagged(true))
	assert.False(t, ModeTaggedSheet.NeedsTagged(false))
	assert.False(t, ModeUntagged.NeedsTagged(true))
}

func TestSubsetKeepsEndsAndOrder(t *testing.T) {
	full := clips.NewPlaylist(clips.VariantFull, segments(12, false))

	for seed := int64(0); seed < 20; seed++ {
		sub, err := Subset(full, 8, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		idx := sub.Indexes()
		require.Len(t, idx, 8)
		assert.Equal(t, []int{1, 2}, idx[:2])
		assert.Equal(t, []int{11, 12}, idx[6:])
		for i := 1; i < len(idx); i++ {
			assert.Greater(t, idx[i], idx[i-1])
		}
		assert.Equal(t, clips.VariantGIFSubset, sub.Variant)
	}
}

func TestSubsetEdgeCases(t *testing.T) {
	full := clips.NewPlaylist(clips.VariantFull, segments(6, false))
	rng := rand.New(rand.NewSource(3))

	sub, err := Subset(full, 6, rng)
	require.NoError(t, err)
	assert.True(t, sub.Equal(full))

	sub, err = Subset(full, 20, rng)
	require.NoError(t, err)
	assert.True(t, sub.Equal(full))

	sub, err = Subset(full, 4, rng)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5, 6}, sub.Indexes())

	_, err = Subset(full, 3, rng)
	assert.True(t, failure.IsConfiguration(err))

	_, err = Subset(full, 0, rng)
	assert.True(t, failure.IsConfiguration(err))
}

func TestGIFDiffers(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	set, err := Build(segments(12, false), ModeUntagged, false, 12, rng)
	require.NoError(t, err)
	assert.False(t, set.GIFDiffers())

	set, err = Build(segments(12, false), ModeUntagged, false, 8, rng)
	require.NoError(t, err)
	assert.True(t, set.GIFDiffers())
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	p := clips.NewPlaylist(clips.VariantFull, []clips.Segment{
		{Index: 2, Path: "/s/it's.mp4"},
		{Index: 1, Path: "/s/a.mp4"},
	})

	list := filepath.Join(dir, "list.txt")
	require.NoError(t, WriteConcatList(p, list))

	data, err := os.ReadFile(list)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"file '/s/a.mp4'", `file '/s/it'\''s.mp4'`}, lines)

	assert.Error(t, WriteConcatList(clips.Playlist{Variant: clips.VariantGIFSubset}, list))
}
