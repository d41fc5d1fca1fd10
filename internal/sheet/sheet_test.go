package sheet

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segs(n int) []clips.Segment {
	out := make([]clips.Segment, n)
	for i := range out {
		out[i] = clips.Segment{Index: i + 1, Path: fmt.Sprintf("/s/seg-%02d.mp4", i+1)}
	}
	return out
}

func TestValidate(t *testing.T) {
	ok := []struct{ grid, n int }{{3, 9}, {3, 30}, {3, 12}, {4, 12}, {4, 28}, {4, 16}}
	for _, tc := range ok {
		assert.NoError(t, Validate(tc.grid, tc.n, 8, true), "grid %d n %d", tc.grid, tc.n)
	}

	bad := []struct{ grid, n int }{{3, 6}, {3, 10}, {3, 33}, {4, 8}, {4, 14}, {4, 32}, {5, 25}}
	for _, tc := range bad {
		err := Validate(tc.grid, tc.n, 8, true)
		assert.True(t, failure.IsConfiguration(err), "grid %d n %d", tc.grid, tc.n)
	}

	// grid rules only apply when a sheet is built
	assert.NoError(t, Validate(5, 7, 7, false))

	assert.True(t, failure.IsConfiguration(Validate(4, 12, 0, false)))
	assert.True(t, failure.IsConfiguration(Validate(4, 12, 13, true)))
}

func TestStandardLayoutGeometry(t *testing.T) {
	l := NewLayout(KindStandard, 4, 12, 480, 270, 0, 260)
	assert.Equal(t, 3, l.Rows)
	assert.Equal(t, 1920, l.Width())
	assert.Equal(t, 260+3*270, l.Height())

	padded := NewLayout(KindStandard, 4, 12, 480, 270, 5, 260)
	assert.Equal(t, 260+5+3*(270+5), padded.Height())
	assert.Equal(t, 4*480+5*5, padded.Width())

	p, err := l.Assign(segs(12))
	require.NoError(t, err)
	require.Len(t, p, 12)
	assert.Equal(t, [2]int{0, 0}, [2]int{p[0].X, p[0].Y})
	assert.Equal(t, [2]int{1440, 0}, [2]int{p[3].X, p[3].Y})
	assert.Equal(t, [2]int{0, 270}, [2]int{p[4].X, p[4].Y})
	assert.Equal(t, [2]int{1440, 540}, [2]int{p[11].X, p[11].Y})
}

func TestEnlargedCornerSelectAndAssign(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		picked := Select(KindEnlargedCorner, 4, segs(28), rand.New(rand.NewSource(seed)))
		require.Len(t, picked, 13)
		assert.Equal(t, 1, picked[0].Index)
		assert.Equal(t, 28, picked[12].Index)
		for i := 1; i < len(picked); i++ {
			assert.Greater(t, picked[i].Index, picked[i-1].Index)
		}
	}

	picked := Select(KindEnlargedCorner, 4, segs(28), rand.New(rand.NewSource(1)))
	l := NewLayout(KindEnlargedCorner, 4, len(picked), 480, 270, 0, 200)
	assert.Equal(t, 4, l.Rows)

	p, err := l.Assign(picked)
	require.NoError(t, err)
	require.Len(t, p, 13)

	assert.True(t, p[0].Large)
	assert.Equal(t, [4]int{0, 0, 960, 540}, [4]int{p[0].X, p[0].Y, p[0].W, p[0].H})
	// cells beside the enlarged block
	assert.Equal(t, [2]int{960, 0}, [2]int{p[1].X, p[1].Y})
	assert.Equal(t, [2]int{1440, 0}, [2]int{p[2].X, p[2].Y})
	assert.Equal(t, [2]int{960, 270}, [2]int{p[3].X, p[3].Y})
	assert.Equal(t, [2]int{1440, 270}, [2]int{p[4].X, p[4].Y})
	// then full rows
	assert.Equal(t, [2]int{0, 540}, [2]int{p[5].X, p[5].Y})
	assert.Equal(t, [2]int{1440, 810}, [2]int{p[12].X, p[12].Y})
	for _, pl := range p[1:] {
		assert.False(t, pl.Large)
	}
}

func TestEnlargedCornerKeepsShortPlaylists(t *testing.T) {
	picked := Select(KindEnlargedCorner, 3, segs(6), rand.New(rand.NewSource(1)))
	assert.Len(t, picked, 6)

	l := NewLayout(KindEnlargedCorner, 3, 6, 480, 270, 0, 0)
	assert.Equal(t, 3, l.Rows)
	_, err := l.Assign(segs(7))
	assert.Error(t, err)
}

func TestBatches(t *testing.T) {
	rows := Batches(segs(12), 4)
	require.Len(t, rows, 3)
	assert.Equal(t, 9, rows[2][0].Index)
}

func TestBreakValue(t *testing.T) {
	assert.Equal(t, []string{"short"}, breakValue("short", 10, " "))
	assert.Equal(t, []string{"a quick", "brown fox"}, breakValue("a quick brown fox", 10, " "))
	assert.Equal(t, []string{"my.movie.", "final.mp4"}, breakValue("my.movie.final.mp4", 12, ".", " ", "-"))
	assert.Equal(t, []string{"abcdefghijklmnop"}, breakValue("abcdefghijklmnop", 5, " "))
}

func testInfo() *ffmpeg.VideoInfo {
	return &ffmpeg.VideoInfo{
		FilePath:      "/videos/holiday.mp4",
		Duration:      600 * time.Second,
		Size:          150 * 1024 * 1024,
		Title:         "Holiday",
		Width:         1920,
		Height:        1080,
		FPS:           29.97,
		VideoCodec:    "h264",
		VideoProfile:  "High",
		VideoBitrate:  2_500_000,
		HasAudio:      true,
		AudioCodec:    "aac",
		AudioProfile:  "LC",
		AudioChannels: 2,
		AudioBitrate:  128_000,
	}
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows(testInfo(), "d41d8cd98f00b204e9800998ecf8427e", HeaderOptions{Grid: 4})

	byKey := map[string]string{}
	for _, r := range rows {
		byKey[r.Key] = strings.Join(r.Lines, "|")
	}
	assert.Equal(t, "holiday.mp4", byKey["File Name"])
	assert.Equal(t, "Holiday", byKey["Title"])
	assert.Equal(t, "150.00 MB", byKey["File Size"])
	assert.Equal(t, "1920x1080", byKey["Resolution"])
	assert.Equal(t, "00:10:00", byKey["Duration"])
	assert.Equal(t, "H264 (High) @ 2500 kbps, 29.97 fps", byKey["Video"])
	assert.Equal(t, "AAC (LC) (2ch) @ 128 kbps", byKey["Audio"])
	assert.Equal(t, "D41D8CD98F00B204E9800998ECF8427E", byKey["MD5"])
	assert.Equal(t, 8*lineHeight+headerMargin, HeaderHeight(rows))
}

func TestBuildRowsSuppliedTitleAndDate(t *testing.T) {
	rows := BuildRows(testInfo(), "abc", HeaderOptions{Grid: 4, Title: "Summer Trip", Date: "2024-08-01"})

	byKey := map[string]string{}
	for _, r := range rows {
		byKey[r.Key] = strings.Join(r.Lines, "|")
	}
	assert.Equal(t, "Summer Trip", byKey["Title"])
	assert.Equal(t, "2024-08-01", byKey["Date"])
	assert.Equal(t, "Date", rows[len(rows)-1].Key)
	assert.Equal(t, 9*lineHeight+headerMargin, HeaderHeight(rows))

	info := testInfo()
	info.Title = ""
	rows = BuildRows(info, "abc", HeaderOptions{Grid: 4})
	assert.Equal(t, "N/A", strings.Join(rows[1].Lines, "|"))
}

func TestHeaderLongTitleAddsLine(t *testing.T) {
	info := testInfo()
	info.Title = strings.Repeat("word ", 20)
	opts := HeaderOptions{Grid: 3, Vertical: true}

	rows := BuildRows(info, "", opts)
	assert.Equal(t, 9*lineHeight+headerMargin, HeaderHeight(rows))
	assert.Equal(t, 75, opts.BreakLimit())
	assert.Equal(t, 810, opts.Width())
	assert.Equal(t, 16.0, opts.FontSize())
}

func TestWriteHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.png")
	opts := HeaderOptions{Grid: 4}
	rows := BuildRows(testInfo(), "abc", opts)

	height, err := WriteHeader(path, rows, opts)
	require.NoError(t, err)
	assert.Equal(t, HeaderHeight(rows), height)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1920, img.Bounds().Dx())
	assert.Equal(t, height, img.Bounds().Dy())

	r, g, b, _ := img.At(img.Bounds().Dx()-1, img.Bounds().Dy()-1).RGBA()
	assert.Equal(t, [3]uint32{128, 128, 128}, [3]uint32{r >> 8, g >> 8, b >> 8})
}

func TestFileMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	sum, err := FileMD5(path)
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", sum)
}

type fakeTool struct {
	images     []ffmpeg.ImageVideoOptions
	stacks     []ffmpeg.StackOptions
	transforms []string
	encodes    []ffmpeg.EncodeOptions
	failEncode string
}

func (f *fakeTool) ImageToVideo(_ context.Context, opts ffmpeg.ImageVideoOptions) error {
	f.images = append(f.images, opts)
	return nil
}

func (f *fakeTool) Stack(_ context.Context, opts ffmpeg.StackOptions) error {
	f.stacks = append(f.stacks, opts)
	return nil
}

func (f *fakeTool) Transform(_ context.Context, input, output, filter string) error {
	f.transforms = append(f.transforms, input+">"+output+">"+filter)
	return nil
}

func (f *fakeTool) Encode(_ context.Context, opts ffmpeg.EncodeOptions) error {
	f.encodes = append(f.encodes, opts)
	if opts.Format == f.failEncode {
		return fmt.Errorf("exit status 1")
	}
	return nil
}

func sheetRequest(t *testing.T, kind Kind, n int) Request {
	return Request{
		Source: clips.VideoSource{
			Path: "/videos/holiday.mp4", Duration: 600, Width: 1920, Height: 1080, FPS: 29.97,
			Info: testInfo(),
		},
		Base:            "holiday",
		ScratchDir:      t.TempDir(),
		Playlist:        clips.NewPlaylist(clips.VariantSheet, segs(n)),
		Grid:            4,
		Kind:            kind,
		SegmentDuration: 1.5,
		GIFFPS:          12,
		Targets: map[clips.Format]string{
			clips.FormatWebP: "/out/holiday_preview_sheet.webp",
			clips.FormatGIF:  "/out/holiday_preview_sheet.gif",
		},
		Rand: rand.New(rand.NewSource(1)),
	}
}

func TestAssembleStandardGrid(t *testing.T) {
	tool := &fakeTool{}
	req := sheetRequest(t, KindStandard, 12)
	req.OriginalTarget = "/out/" + OriginalFileName("holiday")

	res, err := New(zerolog.Nop(), tool).Assemble(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Layout.Rows)
	assert.Equal(t, res.Layout.HeaderH+3*270, res.Layout.Height())
	assert.True(t, res.Downscaled)

	require.Len(t, tool.images, 1)
	assert.Equal(t, 29.97, tool.images[0].FPS)
	assert.Equal(t, 1.5, tool.images[0].Duration)
	assert.FileExists(t, tool.images[0].Image)

	// three hstacks and one vstack
	require.Len(t, tool.stacks, 4)
	for _, s := range tool.stacks[:3] {
		assert.Len(t, s.Inputs, 4)
		assert.Equal(t, "[0:v][1:v][2:v][3:v]hstack=inputs=4[v]", s.FilterComplex)
	}
	last := tool.stacks[3]
	assert.Equal(t, tool.images[0].Output, last.Inputs[0])
	assert.Equal(t, "[0:v][1:v][2:v][3:v]vstack=inputs=4[v]", last.FilterComplex)
	assert.Equal(t, 29.97, last.FrameRate)
	assert.Equal(t, originalName, filepath.Base(last.Output))

	require.Len(t, tool.transforms, 1)
	assert.True(t, strings.HasSuffix(tool.transforms[0], renderName+">"+downscaleFilter))

	require.Len(t, res.Artifacts, 3)
	assert.Equal(t, clips.FormatWebP, res.Artifacts[0].Format)
	assert.Equal(t, clips.FormatGIF, res.Artifacts[1].Format)
	assert.Equal(t, clips.KindSheetOriginal, res.Artifacts[2].Kind)
	for _, e := range tool.encodes {
		assert.Equal(t, ffmpeg.ProfileSheet, e.Profile)
		assert.Equal(t, renderName, filepath.Base(e.Input))
	}
}

func TestAssembleHeaderUsesSuppliedTitleAndDate(t *testing.T) {
	tool := &fakeTool{}
	req := sheetRequest(t, KindStandard, 12)
	base, err := New(zerolog.Nop(), tool).Assemble(context.Background(), req)
	require.NoError(t, err)

	req.Title = "Summer Trip"
	req.Date = "2024-08-01"
	withDate, err := New(zerolog.Nop(), &fakeTool{}).Assemble(context.Background(), req)
	require.NoError(t, err)

	// the date row adds one line to the header
	assert.Equal(t, base.Layout.HeaderH+lineHeight, withDate.Layout.HeaderH)
}

func TestAssembleGridThreeSkipsDownscale(t *testing.T) {
	tool := &fakeTool{}
	req := sheetRequest(t, KindStandard, 9)
	req.Grid = 3
	req.OriginalTarget = "/out/" + OriginalFileName("holiday")

	res, err := New(zerolog.Nop(), tool).Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Downscaled)
	assert.Empty(t, tool.transforms)
	assert.Len(t, res.Artifacts, 2)
}

func TestAssembleEnlargedCornerUsesXStack(t *testing.T) {
	tool := &fakeTool{}
	res, err := New(zerolog.Nop(), tool).Assemble(context.Background(), sheetRequest(t, KindEnlargedCorner, 28))
	require.NoError(t, err)

	require.Len(t, tool.stacks, 2)
	grid := tool.stacks[0]
	assert.Len(t, grid.Inputs, 13)
	assert.True(t, strings.HasPrefix(grid.FilterComplex, "[0:v]scale=960:540[s0];"))
	assert.Contains(t, grid.FilterComplex, "xstack=inputs=13")
	assert.Equal(t, "[0:v][1:v]vstack=inputs=2[v]", tool.stacks[1].FilterComplex)
	assert.Equal(t, 4, res.Layout.Rows)
}

func TestAssembleIncompleteRowsFallBackToXStack(t *testing.T) {
	tool := &fakeTool{}
	_, err := New(zerolog.Nop(), tool).Assemble(context.Background(), sheetRequest(t, KindStandard, 11))
	require.NoError(t, err)
	require.Len(t, tool.stacks, 2)
	assert.Contains(t, tool.stacks[0].FilterComplex, "xstack=inputs=11")
	// the short last row is padded out to the full sheet width
	assert.True(t, strings.HasSuffix(tool.stacks[0].FilterComplex, "[x];[x]pad=1920:810:0:0:color=black[v]"))
}

func TestAssembleKeepsFractionalFrameRate(t *testing.T) {
	tool := &fakeTool{}
	req := sheetRequest(t, KindStandard, 12)
	req.Source.FPS = 23.976

	_, err := New(zerolog.Nop(), tool).Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 23.98, tool.images[0].FPS)
	assert.Equal(t, 23.98, tool.stacks[len(tool.stacks)-1].FrameRate)

	tool = &fakeTool{}
	req.Source.FPS = 0
	_, err = New(zerolog.Nop(), tool).Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 30.0, tool.images[0].FPS)
}

func TestAssembleTranscodeFailureIsFatal(t *testing.T) {
	tool := &fakeTool{failEncode: ffmpeg.FormatGIF}
	_, err := New(zerolog.Nop(), tool).Assemble(context.Background(), sheetRequest(t, KindStandard, 12))
	assert.True(t, failure.IsAssembly(err))
}
