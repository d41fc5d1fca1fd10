package ffmpeg

import "time"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath      string
	Duration      time.Duration
	Size          int64
	Title         string
	Width         int
	Height        int
	Rotation      int
	FPS           float64
	Bitrate       int64
	VideoCodec    string
	VideoProfile  string
	VideoBitrate  int64
	HasAudio      bool
	AudioCodec    string
	AudioProfile  string
	AudioChannels int
	AudioBitrate  int64
}

// Seconds returns the container duration in seconds
func (v *VideoInfo) Seconds() float64 {
	return v.Duration.Seconds()
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Options configures an Executor
type Options struct {
	Threads int
	// SceneProbeTimeout bounds a single scene-change probe. Zero uses DefaultSceneProbeTimeout.
	SceneProbeTimeout time.Duration
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "slow"
	DefaultVideoCodec = "libx264"

	// SceneThreshold is the frame difference score treated as a cut
	SceneThreshold = 0.2
	// SceneProbeMargin widens the probe window on both sides, in seconds
	SceneProbeMargin = 0.1

	DefaultSceneProbeTimeout = 20 * time.Second

	// outputTailLines caps how much tool output an error carries
	outputTailLines = 40
)
