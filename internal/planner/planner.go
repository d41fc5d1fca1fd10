package planner

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/pkg/util"
	"github.com/rs/zerolog"
)

// Sampling bounds, as fractions of the source duration
const (
	startMin = 0.02
	startMax = 0.08
	endMin   = 0.975
	endMax   = 0.99
	jitter   = 0.02
)

// SceneDetector reports whether a scene cut falls inside a short window
type SceneDetector interface {
	SceneChangeAt(ctx context.Context, path string, ts, window float64) (bool, error)
}

// Confirmer lets an operator accept or reject a candidate set
type Confirmer interface {
	Confirm(ctx context.Context, points []clips.CutPoint, duration float64) (bool, error)
}

// Request describes one planning job
type Request struct {
	Path            string
	Duration        float64
	Segments        int
	SegmentDuration float64
	Blacklist       []float64
	// LastCutPoint fixes the final point at this many seconds; zero draws it
	LastCutPoint float64
	// Print logs the breakdown of every accepted set
	Print bool
}

// Plan is an accepted cut point set
type Plan struct {
	Points []clips.CutPoint
	// SegmentDuration is the possibly reduced duration the set was validated with
	SegmentDuration float64
	Discards        int
	Cycles          int
}

// Timestamps returns the absolute cut times in order
func (p *Plan) Timestamps() []float64 {
	ts := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		ts[i] = pt.Seconds
	}
	return ts
}

// Planner produces scene-safe cut point sets
type Planner struct {
	logger    zerolog.Logger
	detector  SceneDetector
	confirmer Confirmer
	policy    RetryPolicy
	rng       *rand.Rand
}

// Option configures a Planner
type Option func(*Planner)

// WithConfirmer asks c to approve every scene-checked candidate set
func WithConfirmer(c Confirmer) Option {
	return func(p *Planner) { p.confirmer = c }
}

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Planner) { p.policy = policy }
}

// WithRand sets the random source, mainly for tests
func WithRand(rng *rand.Rand) Option {
	return func(p *Planner) { p.rng = rng }
}

// New creates a planner that validates candidates with detector
func New(logger zerolog.Logger, detector SceneDetector, opts ...Option) *Planner {
	p := &Planner{
		logger:   logger.With().Str("component", "planner").Logger(),
		detector: detector,
		policy:   DefaultRetryPolicy(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan draws candidate sets until one passes scene validation.
//
// A set containing any point that intersects a scene change is discarded as a
// whole and regenerated from scratch. Discards feed the retry policy, which
// shortens the segment duration and eventually gives up with a
// GenerationExhausted failure.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	endOverride := 0.0
	if req.LastCutPoint > 0 {
		endOverride = req.LastCutPoint / req.Duration
	}

	segDur := req.SegmentDuration
	discards, cycles := 0, 0

	p.logger.Info().
		Str("source", req.Path).
		Int("segments", req.Segments).
		Float64("segment_duration", segDur).
		Msg("planning cut points")

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.policy.MaxCycles > 0 && cycles >= p.policy.MaxCycles {
			return nil, failure.Errorf(failure.GenerationExhausted, failure.StagePlanning,
				"no accepted cut point set after %d attempts (%d discards)", cycles, discards).WithSource(req.Path)
		}
		cycles++

		fractions, ok := Candidates(p.rng, req.Segments, req.Blacklist, endOverride)
		if !ok {
			p.logger.Debug().Int("cycle", cycles).Msg("malformed candidate set, regenerating")
			continue
		}
		points, ok := toCutPoints(fractions, req.Duration)
		if !ok {
			p.logger.Debug().Int("cycle", cycles).Msg("candidate points collide after rounding, regenerating")
			continue
		}

		accepted, err := p.validate(ctx, req, points, segDur)
		if err != nil {
			return nil, err
		}

		if accepted && p.confirmer != nil {
			accepted, err = p.confirmer.Confirm(ctx, points, req.Duration)
			if err != nil {
				return nil, fmt.Errorf("confirm cut points: %w", err)
			}
			if !accepted {
				p.logger.Info().Msg("cut points rejected, regenerating")
			}
		}

		if !accepted {
			discards++
			next, ok := p.policy.Next(discards, segDur)
			if !ok {
				return nil, failure.Errorf(failure.GenerationExhausted, failure.StagePlanning,
					"segment duration reached %.2fs after %d discards", segDur, discards).WithSource(req.Path)
			}
			if next != segDur {
				p.logger.Debug().
					Int("discards", discards).
					Float64("segment_duration", next).
					Msg("cut point generation keeps failing, reducing segment duration")
			}
			segDur = next
			continue
		}

		if req.Print && p.confirmer == nil {
			for _, line := range Breakdown(points, req.Duration) {
				p.logger.Info().Msg(line)
			}
		}

		p.logger.Info().
			Int("discards", discards).
			Int("cycles", cycles).
			Float64("segment_duration", segDur).
			Msg("cut points accepted")

		return &Plan{
			Points:          points,
			SegmentDuration: segDur,
			Discards:        discards,
			Cycles:          cycles,
		}, nil
	}
}

// validate probes every point in index order and stops at the first scene change
func (p *Planner) validate(ctx context.Context, req Request, points []clips.CutPoint, segDur float64) (bool, error) {
	for _, pt := range points {
		changed, err := p.detector.SceneChangeAt(ctx, req.Path, pt.Seconds, segDur)
		if err != nil {
			return false, fmt.Errorf("scene check at %.0fs: %w", pt.Seconds, err)
		}
		if changed {
			p.logger.Debug().
				Int("cut_point", pt.Index).
				Float64("ts", pt.Seconds).
				Msg("scene change at cut point, discarding set")
			return false, nil
		}
	}
	return true, nil
}

// Candidates draws one candidate set of n sorted fractions. It reports false
// when the draw does not yield exactly n distinct, in-range, non-blacklisted points.
// endOverride fixes the last fraction when positive.
func Candidates(rng *rand.Rand, n int, blacklist []float64, endOverride float64) ([]float64, bool) {
	start := util.Round(uniform(rng, startMin, startMax), 3)
	end := endOverride
	if end <= 0 {
		end = util.Round(uniform(rng, endMin, endMax), 3)
	}
	if isBlacklisted(start, blacklist) || isBlacklisted(end, blacklist) {
		return nil, false
	}

	set := map[float64]struct{}{start: {}, end: {}}
	step := (end - start) / float64(n-1)
	for i := 1; i < n-1; i++ {
		next := util.Round(start+step*float64(i)+uniform(rng, -jitter, jitter), 3)
		if next > start && next < end && !isBlacklisted(next, blacklist) {
			set[next] = struct{}{}
		}
	}
	if len(set) != n {
		return nil, false
	}

	out := make([]float64, 0, n)
	for f := range set {
		out = append(out, f)
	}
	sort.Float64s(out)
	return out, true
}

// toCutPoints converts fractions into whole-second cut points. It reports
// false if two points round to the same second or leave (0, duration).
func toCutPoints(fractions []float64, duration float64) ([]clips.CutPoint, bool) {
	points := make([]clips.CutPoint, len(fractions))
	prev := 0.0
	for i, f := range fractions {
		sec := math.Round(duration * f)
		if sec <= prev || sec >= duration {
			return nil, false
		}
		points[i] = clips.CutPoint{Index: i + 1, Fraction: f, Seconds: sec}
		prev = sec
	}
	return points, true
}

// Breakdown renders one human-readable line per point
func Breakdown(points []clips.CutPoint, duration float64) []string {
	lines := make([]string, len(points))
	for i, pt := range points {
		lines[i] = fmt.Sprintf("Segment %d: %.2f%% of video | Time: %s (%.0fs)",
			pt.Index, pt.Fraction*100, util.FormatClock(pt.Fraction*duration), pt.Seconds)
	}
	return lines
}

func validateRequest(req Request) error {
	switch {
	case req.Segments < 3:
		return failure.Errorf(failure.Configuration, failure.StagePlanning, "need at least 3 segments, got %d", req.Segments)
	case req.Duration <= 0:
		return failure.Errorf(failure.Configuration, failure.StagePlanning, "invalid duration %v", req.Duration)
	case req.SegmentDuration <= 0:
		return failure.Errorf(failure.Configuration, failure.StagePlanning, "invalid segment duration %v", req.SegmentDuration)
	case req.LastCutPoint > 0 && req.LastCutPoint/req.Duration <= startMax:
		return failure.Errorf(failure.Configuration, failure.StagePlanning,
			"last cut point %.0fs is too early for a %.0fs source", req.LastCutPoint, req.Duration)
	case req.LastCutPoint >= req.Duration:
		return failure.Errorf(failure.Configuration, failure.StagePlanning,
			"last cut point %.0fs is beyond the %.0fs source", req.LastCutPoint, req.Duration)
	}
	return nil
}

func isBlacklisted(f float64, blacklist []float64) bool {
	for _, b := range blacklist {
		if math.Abs(util.Round(b, 3)-f) < 1e-9 {
			return true
		}
	}
	return false
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
