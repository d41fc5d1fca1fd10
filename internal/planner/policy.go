package planner

import "github.com/keagan/previewcut/pkg/util"

// RetryPolicy controls how the segment duration shrinks while candidate sets
// keep getting discarded.
type RetryPolicy struct {
	// DiscardsPerStep is how many discards happen between reductions
	DiscardsPerStep int `yaml:"discards_per_step" env:"DISCARDS_PER_STEP"`
	// Step is subtracted from the segment duration on each reduction
	Step float64 `yaml:"step" env:"STEP"`
	// Floor is the shortest segment duration; a reduction due at the floor exhausts planning
	Floor float64 `yaml:"floor" env:"FLOOR"`
	// MaxCycles caps candidate generations of any outcome. Zero means no cap.
	MaxCycles int `yaml:"max_cycles" env:"MAX_CYCLES"`
}

// DefaultRetryPolicy reduces by 0.1s every 50 discards down to 0.1s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		DiscardsPerStep: 50,
		Step:            0.1,
		Floor:           0.1,
		MaxCycles:       0,
	}
}

// Next is consulted after every discard. It returns the segment duration for
// the next attempt, and false once a reduction is due at or below the floor.
func (p RetryPolicy) Next(discards int, current float64) (float64, bool) {
	if p.DiscardsPerStep <= 0 || discards == 0 || discards%p.DiscardsPerStep != 0 {
		return current, true
	}
	if current <= p.Floor+1e-9 {
		return current, false
	}
	next := util.Round(current-p.Step, 2)
	if next < p.Floor {
		next = p.Floor
	}
	return next, true
}

// MaxDiscards is the number of discards after which planning gives up when
// starting from the given segment duration.
func (p RetryPolicy) MaxDiscards(initial float64) int {
	if p.DiscardsPerStep <= 0 || p.Step <= 0 {
		return 0
	}
	d, steps := initial, 0
	for {
		steps++
		if d <= p.Floor+1e-9 {
			return steps * p.DiscardsPerStep
		}
		d = util.Round(d-p.Step, 2)
		if d < p.Floor {
			d = p.Floor
		}
	}
}
