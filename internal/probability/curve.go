// Package probability maps poll spreads to win probabilities for the explanatory curve.
// It is illustrative only and independent of any ingested dataset.
package probability

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/electionmap/internal/models"
)

// DefaultNormalization is the spread scale used by the published curve.
const DefaultNormalization = 5.1

// Domain is the sampled spread range, inclusive at both ends.
type Domain struct {
	Min  float64
	Max  float64
	Step float64
}

// DefaultDomain samples -10..10 percentage points every half point.
var DefaultDomain = Domain{Min: -10, Max: 10, Step: 0.5}

// Validate checks that the domain can be sampled.
func (d Domain) Validate() error {
	if math.IsNaN(d.Min) || math.IsNaN(d.Max) || math.IsInf(d.Min, 0) || math.IsInf(d.Max, 0) {
		return errors.New("domain bounds must be finite")
	}
	if d.Max < d.Min {
		return errors.New("domain max must not be below min")
	}
	if d.Step <= 0 {
		return errors.New("domain step must be positive")
	}
	if (d.Max-d.Min)/d.Step > 100000 {
		return errors.New("domain has too many samples")
	}
	return nil
}

// WinProbability returns 0.5 * (1 + erf(spread / k)). A non-positive k degenerates
// to a step at zero rather than dividing by zero. Trailing spreads use the
// complementary form so deep deficits keep a small nonzero probability.
func WinProbability(spread, k float64) float64 {
	if k <= 0 {
		switch {
		case spread > 0:
			return 1
		case spread < 0:
			return 0
		}
		return 0.5
	}
	z := spread / k
	if z < 0 {
		return 0.5 * erfc(-z)
	}
	return 0.5 * (1 + Erf(z))
}

// Curve samples WinProbability over the domain. Samples are placed at Min + i*Step
// so long domains do not accumulate floating point drift.
func Curve(d Domain, k float64) ([]models.CurvePoint, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid curve domain: %w", err)
	}
	if k <= 0 {
		return nil, fmt.Errorf("normalization factor must be positive, got %v", k)
	}

	n := int(math.Floor((d.Max-d.Min)/d.Step + 1e-9))
	points := make([]models.CurvePoint, 0, n+1)
	for i := 0; i <= n; i++ {
		s := d.Min + float64(i)*d.Step
		points = append(points, models.CurvePoint{Spread: s, Probability: WinProbability(s, k)})
	}
	return points, nil
}

// PollSpread rescales two poll shares so that together they cover everyone except the
// undecided share, then returns candidate A's lead in percentage points.
func PollSpread(pa, pb, undecided float64) (float64, error) {
	total := pa + pb
	if total <= 0 {
		return 0, errors.New("poll shares must sum to a positive value")
	}
	if undecided < 0 || undecided >= 100 {
		return 0, errors.New("undecided share must be in [0, 100)")
	}
	decided := 100 - undecided
	return pa/total*decided - pb/total*decided, nil
}

// StandardError converts a 95% margin of error into a standard error.
func StandardError(marginOfError float64) float64 {
	return marginOfError / 1.96
}

// PollWinProbability is the probability that candidate A wins given two poll shares,
// a margin of error, and the undecided share.
func PollWinProbability(pa, pb, marginOfError, undecided float64) (float64, error) {
	spread, err := PollSpread(pa, pb, undecided)
	if err != nil {
		return 0, err
	}
	if marginOfError <= 0 {
		return 0, errors.New("margin of error must be positive")
	}
	// z = spread / (se*sqrt2) fed through erf(z/sqrt2) collapses to spread / (2*se).
	return WinProbability(spread, 2*StandardError(marginOfError)), nil
}
