package marketintel

import (
	"errors"
	"fmt"
	"math"
)

type Label string

const (
	ExtremeFear  Label = "Extreme Fear"
	Fear         Label = "Fear"
	Neutral      Label = "Neutral"
	Greed        Label = "Greed"
	ExtremeGreed Label = "Extreme Greed"
)

var (
	ErrWeightMismatch = errors.New("indicator and weight keys differ")
	ErrWeightSum      = errors.New("weights must be non-negative and sum to 1")
	ErrScoreRange     = errors.New("indicator score outside [0,100]")
)

const weightTolerance = 1e-6

// Indicator is one named sub-score in [0,100].
type Indicator struct {
	Name  string
	Score float64
}

type Component struct {
	Name          string  `json:"name"`
	Value         int     `json:"value"`
	WeightPercent float64 `json:"weight"`
}

type CompositeResult struct {
	Index      int         `json:"index"`
	Label      Label       `json:"label"`
	Components []Component `json:"components"`
}

// Score combines indicators into a single index in [0,100]. Components keep
// the order of indicators. Score is pure.
func Score(indicators []Indicator, weights map[string]float64) (CompositeResult, error) {
	if len(indicators) != len(weights) {
		return CompositeResult{}, fmt.Errorf("%w: %d indicators, %d weights", ErrWeightMismatch, len(indicators), len(weights))
	}

	sum := 0.0
	seen := make(map[string]struct{}, len(indicators))
	for _, ind := range indicators {
		w, ok := weights[ind.Name]
		if !ok {
			return CompositeResult{}, fmt.Errorf("%w: no weight for %q", ErrWeightMismatch, ind.Name)
		}
		if _, dup := seen[ind.Name]; dup {
			return CompositeResult{}, fmt.Errorf("%w: duplicate indicator %q", ErrWeightMismatch, ind.Name)
		}
		seen[ind.Name] = struct{}{}
		if math.IsNaN(ind.Score) || ind.Score < 0 || ind.Score > 100 {
			return CompositeResult{}, fmt.Errorf("%w: %s=%v", ErrScoreRange, ind.Name, ind.Score)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return CompositeResult{}, fmt.Errorf("%w: %s=%v", ErrWeightSum, ind.Name, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return CompositeResult{}, fmt.Errorf("%w: got %.6f", ErrWeightSum, sum)
	}

	total := 0.0
	components := make([]Component, 0, len(indicators))
	for _, ind := range indicators {
		w := weights[ind.Name]
		total += ind.Score * w
		components = append(components, Component{
			Name:          ind.Name,
			Value:         int(math.Round(ind.Score)),
			WeightPercent: w * 100,
		})
	}

	index := int(math.Round(clamp(total, 0, 100)))
	return CompositeResult{
		Index:      index,
		Label:      LabelFor(index),
		Components: components,
	}, nil
}

// LabelFor maps an index to its label. Upper bounds are inclusive.
func LabelFor(index int) Label {
	switch {
	case index <= 25:
		return ExtremeFear
	case index <= 45:
		return Fear
	case index <= 55:
		return Neutral
	case index <= 75:
		return Greed
	default:
		return ExtremeGreed
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return lo + (hi-lo)/2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
