package rerank

import "errors"

var ErrNoNeighbors = errors.New("no neighbors to forecast from")

// AnalogForecast is the FinalScore-weighted mean of the neighbors' targets.
// The result is in the same (normalized) units as the stored targets.
func AnalogForecast(ranked []RankedResult) (float64, error) {
	var sum, weights float64
	for _, r := range ranked {
		sum += r.FinalScore * r.Target
		weights += r.FinalScore
	}
	if weights <= 0 {
		return 0, ErrNoNeighbors
	}
	return sum / weights, nil
}
