package tiler

import "fmt"

// VoteAccumulator scatters per-row class predictions back onto the scene
// points they were drawn from. A point can be covered by several
// overlapping tiles and by padding repeats; its final label is the class
// with the most votes.
type VoteAccumulator struct {
	numClasses int
	votes      []int32
}

// NewVoteAccumulator returns an accumulator for a scene of numPoints points.
func NewVoteAccumulator(numPoints, numClasses int) *VoteAccumulator {
	return &VoteAccumulator{
		numClasses: numClasses,
		votes:      make([]int32, numPoints*numClasses),
	}
}

// Add records one vote per row: predicted[i] for scene point index[i].
func (v *VoteAccumulator) Add(index, predicted []int) error {
	if len(index) != len(predicted) {
		return fmt.Errorf("index has %d rows, predictions %d", len(index), len(predicted))
	}
	numPoints := len(v.votes) / max(v.numClasses, 1)
	for i, pi := range index {
		c := predicted[i]
		if pi < 0 || pi >= numPoints {
			return fmt.Errorf("point index %d out of range [0, %d)", pi, numPoints)
		}
		if c < 0 || c >= v.numClasses {
			return fmt.Errorf("predicted class %d out of range [0, %d)", c, v.numClasses)
		}
		v.votes[pi*v.numClasses+c]++
	}
	return nil
}

// AddTiles records predictions for every batch of tiles; predicted[t] holds
// one class per row of batch t.
func (v *VoteAccumulator) AddTiles(tiles *SceneTiles, predicted [][]int) error {
	if len(predicted) != tiles.NumTiles() {
		return fmt.Errorf("got predictions for %d batches, want %d", len(predicted), tiles.NumTiles())
	}
	for t, idx := range tiles.Index {
		if err := v.Add(idx, predicted[t]); err != nil {
			return fmt.Errorf("batch %d: %w", t, err)
		}
	}
	return nil
}

// Labels returns the winning class per point. Ties go to the lower class;
// points that received no vote are -1.
func (v *VoteAccumulator) Labels() []int {
	nc := v.numClasses
	if nc == 0 {
		return nil
	}
	out := make([]int, len(v.votes)/nc)
	for p := range out {
		row := v.votes[p*nc : (p+1)*nc]
		best, bestVotes := -1, int32(0)
		for c, n := range row {
			if n > bestVotes {
				best, bestVotes = c, n
			}
		}
		out[p] = best
	}
	return out
}

// Coverage returns the fraction of points that received at least one vote.
func (v *VoteAccumulator) Coverage() float64 {
	nc := v.numClasses
	if nc == 0 || len(v.votes) == 0 {
		return 0
	}
	numPoints := len(v.votes) / nc
	covered := 0
	for p := 0; p < numPoints; p++ {
		for _, n := range v.votes[p*nc : (p+1)*nc] {
			if n > 0 {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(numPoints)
}
