package simulate

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"hypergame/internal/hnf"
)

// Stats aggregates one hyperstrategy over all rounds.
type Stats struct {
	Strategy hnf.Strategy
	MeanHEU  float64
	StdHEU   float64
	MeanEU   float64
	StdEU    float64
	// Best counts the rounds in which the strategy had the highest HEU.
	Best int
}

// Summary is the outcome of a simulation run.
type Summary struct {
	ID     uuid.UUID
	Name   string
	Rounds []Round
	// Stats follows hnf.Strategies order.
	Stats []Stats
	// Constants holds the literal constants after the last refit.
	Constants map[string]float64
	Elapsed   time.Duration
}

// Stat returns the aggregate for s.
func (s *Summary) Stat(strategy hnf.Strategy) (Stats, bool) {
	for _, st := range s.Stats {
		if st.Strategy == strategy {
			return st, true
		}
	}
	return Stats{}, false
}

// Recommended returns the strategy that was best most often. Ties go to
// the earlier strategy.
func (s *Summary) Recommended() hnf.Strategy {
	var best Stats
	for k, st := range s.Stats {
		if k == 0 || st.Best > best.Best {
			best = st
		}
	}
	return best.Strategy
}

func summarize(id uuid.UUID, name string, rounds []Round) *Summary {
	sum := &Summary{ID: id, Name: name, Rounds: rounds}
	for _, strategy := range hnf.Strategies {
		heu := make([]float64, 0, len(rounds))
		eu := make([]float64, 0, len(rounds))
		st := Stats{Strategy: strategy}
		for _, r := range rounds {
			res := r.Results.Get(strategy)
			heu = append(heu, res.HEU)
			eu = append(eu, res.ExpectedUtility)
			if r.Best == strategy {
				st.Best++
			}
		}
		st.MeanHEU, st.StdHEU = meanStd(heu)
		st.MeanEU, st.StdEU = meanStd(eu)
		sum.Stats = append(sum.Stats, st)
	}
	return sum
}

// meanStd returns the mean and sample standard deviation. The deviation of
// fewer than two values is zero.
func meanStd(x []float64) (mean, std float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
