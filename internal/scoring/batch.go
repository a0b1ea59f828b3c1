package scoring

import (
	"sort"
	"sync"

	"github.com/example/load-matching/internal/models"
)

const defaultWorkers = 8

// Candidate is one scored driver for a load.
type Candidate struct {
	Driver    *models.Driver
	Score     float64
	Breakdown models.ScoreBreakdown
}

// ScoreAll scores every driver against the load across a bounded worker
// pool and returns candidates at or above the policy threshold, sorted by
// descending score. Drivers and the load are treated as read-only.
func (s *Scorer) ScoreAll(load *models.Load, drivers []*models.Driver) []Candidate {
	if len(drivers) == 0 {
		return nil
	}

	workers := defaultWorkers
	if len(drivers) < workers {
		workers = len(drivers)
	}

	results := make([]Candidate, len(drivers))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				score, breakdown := s.Score(load, drivers[i])
				results[i] = Candidate{Driver: drivers[i], Score: score, Breakdown: breakdown}
			}
		}()
	}
	for i := range drivers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	kept := results[:0]
	for _, c := range results {
		if c.Score >= s.policy.MinScore {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return kept
}
