package performance

import (
	"github.com/montanaflynn/stats"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// outcomeAccumulator collects settled returns for one group
type outcomeAccumulator struct {
	returns []float64
	wins    int
}

func (a *outcomeAccumulator) add(rec *models.EvaluationRecord) {
	a.returns = append(a.returns, *rec.ReturnPct)
	if *rec.IsWin {
		a.wins++
	}
}

func (a *outcomeAccumulator) stats() models.OutcomeStats {
	out := models.OutcomeStats{Count: len(a.returns)}
	if out.Count == 0 {
		return out
	}
	out.WinRate = round2(float64(a.wins) / float64(out.Count) * 100)
	out.AvgReturn = mean(a.returns)
	out.MedianReturn = median(a.returns)
	return out
}

// median returns the rounded median, or nil for an empty set
func median(values []float64) *float64 {
	m, err := stats.Median(values)
	if err != nil {
		return nil
	}
	r := round2(m)
	return &r
}

// mean returns the rounded mean, or nil for an empty set
func mean(values []float64) *float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return nil
	}
	r := round2(m)
	return &r
}

func round2(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return 0
	}
	return r
}

// settled reports whether a record carries a usable outcome
func settled(rec *models.EvaluationRecord) bool {
	return rec.DataQuality == models.DataQualityOK && rec.ReturnPct != nil && rec.IsWin != nil
}
