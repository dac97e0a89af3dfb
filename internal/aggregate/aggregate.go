// Package aggregate folds per-item results into a ScoreReport.
package aggregate

import (
	"sort"

	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/scoring"
)

// Aggregate computes subscale averages over answered items and a composite
// equal to the mean of those averages.
//
// Subscales without answered items report the sentinel 0, are listed in
// Degraded and do not contribute to the composite. Results tagged with an
// unknown subscale are skipped and returned as CategoryErrors, ordered by
// item id. The report's Complete flag and StopReason are left for the caller.
func Aggregate(results map[int]domain.ItemResult, scale scoring.Scale, totalItems int) (domain.ScoreReport, []domain.CategoryError) {
	sums := make(map[domain.Subscale]float64, 4)
	answered := make(map[domain.Subscale]int, 4)
	for _, s := range domain.Subscales() {
		answered[s] = 0
	}

	var errs []domain.CategoryError
	for id, res := range results {
		if !res.Subscale.Valid() {
			errs = append(errs, domain.CategoryError{ItemID: id, Subscale: res.Subscale})
			continue
		}
		sums[res.Subscale] += res.ItemScore
		answered[res.Subscale]++
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].ItemID < errs[j].ItemID })

	report := domain.ScoreReport{
		Scale:          scale.Name,
		ItemsAnswered:  answered,
		ItemsCompleted: len(results),
		TotalItems:     totalItems,
		CategoryErrors: errs,
	}

	var total float64
	scored := 0
	for _, s := range domain.Subscales() {
		avg := 0.0
		if n := answered[s]; n > 0 {
			avg = sums[s] / float64(n)
			total += avg
			scored++
		} else {
			report.Degraded = append(report.Degraded, s)
		}
		setSubscale(&report, s, scale.Round(avg))
	}
	if scored > 0 {
		report.TotalScore = scale.Round(total / float64(scored))
	}
	return report, errs
}

// Valid reports whether at least one result was aggregated.
func Valid(report domain.ScoreReport) bool {
	for _, n := range report.ItemsAnswered {
		if n > 0 {
			return true
		}
	}
	return false
}

func setSubscale(r *domain.ScoreReport, s domain.Subscale, v float64) {
	switch s {
	case domain.NegCognitive:
		r.NCEScore = v
	case domain.PosCognitive:
		r.PCEScore = v
	case domain.NegAffective:
		r.NAEScore = v
	case domain.PosAffective:
		r.PAEScore = v
	}
}
