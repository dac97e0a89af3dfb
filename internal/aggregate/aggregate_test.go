package aggregate

import (
	"testing"

	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/scoring"
	"github.com/stretchr/testify/require"
)

func result(id int, sub domain.Subscale, score float64) domain.ItemResult {
	return domain.ItemResult{ItemID: id, Subscale: sub, ItemScore: score}
}

func TestCompositeIsMeanOfSubscaleAverages(t *testing.T) {
	results := map[int]domain.ItemResult{
		1: result(1, domain.NegCognitive, 5),
		2: result(2, domain.NegCognitive, 5),
		3: result(3, domain.NegCognitive, 5),
		4: result(4, domain.PosCognitive, 1),
		5: result(5, domain.NegAffective, 3),
		6: result(6, domain.PosAffective, 3),
	}
	report, errs := Aggregate(results, scoring.Likert5, 6)
	require.Empty(t, errs)
	require.Equal(t, 5.0, report.NCEScore)
	require.Equal(t, 1.0, report.PCEScore)
	// item mean would be 22/6 = 3.7
	require.Equal(t, 3.0, report.TotalScore)
	require.Empty(t, report.Degraded)
	require.Equal(t, 3, report.ItemsAnswered[domain.NegCognitive])
	require.Equal(t, 6, report.ItemsCompleted)
	require.Equal(t, "likert-5", report.Scale)
}

func TestPartialSessionReportsSentinelForUnansweredSubscales(t *testing.T) {
	scorer := scoring.New(scoring.Likert5, domain.InputText)
	items := []domain.AssessmentItem{
		{ID: 1, Subscale: domain.NegCognitive},
		{ID: 2, Subscale: domain.PosCognitive},
	}
	results := map[int]domain.ItemResult{}
	for _, it := range items {
		results[it.ID] = scorer.FromFreeText("I understand how they feel and I feel it too because of their situation", it)
	}

	report, errs := Aggregate(results, scoring.Likert5, 4)
	require.Empty(t, errs)
	require.Equal(t, 0.0, report.NAEScore)
	require.Equal(t, 0.0, report.PAEScore)
	require.Equal(t, 0, report.ItemsAnswered[domain.NegAffective])
	require.Equal(t, 0, report.ItemsAnswered[domain.PosAffective])
	require.Equal(t, []domain.Subscale{domain.NegAffective, domain.PosAffective}, report.Degraded)
	require.Equal(t, 1.6, report.NCEScore)
	require.Equal(t, 1.6, report.TotalScore)
	require.Equal(t, 2, report.ItemsCompleted)
	require.Equal(t, 4, report.TotalItems)
}

func TestSentinelDistinguishableFromMeasuredZero(t *testing.T) {
	results := map[int]domain.ItemResult{
		1: result(1, domain.NegCognitive, 0),
		2: result(2, domain.PosCognitive, 40),
	}
	report, _ := Aggregate(results, scoring.Percent, 4)
	require.Equal(t, 0.0, report.NCEScore)
	require.Equal(t, 0.0, report.NAEScore)
	require.Equal(t, 1, report.ItemsAnswered[domain.NegCognitive])
	require.Equal(t, 0, report.ItemsAnswered[domain.NegAffective])
	require.NotContains(t, report.Degraded, domain.NegCognitive)
	require.Contains(t, report.Degraded, domain.NegAffective)
	require.Equal(t, 20.0, report.TotalScore)
}

func TestUnknownSubscalesAreCollectedNotFatal(t *testing.T) {
	results := map[int]domain.ItemResult{
		7: result(7, "XYZ", 4),
		3: result(3, "", 2),
		1: result(1, domain.PosAffective, 4),
	}
	report, errs := Aggregate(results, scoring.Likert5, 3)
	require.Len(t, errs, 2)
	require.Equal(t, 3, errs[0].ItemID)
	require.Equal(t, 7, errs[1].ItemID)
	require.Equal(t, domain.Subscale("XYZ"), errs[1].Subscale)
	require.Contains(t, errs[1].Error(), "item 7")
	require.Equal(t, errs, report.CategoryErrors)
	require.Equal(t, 4.0, report.PAEScore)
	require.True(t, Valid(report))
}

func TestNothingValidIsDetectable(t *testing.T) {
	report, errs := Aggregate(map[int]domain.ItemResult{1: result(1, "bogus", 3)}, scoring.Likert5, 1)
	require.Len(t, errs, 1)
	require.False(t, Valid(report))
	require.Len(t, report.Degraded, 4)
	require.Zero(t, report.TotalScore)

	empty, _ := Aggregate(nil, scoring.Likert5, 20)
	require.False(t, Valid(empty))
}

func TestAveragesAreRoundedPerScale(t *testing.T) {
	results := map[int]domain.ItemResult{
		1: result(1, domain.NegCognitive, 1.1),
		2: result(2, domain.NegCognitive, 1.2),
		3: result(3, domain.NegCognitive, 1.2),
	}
	report, _ := Aggregate(results, scoring.Likert5, 3)
	require.Equal(t, 1.2, report.NCEScore)
}
