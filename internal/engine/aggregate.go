package engine

import (
	"fmt"
	"math"

	"interview-engine-service/internal/domain"
)

// strongAnswerScore is the per-question score counted as a strong area in the
// performance summary.
const strongAnswerScore = 70

// Finalize computes the final score (rounded mean of the per-answer scores)
// and a textual performance summary.
func Finalize(answers []domain.Answer) (int, string) {
	if len(answers) == 0 {
		return 0, "No answers were recorded."
	}

	sum := 0
	strong := 0
	for _, a := range answers {
		sum += a.Score
		if a.Score >= strongAnswerScore {
			strong++
		}
	}
	final := int(math.Round(float64(sum) / float64(len(answers))))
	return final, summaryFor(final, strong, len(answers))
}

func summaryFor(final, strong, total int) string {
	var verdict string
	switch {
	case final >= 80:
		verdict = fmt.Sprintf("Excellent result: a strong performance with an overall score of %d.", final)
	case final >= 60:
		verdict = fmt.Sprintf("Good result: a solid performance with an overall score of %d.", final)
	default:
		verdict = fmt.Sprintf("The overall score of %d shows the candidate needs improvement.", final)
	}
	return fmt.Sprintf("%s %d of %d questions scored %d or above, marking them as strong areas.",
		verdict, strong, total, strongAnswerScore)
}
