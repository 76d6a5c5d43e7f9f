package grading

import "math"

// PassThreshold is the fraction of questions that must be answered correctly to pass.
const PassThreshold = 0.70

// Passed classifies a finalized score. An attempt with no questions never passes.
func Passed(score, total int) bool {
	if total <= 0 {
		return false
	}
	return float64(score)/float64(total) >= PassThreshold
}

// Percentage is the score as a whole-number percentage, rounded half up, for display.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
