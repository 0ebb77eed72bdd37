// Package grading compares submitted answers against stored correct answers.
package grading

import "strings"

// Result is the outcome of grading one answer.
type Result struct {
	IsCorrect    bool
	PointsEarned int
}

// Normalize trims surrounding whitespace and lowercases the answer.
func Normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// Matches reports whether answer equals correct ignoring case and surrounding whitespace.
func Matches(answer, correct string) bool {
	return Normalize(answer) == Normalize(correct)
}

// Grade awards the full point value for a match and nothing otherwise.
func Grade(answer, correct string, points int) Result {
	if !Matches(answer, correct) {
		return Result{}
	}
	return Result{IsCorrect: true, PointsEarned: points}
}
