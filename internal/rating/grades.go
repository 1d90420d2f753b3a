package rating

import (
	"math"
	"strings"
	"unicode"
)

// gradeScale maps teammate letter grades onto a GPA-style scale, best first.
var gradeScale = []struct {
	grade string
	value float64
}{
	{"A+", 4.3}, {"A", 4}, {"A-", 3.7},
	{"B+", 3.3}, {"B", 3}, {"B-", 2.7},
	{"C+", 2.3}, {"C", 2}, {"C-", 1.7},
	{"D+", 1.3}, {"D", 1}, {"D-", 0.7},
	{"F", 0},
}

// NormalizeGrade strips everything but letters and +/- and upper-cases the rest.
func NormalizeGrade(grade string) string {
	var b strings.Builder
	for _, r := range grade {
		if unicode.IsLetter(r) || r == '+' || r == '-' {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// GradeValue returns the numeric value of a grade and whether it is valid.
func GradeValue(grade string) (float64, bool) {
	g := NormalizeGrade(grade)
	for _, s := range gradeScale {
		if s.grade == g {
			return s.value, true
		}
	}
	return 0, false
}

// IsValidGrade reports whether grade is a recognized teammate grade.
func IsValidGrade(grade string) bool {
	_, ok := GradeValue(grade)
	return ok
}

// NearestGrade maps a numeric value back to the closest letter grade. Ties go
// to the better grade.
func NearestGrade(value float64) string {
	best := gradeScale[0]
	for _, s := range gradeScale[1:] {
		if math.Abs(s.value-value) < math.Abs(best.value-value) {
			best = s
		}
	}
	return best.grade
}

// AverageGrade averages the valid grades and maps the mean back to a letter.
// It returns "" when none are valid.
func AverageGrade(grades []string) string {
	sum, n := 0.0, 0
	for _, g := range grades {
		if v, ok := GradeValue(g); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return ""
	}
	return NearestGrade(sum / float64(n))
}
