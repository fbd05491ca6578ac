package domain

// Grade represents the learner's feedback on a card review.
type Grade string

// Possible grade values, ordered from weakest to strongest recall.
const (
	GradeAgain Grade = "again"
	GradeHard  Grade = "hard"
	GradeGood  Grade = "good"
	GradeEasy  Grade = "easy"
)

// AllGrades lists the four grades in ascending order of strength.
var AllGrades = []Grade{GradeAgain, GradeHard, GradeGood, GradeEasy}

// Valid reports whether g is one of the four defined grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeAgain, GradeHard, GradeGood, GradeEasy:
		return true
	default:
		return false
	}
}

// Ordinal returns the numeric rank of the grade, 1 (Again) through 4 (Easy).
// The forgetting-curve model consumes grades in this numeric form.
func (g Grade) Ordinal() int {
	switch g {
	case GradeAgain:
		return 1
	case GradeHard:
		return 2
	case GradeGood:
		return 3
	case GradeEasy:
		return 4
	default:
		return 0
	}
}

// ParseGrade converts a string into a Grade.
// Returns ErrInvalidGrade for anything outside the four defined values.
func ParseGrade(s string) (Grade, error) {
	g := Grade(s)
	if !g.Valid() {
		return "", ErrInvalidGrade
	}
	return g, nil
}
