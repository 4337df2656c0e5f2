package execution

import "strings"

// UnitName is the file name the evaluation unit is compiled under. Stack
// frames carrying it point into the submission rather than a library file.
const UnitName = "user_code.js"

// Submission is one step request: trusted preamble programs followed by
// untrusted user code, evaluated as a single unit.
type Submission struct {
	Preamble string
	Code     string
}

// PreambleLines is the number of unit lines occupied by the preamble.
func (s Submission) PreambleLines() int {
	if s.Preamble == "" {
		return 0
	}
	return strings.Count(s.Preamble, "\n") + 1
}

// Unit joins preamble and code so that code line k is unit line
// PreambleLines()+k.
func (s Submission) Unit() string {
	if s.Preamble == "" {
		return s.Code
	}
	return s.Preamble + "\n" + s.Code
}

// CodeLine returns the 1-based line of the user code, or "" when out of range.
func (s Submission) CodeLine(n int) string {
	return lineAt(s.Code, n)
}

// PreambleLine returns the 1-based line of the preamble, or "" when out of range.
func (s Submission) PreambleLine(n int) string {
	return lineAt(s.Preamble, n)
}

func lineAt(src string, n int) string {
	if n < 1 {
		return ""
	}
	lines := strings.Split(src, "\n")
	if n > len(lines) {
		return ""
	}
	return lines[n-1]
}
