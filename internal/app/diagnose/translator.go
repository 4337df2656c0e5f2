// Package diagnose turns execution faults into messages that point at the
// line of the submission (or library file) the author has to look at.
package diagnose

import (
	"fmt"
	"os"
	"strings"

	"agentbridge/internal/domain/execution"
)

// Translator renders faults against the submission that raised them.
// ReadFile loads library sources referenced by stack frames.
type Translator struct {
	ReadFile func(path string) ([]byte, error)
}

func NewTranslator() *Translator {
	return &Translator{ReadFile: os.ReadFile}
}

// Translate maps the fault location onto the submission. Frames are
// scanned innermost first; the first unit frame past the preamble anchors
// the user code line, the first positioned frame decides whether the fault
// is reported against a library file, the preamble, or the code. A fault
// raised from the preamble with no user frame on the stack is reported
// against the preamble.
func (t *Translator) Translate(f execution.Fault, s execution.Submission) string {
	if len(f.Frames) == 0 {
		return f.Message
	}
	p := s.PreambleLines()
	top, ok := topFrame(f.Frames)
	if !ok {
		return f.Message
	}
	inPreamble := top.File == execution.UnitName && top.Line <= p

	offset := 0
	for _, fr := range f.Frames {
		if fr.File == execution.UnitName && fr.Line > p {
			offset = fr.Line - p
			break
		}
	}
	if offset == 0 {
		if inPreamble {
			return preambleMessage(f, s, top)
		}
		return f.Message
	}
	codeLine := strings.TrimSpace(s.CodeLine(offset))

	if top.File != execution.UnitName {
		if src, err := t.readFile(top.File); err == nil {
			fileLine := strings.TrimSpace(lineOf(string(src), top.Line))
			return fmt.Sprintf("%s:%d\n%s\n%s\nat %s in your code", top.File, top.Line, fileLine, f.Message, codeLine)
		}
	} else if inPreamble {
		return preambleMessage(f, s, top)
	}
	return fmt.Sprintf("Your code:%d\n%s\n%s", offset, codeLine, f.Message)
}

func preambleMessage(f execution.Fault, s execution.Submission, top execution.Frame) string {
	return fmt.Sprintf("In your program code:\n%s\n%s", strings.TrimSpace(s.PreambleLine(top.Line)), f.Message)
}

func (t *Translator) readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	read := t.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	return read(path)
}

func topFrame(frames []execution.Frame) (execution.Frame, bool) {
	for _, fr := range frames {
		if fr.HasPosition() {
			return fr, true
		}
	}
	return execution.Frame{}, false
}

func lineOf(src string, n int) string {
	lines := strings.Split(src, "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}
