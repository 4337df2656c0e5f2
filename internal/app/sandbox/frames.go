package sandbox

import (
	"regexp"
	"strconv"
	"strings"

	"agentbridge/internal/domain/execution"
)

var (
	frameRe  = regexp.MustCompile(`^at (?:(.+?) \()?(.+?):(\d+):(\d+)(?:\(\d+\))?\)?$`)
	nativeRe = regexp.MustCompile(`^at (?:(.+?) \()?native\)?$`)
	syntaxRe = regexp.MustCompile(`(\S+): Line (\d+):(\d+)`)
)

// parseStack reads the frames of a VM stack string, innermost first.
// Native frames are kept without a position.
func parseStack(stack string) []execution.Frame {
	var frames []execution.Frame
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "at ") {
			continue
		}
		if m := frameRe.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[3])
			col, _ := strconv.Atoi(m[4])
			frames = append(frames, execution.Frame{Function: m[1], File: m[2], Line: ln, Column: col})
			continue
		}
		if m := nativeRe.FindStringSubmatch(line); m != nil {
			frames = append(frames, execution.Frame{Function: m[1], File: "native"})
		}
	}
	return frames
}

func parseSyntaxPosition(msg string) (execution.Frame, bool) {
	m := syntaxRe.FindStringSubmatch(msg)
	if m == nil {
		return execution.Frame{}, false
	}
	ln, _ := strconv.Atoi(m[2])
	col, _ := strconv.Atoi(m[3])
	return execution.Frame{File: m[1], Line: ln, Column: col}, true
}
