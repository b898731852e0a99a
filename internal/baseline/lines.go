package baseline

import (
	"strings"

	"github.com/samber/lo"
)

const (
	lineFeedConstant               = "\n"
	carriageReturnConstant         = "\r"
	carriageReturnLineFeedConstant = carriageReturnConstant + lineFeedConstant
)

// lineLayout is the line separator of a file and whether its last line is terminated.
type lineLayout struct {
	separator       string
	trailingNewline bool
}

// detectLineLayout takes the separator from the first line break of content.
func detectLineLayout(content []byte) lineLayout {
	text := string(content)
	firstBreak := strings.Index(text, lineFeedConstant)
	if firstBreak < 0 {
		return lineLayout{separator: lineFeedConstant}
	}
	layout := lineLayout{separator: lineFeedConstant, trailingNewline: strings.HasSuffix(text, lineFeedConstant)}
	if strings.HasSuffix(text[:firstBreak], carriageReturnConstant) {
		layout.separator = carriageReturnLineFeedConstant
	}
	return layout
}

// newFileLayout keeps the separator of source but always terminates the last line.
func newFileLayout(source []byte) lineLayout {
	layout := detectLineLayout(source)
	layout.trailingNewline = true
	return layout
}

// splitLines splits content into lines without their terminators and reports the layout they came in.
func splitLines(content []byte) ([]string, lineLayout) {
	text := string(content)
	if len(text) == 0 {
		return nil, lineLayout{separator: lineFeedConstant}
	}
	layout := detectLineLayout(content)
	text = strings.TrimSuffix(text, lineFeedConstant)
	lines := strings.Split(text, lineFeedConstant)
	for lineIndex := range lines {
		lines[lineIndex] = strings.TrimSuffix(lines[lineIndex], carriageReturnConstant)
	}
	return lines, layout
}

// significantLines returns the distinct non-empty lines of content in first-seen order.
func significantLines(content []byte) []string {
	lines, _ := splitLines(content)
	return lo.Uniq(lo.Compact(lines))
}

func joinLines(lines []string, layout lineLayout) []byte {
	joined := strings.Join(lines, layout.separator)
	if layout.trailingNewline {
		joined += layout.separator
	}
	return []byte(joined)
}

func lineIndex(lines []string) map[string]struct{} {
	return lo.SliceToMap(lines, func(line string) (string, struct{}) {
		return line, struct{}{}
	})
}

// intersectLines keeps the lines of running that are also present in candidate, preserving the order of running.
func intersectLines(running []string, candidate []string) []string {
	candidateIndex := lineIndex(candidate)
	return lo.Filter(running, func(line string, _ int) bool {
		_, present := candidateIndex[line]
		return present
	})
}
