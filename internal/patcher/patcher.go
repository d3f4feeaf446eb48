// internal/patcher/patcher.go

// Package patcher locates a free-text snippet inside a source body despite
// whitespace and line-number drift, and computes the exact byte range a
// replacement applies to. All matching operates on the immutable original
// text; a failed match is an expected outcome, not an error.
package patcher

import (
	"regexp"
	"strings"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

// lineMarkerRegex strips synthetic line-number annotations ("12: ", "12| ")
// that are sometimes prepended to help an oracle reference positions.
var lineMarkerRegex = regexp.MustCompile(`(?m)^\s*\d+\s*[:|]\s?`)

// whitespaceRunRegex collapses runs of spaces and tabs during normalization.
var whitespaceRunRegex = regexp.MustCompile(`[ \t]+`)

// Patcher implements the matching cascade. It is stateless and safe for
// concurrent use.
type Patcher struct {
	// minAnchorLength is the minimum normalized length of a snippet's first
	// line before the anchor tier may match on that line alone.
	minAnchorLength int
}

// New returns a Patcher. minAnchorLength <= 0 selects the default of 10.
func New(minAnchorLength int) *Patcher {
	if minAnchorLength <= 0 {
		minAnchorLength = 10
	}
	return &Patcher{minAnchorLength: minAnchorLength}
}

// Locate runs the matching cascade against source and returns the byte range
// the snippet occupies. Tiers are attempted in order: exact substring,
// line-marker-stripped exact, whitespace-normalized sliding window, and
// first-line anchor.
func (p *Patcher) Locate(source, snippet string) schemas.MatchResult {
	if snippet == "" || source == "" {
		return noMatch()
	}

	// Tier 1: exact substring.
	if idx := strings.Index(source, snippet); idx >= 0 {
		return schemas.MatchResult{
			Found:      true,
			ByteOffset: idx,
			ByteLength: len(snippet),
			ExactText:  snippet,
			Strategy:   schemas.MatchExact,
		}
	}

	// Tier 2: strip synthetic line markers from the snippet and retry exact.
	if stripped := lineMarkerRegex.ReplaceAllString(snippet, ""); stripped != snippet {
		if idx := strings.Index(source, stripped); idx >= 0 {
			return schemas.MatchResult{
				Found:      true,
				ByteOffset: idx,
				ByteLength: len(stripped),
				ExactText:  stripped,
				Strategy:   schemas.MatchStripped,
			}
		}
		// The remaining tiers operate on the stripped form as well; markers
		// are never part of the literal match.
		snippet = stripped
	}

	lines := indexLines(source)
	want := normalizeLines(snippet)
	if len(want) == 0 {
		return noMatch()
	}

	// Tier 3: whitespace-normalized sliding window.
	if res, ok := p.slideWindow(source, lines, want); ok {
		return res
	}

	// Tier 4: first-line anchor. Only a sufficiently long first line may
	// anchor alone; trivial lines like "}" would match everywhere.
	if len(want[0]) >= p.minAnchorLength {
		if res, ok := p.anchorFirstLine(source, lines, want); ok {
			return res
		}
	}

	return noMatch()
}

func noMatch() schemas.MatchResult {
	return schemas.MatchResult{Found: false, Strategy: schemas.MatchNone}
}

// sourceLine is one line of the original text with its byte extent.
type sourceLine struct {
	start int // offset of the first byte of the line
	end   int // offset one past the last content byte (newline excluded)
	norm  string
}

func indexLines(source string) []sourceLine {
	var out []sourceLine
	start := 0
	for {
		nl := strings.IndexByte(source[start:], '\n')
		if nl < 0 {
			out = append(out, sourceLine{start: start, end: len(source), norm: normalize(source[start:])})
			return out
		}
		end := start + nl
		out = append(out, sourceLine{start: start, end: end, norm: normalize(source[start:end])})
		start = end + 1
		if start > len(source) {
			return out
		}
	}
}

func normalize(line string) string {
	return strings.TrimSpace(whitespaceRunRegex.ReplaceAllString(line, " "))
}

func normalizeLines(snippet string) []string {
	snippet = strings.TrimRight(snippet, "\n")
	raw := strings.Split(snippet, "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = normalize(l)
	}
	return out
}

// slideWindow compares a window of len(want) normalized source lines against
// the normalized snippet. The original, non-normalized window text becomes
// ExactText.
func (p *Patcher) slideWindow(source string, lines []sourceLine, want []string) (schemas.MatchResult, bool) {
	n := len(want)
	if n > len(lines) {
		return schemas.MatchResult{}, false
	}
	for i := 0; i+n <= len(lines); i++ {
		match := true
		for j := 0; j < n; j++ {
			if lines[i+j].norm != want[j] {
				match = false
				break
			}
		}
		if match {
			return windowResult(source, lines, i, i+n-1, schemas.MatchNormalized), true
		}
	}
	return schemas.MatchResult{}, false
}

// anchorFirstLine locates the snippet's first line alone, then verifies the
// remaining lines align under normalization, skipping blank lines on both
// sides so that vertical-whitespace drift does not defeat the anchor.
func (p *Patcher) anchorFirstLine(source string, lines []sourceLine, want []string) (schemas.MatchResult, bool) {
	for i := range lines {
		if lines[i].norm != want[0] {
			continue
		}
		if last, ok := alignFrom(lines, i, want); ok {
			return windowResult(source, lines, i, last, schemas.MatchAnchored), true
		}
	}
	return schemas.MatchResult{}, false
}

// alignFrom checks that want[1:] aligns with the source lines following
// anchor, ignoring lines that normalize to empty. Returns the index of the
// last source line consumed.
func alignFrom(lines []sourceLine, anchor int, want []string) (int, bool) {
	si := anchor + 1
	last := anchor
	for wi := 1; wi < len(want); wi++ {
		if want[wi] == "" {
			continue
		}
		for si < len(lines) && lines[si].norm == "" {
			si++
		}
		if si >= len(lines) || lines[si].norm != want[wi] {
			return 0, false
		}
		last = si
		si++
	}
	return last, true
}

func windowResult(source string, lines []sourceLine, first, last int, strategy schemas.MatchStrategy) schemas.MatchResult {
	start := lines[first].start
	end := lines[last].end
	return schemas.MatchResult{
		Found:      true,
		ByteOffset: start,
		ByteLength: end - start,
		ExactText:  source[start:end],
		Strategy:   strategy,
	}
}

// Apply substitutes replace into source at the located range. The result is
// purely derived; callers own persistence.
func Apply(source string, match schemas.MatchResult, replace string) string {
	if !match.Found {
		return source
	}
	return source[:match.ByteOffset] + replace + source[match.ByteOffset+match.ByteLength:]
}
