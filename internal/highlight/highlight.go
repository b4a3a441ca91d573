package highlight

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text      string
	Count     int
	LineIndex []int
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {}, "what": {}, "who": {},
	"why": {}, "how": {}, "when": {}, "where": {}, "which": {}, "does": {}, "did": {}, "this": {},
	"that": {}, "with": {}, "about": {}, "from": {}, "into": {}, "video": {}, "there": {},
	"their": {}, "they": {}, "you": {}, "your": {}, "can": {}, "say": {}, "says": {}, "said": {},
	"has": {}, "have": {}, "had": {}, "not": {}, "but": {}, "its": {}, "his": {}, "her": {},
	"she": {}, "him": {}, "them": {}, "than": {}, "then": {}, "any": {}, "all": {}, "some": {},
	"will": {}, "would": {}, "should": {}, "could": {},
}

// Terms picks the words of a question worth highlighting in its answer,
// longest first so overlapping terms prefer the longer match.
func Terms(question string) []string {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "-_")
		if len([]rune(w)) < 3 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func ApplyANSI(input string, terms []string, wrap func(string) string) Result {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	lines := strings.SplitAfter(input, "\n")

	var out strings.Builder
	lineMatches := make([]int, 0, 64)
	total := 0

	for lineNo, line := range lines {
		core, hasNewline := strings.CutSuffix(line, "\n")

		rendered, count := applyToANSIText(core, terms, wrap)
		out.WriteString(rendered)
		if hasNewline {
			out.WriteByte('\n')
		}
		if count > 0 {
			lineMatches = append(lineMatches, lineNo)
			total += count
		}
	}

	return Result{
		Text:      out.String(),
		Count:     total,
		LineIndex: lineMatches,
	}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func applyToANSIText(s string, terms []string, wrap func(string) string) (string, int) {
	indices := ansiCSI.FindAllStringIndex(s, -1)
	if len(indices) == 0 {
		return applyToPlain(s, terms, wrap)
	}

	var out strings.Builder
	total := 0
	pos := 0
	for _, idx := range indices {
		if idx[0] > pos {
			plain, count := applyToPlain(s[pos:idx[0]], terms, wrap)
			out.WriteString(plain)
			total += count
		}
		out.WriteString(s[idx[0]:idx[1]])
		pos = idx[1]
	}
	if pos < len(s) {
		plain, count := applyToPlain(s[pos:], terms, wrap)
		out.WriteString(plain)
		total += count
	}
	return out.String(), total
}

// applyToPlain wraps the longest term starting at the earliest position.
// Matching folds case rune by rune so byte offsets always refer to s.
func applyToPlain(s string, terms []string, wrap func(string) string) (string, int) {
	if s == "" {
		return s, 0
	}

	var out strings.Builder
	count := 0
	last := 0
	for pos := 0; pos < len(s); {
		if n := longestMatchAt(s[pos:], terms); n > 0 {
			out.WriteString(s[last:pos])
			out.WriteString(wrap(s[pos : pos+n]))
			count++
			pos += n
			last = pos
			continue
		}
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
	}
	if count == 0 {
		return s, 0
	}
	out.WriteString(s[last:])
	return out.String(), count
}

func longestMatchAt(s string, terms []string) int {
	best := 0
	for _, t := range terms {
		if n := foldedPrefix(s, t); n > best {
			best = n
		}
	}
	return best
}

// foldedPrefix returns how many bytes of s match term ignoring case, or 0.
func foldedPrefix(s, term string) int {
	i := 0
	for _, tr := range term {
		if i >= len(s) {
			return 0
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != tr && unicode.ToLower(r) != unicode.ToLower(tr) {
			return 0
		}
		i += size
	}
	return i
}
