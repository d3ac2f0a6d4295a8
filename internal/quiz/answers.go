package quiz

import (
	"regexp"
	"strings"
)

// Judge verdicts as the portal renders them.
const (
	judgeTrue  = "正确"
	judgeFalse = "错误"
)

var (
	letterRunRe = regexp.MustCompile(`[A-Z]{2,}`)
	letterRe    = regexp.MustCompile(`[A-Z]`)
)

// ParseChoice extracts option letters from a raw answer. Letters outside
// the option range are dropped, duplicates keep their first position, and
// a single-choice question keeps only the first letter.
func ParseChoice(raw string, multiple bool, optionCount int) []string {
	seen := make(map[string]bool)
	var letters []string
	for _, l := range letterRe.FindAllString(strings.ToUpper(raw), -1) {
		if l[0] >= byte('A')+byte(optionCount) {
			continue
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		letters = append(letters, l)
	}
	if !multiple && len(letters) > 1 {
		letters = letters[:1]
	}
	return letters
}

// ParseJudge maps a raw answer onto a judge verdict. Negations are checked
// first because "不正确" contains "正确". An unreadable answer defaults to
// true: the portal's judge questions skew heavily that way, and a guessed
// answer still beats an unanswered one. defaulted tells the caller to log
// the guess.
func ParseJudge(raw string) (verdict string, defaulted bool) {
	switch {
	case strings.Contains(raw, judgeFalse),
		strings.Contains(raw, "不正确"),
		strings.Contains(raw, "不对"),
		strings.Contains(raw, "错"):
		return judgeFalse, false
	case strings.Contains(raw, judgeTrue),
		strings.Contains(raw, "对"):
		return judgeTrue, false
	}
	return judgeTrue, true
}

// ParseOrdering extracts an option-letter sequence from a raw answer. It
// prefers the longest contiguous run of letters; a model that spells the
// sequence out ("C, A, B") falls back to collecting scattered letters in
// order.
func ParseOrdering(raw string, optionCount int) string {
	upper := strings.ToUpper(raw)

	best := ""
	for _, run := range letterRunRe.FindAllString(upper, -1) {
		if len(run) > len(best) {
			best = run
		}
	}
	if best == "" {
		best = strings.Join(letterRe.FindAllString(upper, -1), "")
	}

	seen := make(map[byte]bool)
	var sb strings.Builder
	for i := 0; i < len(best); i++ {
		l := best[i]
		if l >= byte('A')+byte(optionCount) || seen[l] {
			continue
		}
		seen[l] = true
		sb.WriteByte(l)
	}
	return sb.String()
}
