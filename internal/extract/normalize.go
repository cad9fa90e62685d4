package extract

import (
	"strings"
	"unicode"
)

var (
	titlePlaceholders  = map[string]struct{}{"booksky": {}, "unknown": {}, "none": {}}
	authorPlaceholders = map[string]struct{}{"unknown": {}, "none": {}, "author": {}, "anonymous": {}}
)

// CleanAuthor collapses whitespace and title-cases the name. Placeholders
// and empty input yield "".
func CleanAuthor(raw string) string {
	if raw == "" {
		return ""
	}
	if _, ok := authorPlaceholders[strings.ToLower(raw)]; ok {
		return ""
	}
	return TitleCase(strings.Join(strings.Fields(raw), " "))
}

// CleanTitle strips the (already cleaned) author from the title, keeps the
// part before the first "/", trims and title-cases it. Placeholders and
// empty input yield "".
func CleanTitle(raw, author string) string {
	if raw == "" {
		return ""
	}
	if _, ok := titlePlaceholders[strings.ToLower(raw)]; ok {
		return ""
	}

	title := raw
	if author != "" && strings.Contains(strings.ToLower(title), strings.ToLower(author)) {
		title = strings.TrimSpace(strings.ReplaceAll(strings.ToLower(title), strings.ToLower(author), ""))
	}
	if i := strings.Index(title, "/"); i >= 0 {
		title = title[:i]
	}
	return TitleCase(strings.TrimSpace(title))
}

// TitleCase upper-cases every rune that follows an uncased rune and
// lower-cases the rest, so "philosopher's" becomes "Philosopher'S". Only
// upper, lower and title case letters count as cased; CJK and other
// caseless scripts start a new word like punctuation does.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevCased := false
	for _, r := range s {
		if prevCased {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToTitle(r))
		}
		prevCased = isCased(r)
	}
	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}
