package wikipedia

import (
	"strings"
	"unicode/utf8"
)

// ParseTag splits an OSM wikipedia=* value such as "en:St Paul's Cathedral"
// into language and title. A value without a language prefix is English.
func ParseTag(tag string) (lang, title string, ok bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", "", false
	}
	if strings.HasPrefix(tag, "http://") || strings.HasPrefix(tag, "https://") {
		return parseURL(tag)
	}
	if i := strings.Index(tag, ":"); i > 0 && i <= 3 && isLang(tag[:i]) {
		lang, title = tag[:i], strings.TrimSpace(tag[i+1:])
	} else {
		lang, title = "en", tag
	}
	return lang, title, title != ""
}

// parseURL handles values like https://en.wikipedia.org/wiki/Title.
func parseURL(u string) (lang, title string, ok bool) {
	rest := u[strings.Index(u, "//")+2:]
	host, path, found := strings.Cut(rest, "/wiki/")
	if !found || !strings.HasSuffix(host, ".wikipedia.org") {
		return "", "", false
	}
	lang = strings.TrimSuffix(host, ".wikipedia.org")
	title = strings.ReplaceAll(path, "_", " ")
	return lang, title, isLang(lang) && title != ""
}

func isLang(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Summary trims an extract to its first paragraph, cut at a sentence end
// when longer than max runes.
func Summary(extract string, max int) string {
	para, _, _ := strings.Cut(strings.TrimSpace(extract), "\n")
	para = strings.TrimSpace(para)
	if max <= 0 || utf8.RuneCountInString(para) <= max {
		return para
	}
	runes := []rune(para)[:max]
	cut := string(runes)
	if i := strings.LastIndex(cut, ". "); i > 0 {
		return cut[:i+1]
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return strings.TrimRight(cut[:i], ",;:") + "…"
	}
	return cut + "…"
}
