package keyword

import (
	"strings"
	"unicode/utf8"
)

// minWordLength is the shortest English name (or variant) matched on its own.
const minWordLength = 3

// goPhrases are the contexts in which the keyword "go" means the language.
var goPhrases = []string{
	"golang",
	"go programming",
	"go language",
	"go code",
	"go developer",
	"go package",
	"go module",
	"go runtime",
	"go goroutine",
	"go channel",
	"go interface",
	"programming in go",
	"written in go",
	"built with go",
}

// Strategy is one named way a keyword can match a post. Applies decides from
// the keyword alone; Match gets lower-cased text.
type Strategy struct {
	Name    string
	Applies func(kw entry) bool
	Match   func(m *Matcher, kw entry, title, body string) bool
}

// DefaultStrategies are tried in order per keyword; the first hit wins.
var DefaultStrategies = []Strategy{
	{
		Name:    "korean-substring",
		Applies: func(kw entry) bool { return kw.ko != "" },
		Match: func(_ *Matcher, kw entry, title, body string) bool {
			return strings.Contains(title, kw.ko) || strings.Contains(body, kw.ko)
		},
	},
	{
		Name:    "contextual-allowlist",
		Applies: func(kw entry) bool { return kw.en == "go" },
		Match: func(m *Matcher, _ entry, title, body string) bool {
			return m.anyWord(title+" "+body, goPhrases)
		},
	},
	{
		Name:    "hyphen-variant",
		Applies: func(kw entry) bool { return kw.isEnglish() && kw.multiWord() },
		Match: func(m *Matcher, kw entry, title, body string) bool {
			return m.anyWord(title+" "+body, hyphenVariants(kw.en))
		},
	},
	{
		Name:    "exact",
		Applies: func(kw entry) bool { return kw.isEnglish() && !kw.multiWord() },
		Match: func(m *Matcher, kw entry, title, body string) bool {
			return m.anyWord(title+" "+body, uniqueWords(kw.en))
		},
	},
	{
		Name:    "normalized-variant",
		Applies: func(kw entry) bool { return kw.isEnglish() },
		Match: func(m *Matcher, kw entry, title, body string) bool {
			return m.anyWord(title+" "+body, normalizedVariants(kw.en))
		},
	},
}

// entry is a keyword with lower-cased, trimmed names.
type entry struct {
	id int64
	en string
	ko string
}

func (e entry) isEnglish() bool {
	return e.en != "" && e.en != "go"
}

func (e entry) multiWord() bool {
	return strings.ContainsAny(e.en, " -")
}

func hyphenVariants(name string) []string {
	return uniqueWords(
		name,
		strings.ReplaceAll(name, "-", " "),
		strings.ReplaceAll(name, "-", ""),
	)
}

// normalizedVariants catches spellings like "node.js", "node js" and "nodejs"
// for one another.
func normalizedVariants(name string) []string {
	return uniqueWords(
		strings.NewReplacer(".", "", " ", "").Replace(name),
		strings.ReplaceAll(name, ".", " "),
		strings.ReplaceAll(name, " ", ""),
		strings.ReplaceAll(name, " ", "."),
		name,
	)
}

// uniqueWords drops duplicates and anything shorter than minWordLength.
func uniqueWords(words ...string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if utf8.RuneCountInString(w) < minWordLength || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
