// Package conversation implements the per-session conversation state tracker:
// topic detection, the disclosure phase machine, the upsell trigger and the
// engagement score, plus the turn handler that ties them to a completion provider.
package conversation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// TopicTriggers is one row of the topic table.
type TopicTriggers struct {
	Name     domain.Topic `yaml:"name"`
	Triggers []string     `yaml:"triggers"`
}

// Keywords is the full trigger configuration.
type Keywords struct {
	Topics      []TopicTriggers `yaml:"topics"`
	Remedy      []string        `yaml:"remedy"`
	Specificity []string        `yaml:"specificity"`
	Critical    []string        `yaml:"critical"`
	RemedyAsk   []string        `yaml:"remedy_ask"`
}

// DefaultKeywords returns the built-in trigger table.
func DefaultKeywords() Keywords {
	kw, err := ParseKeywords(defaultKeywordsYAML)
	if err != nil {
		panic("conversation: embedded keywords.yaml is invalid: " + err.Error())
	}
	return kw
}

// LoadKeywords reads a trigger table from a YAML file.
func LoadKeywords(path string) (Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords file: %w", err)
	}
	return ParseKeywords(data)
}

// ParseKeywords decodes and validates a YAML trigger table.
// Triggers are lower-cased so matching stays case-insensitive.
func ParseKeywords(data []byte) (Keywords, error) {
	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return Keywords{}, fmt.Errorf("parse keywords: %w", err)
	}
	if len(kw.Topics) == 0 {
		return Keywords{}, errors.New("keywords: at least one topic is required")
	}
	seen := make(map[domain.Topic]bool, len(kw.Topics))
	for i := range kw.Topics {
		t := &kw.Topics[i]
		if t.Name == "" {
			return Keywords{}, fmt.Errorf("keywords: topic %d has no name", i)
		}
		if t.Name == domain.TopicGeneral {
			return Keywords{}, fmt.Errorf("keywords: %q is the default topic and cannot have triggers", t.Name)
		}
		if seen[t.Name] {
			return Keywords{}, fmt.Errorf("keywords: duplicate topic %q", t.Name)
		}
		seen[t.Name] = true
		t.Triggers = normalize(t.Triggers)
	}
	kw.Remedy = normalize(kw.Remedy)
	kw.Specificity = normalize(kw.Specificity)
	kw.Critical = normalize(kw.Critical)
	kw.RemedyAsk = normalize(kw.RemedyAsk)
	return kw, nil
}

// wordMatcher matches any of a list of words or phrases on word boundaries,
// so "plan" does not fire on "planets" and "gem" not on "management".
type wordMatcher struct {
	re *regexp.Regexp
}

func newWordMatcher(words []string) wordMatcher {
	if len(words) == 0 {
		return wordMatcher{}
	}
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	return wordMatcher{re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

// Match reports whether lower (already lower-cased) contains any entry.
func (m wordMatcher) Match(lower string) bool {
	return m.re != nil && m.re.MatchString(lower)
}

// Count returns the number of distinct entries found in lower.
func (m wordMatcher) Count(lower string) int {
	if m.re == nil {
		return 0
	}
	seen := make(map[string]bool)
	for _, w := range m.re.FindAllString(lower, -1) {
		seen[w] = true
	}
	return len(seen)
}

func normalize(words []string) []string {
	out := words[:0]
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func countMatches(s string, subs []string) int {
	n := 0
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}
