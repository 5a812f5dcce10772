package reply

import (
	"errors"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MatchThreshold is the share of a keyword's words that must appear in a
// comment for the keyword's preset reply to be used.
const MatchThreshold = 0.75

var ErrEmptyPreset = errors.New("empty key or reply detected")

type Preset struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Reply   string `json:"reply" yaml:"reply"`
}

// Valid reports whether both the keyword and the reply carry non-blank text.
func (p Preset) Valid() bool {
	return strings.TrimSpace(p.Keyword) != "" && strings.TrimSpace(p.Reply) != ""
}

func DefaultPresets() []Preset {
	return []Preset{
		{Keyword: "hi there", Reply: "Hi there too!"},
		{Keyword: "not so good", Reply: "We're sorry to hear that. Could you let us know what we can improve?"},
		{Keyword: "how are you", Reply: "I'm doing well! How about you?"},
		{Keyword: "rambunctious dinosaur", Reply: "That sounds like a wild dinosaur!"},
		{Keyword: "শুভ কামনা রইলো", Reply: "Thank you!"},
	}
}

// Presets is an insertion-ordered keyword → reply table. The first matching
// keyword in insertion order wins.
type Presets struct {
	mu      sync.RWMutex
	order   []string
	replies map[string]string
}

func NewPresets(items ...Preset) *Presets {
	p := &Presets{replies: make(map[string]string)}
	for _, item := range items {
		p.setLocked(item.Keyword, item.Reply)
	}
	return p
}

// Upsert stores every preset and reports which keywords were new and which replaced an existing reply.
func (p *Presets) Upsert(items []Preset) (added, updated []string, err error) {
	for _, item := range items {
		if !item.Valid() {
			return nil, nil, ErrEmptyPreset
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, item := range items {
		if _, ok := p.replies[item.Keyword]; ok {
			updated = append(updated, item.Keyword)
		} else {
			added = append(added, item.Keyword)
		}
		p.setLocked(item.Keyword, item.Reply)
	}
	return added, updated, nil
}

func (p *Presets) setLocked(keyword, reply string) {
	if _, ok := p.replies[keyword]; !ok {
		p.order = append(p.order, keyword)
	}
	p.replies[keyword] = reply
}

func (p *Presets) List() []Preset {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Preset, 0, len(p.order))
	for _, keyword := range p.order {
		out = append(out, Preset{Keyword: keyword, Reply: p.replies[keyword]})
	}
	return out
}

func (p *Presets) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// Match returns the reply of the first keyword whose words overlap the
// comment's words by at least MatchThreshold.
func (p *Presets) Match(comment string) (string, bool) {
	commentWords := wordSet(comment)

	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, keyword := range p.order {
		keywordWords := wordSet(keyword)
		if len(keywordWords) == 0 {
			continue
		}
		if meetsThreshold(sharedCount(keywordWords, commentWords), len(keywordWords)) {
			return p.replies[keyword], true
		}
	}
	return "", false
}

// Overlap returns |keyword ∩ comment| / |keyword| over normalized word sets,
// or 0 for a keyword without words.
func Overlap(keyword, comment string) float64 {
	keywordWords := wordSet(keyword)
	if len(keywordWords) == 0 {
		return 0
	}
	return float64(sharedCount(keywordWords, wordSet(comment))) / float64(len(keywordWords))
}

func meetsThreshold(shared, total int) bool {
	return total > 0 && float64(shared)/float64(total) >= MatchThreshold
}

func sharedCount(keywordWords, commentWords map[string]struct{}) int {
	shared := 0
	for word := range keywordWords {
		if _, ok := commentWords[word]; ok {
			shared++
		}
	}
	return shared
}

// wordSet drops punctuation, case-folds and splits on whitespace. Combining
// marks are kept so Bengali vowel signs survive normalization.
func wordSet(text string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsDigit(r), r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, norm.NFC.String(text))

	folded := cases.Fold().String(cleaned)

	words := strings.Fields(folded)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
