// Package reply decides whether a comment gets an automated answer and
// produces that answer.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/time/rate"
)

const (
	LanguageBengali = "bengali"
	LanguageOther   = "others"
)

// Reasons attached to suppressed decisions.
const (
	ReasonOffensive     = "offensive"
	ReasonGenericReply  = "generic_reply"
	ReasonProviderError = "provider_error"
	ReasonEmptyReply    = "empty_reply"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = time.Minute

var ErrNoProvider = errors.New("generation provider is not configured")

// Phrases that mark a generated text as a non-answer.
var genericPhrases = []string{
	"since there is no post content",
	"since there is no comment",
	"cannot generate reply",
	"not enough information",
	"sorry i cannot",
	"since there is no",
	"instruction",
	"reply",
	"i am",
}

type Provider interface {
	ClassifyOffensive(ctx context.Context, text string) (bool, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

type Input struct {
	Comment       string
	Post          string
	Hint          string // preset reply to weave into the answer, optional
	AuthorName    string
	AuthorProfile string
}

type Decision struct {
	Text      string
	Offensive bool
	Reason    string
}

// Deliver reports whether the decision carries a reply that may be posted.
func (d Decision) Deliver() bool {
	return !d.Offensive && d.Text != ""
}

func suppressed(reason string) Decision {
	return Decision{Offensive: true, Reason: reason}
}

type Classifier struct {
	provider     Provider
	instructions *Instructions
	limiter      *rate.Limiter
	denylist     []string
	callTimeout  time.Duration
}

type ClassifierOption func(*Classifier)

// WithProviderTimeout sets the budget of each provider call. Limiter waits
// are not counted against it.
func WithProviderTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// NewClassifier builds a classifier. personaNames are the page owner's
// names; generated text mentioning them is treated as a non-answer.
// A nil limiter disables rate shaping.
func NewClassifier(provider Provider, instructions *Instructions, limiter *rate.Limiter, personaNames []string, opts ...ClassifierOption) *Classifier {
	if instructions == nil {
		instructions = NewInstructions("")
	}

	denylist := make([]string, 0, len(genericPhrases)+len(personaNames))
	denylist = append(denylist, genericPhrases...)
	for _, name := range personaNames {
		if name = strings.TrimSpace(name); name != "" {
			denylist = append(denylist, cases.Fold().String(name))
		}
	}

	c := &Classifier{
		provider:     provider,
		instructions: instructions,
		limiter:      limiter,
		denylist:     denylist,
		callTimeout:  DefaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never returns an error: any failure yields a suppressed decision.
// ctx bounds the limiter waits; every provider call gets its own timeout.
func (c *Classifier) Classify(ctx context.Context, in Input) Decision {
	if c.provider == nil {
		slog.Error("AI reply generation failed", "error", ErrNoProvider)
		return suppressed(ReasonProviderError)
	}

	if err := c.wait(ctx); err != nil {
		slog.Error("AI reply generation failed", "error", err)
		return suppressed(ReasonProviderError)
	}

	offensive, err := c.classifyOffensive(ctx, in.Comment)
	if err != nil {
		slog.Error("AI reply generation failed", "step", "classify", "error", err)
		return suppressed(ReasonProviderError)
	}
	if offensive {
		return suppressed(ReasonOffensive)
	}

	prompt := BuildPrompt(in, c.instructions.Get())

	if err := c.wait(ctx); err != nil {
		slog.Error("AI reply generation failed", "error", err)
		return suppressed(ReasonProviderError)
	}

	generated, err := c.generate(ctx, prompt)
	if err != nil {
		slog.Error("AI reply generation failed", "step", "generate", "error", err)
		return suppressed(ReasonProviderError)
	}

	text := strings.TrimSpace(generated)
	if text == "" {
		return suppressed(ReasonEmptyReply)
	}

	if phrase, ok := c.genericPhrase(text); ok {
		slog.Info("AI generated a generic reply, skipping", "phrase", phrase)
		return suppressed(ReasonGenericReply)
	}

	return Decision{Text: text}
}

func (c *Classifier) classifyOffensive(ctx context.Context, text string) (bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.provider.ClassifyOffensive(callCtx, text)
}

func (c *Classifier) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.provider.Generate(callCtx, prompt)
}

func (c *Classifier) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
}

func (c *Classifier) genericPhrase(text string) (string, bool) {
	lowered := cases.Fold().String(text)
	for _, phrase := range c.denylist {
		if strings.Contains(lowered, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func (c *Classifier) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// BuildPrompt assembles the generation prompt for one comment.
func BuildPrompt(in Input, instructions string) string {
	var b strings.Builder

	if instructions != "" {
		b.WriteString("\n\nAdditional Instructions:\n")
		b.WriteString(instructions)
	}

	fmt.Fprintf(&b, "\n\nMy post: %s\nPerson's comment to my post: %s\nComment language: %s\n\nNow reply to that as me\n",
		in.Post, in.Comment, DetectLanguage(in.Comment))

	if in.Hint != "" {
		fmt.Fprintf(&b, "including %s in the reply ", in.Hint)
	}

	return b.String()
}

// DetectLanguage returns LanguageBengali when any rune falls in the Bengali block.
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= '\u0980' && r <= '\u09FF' {
			return LanguageBengali
		}
	}
	return LanguageOther
}
