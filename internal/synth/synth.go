// ABOUTME: OpenAI-backed answer synthesizer for ask
// ABOUTME: Implements store.Synthesizer over chat completions; base URL is overridable

package synth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/engramdb/engram/internal/store"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You answer questions from retrieved memory fragments.
Use only the numbered fragments as source material and cite them as [n].
If the fragments do not contain the answer, say so plainly.`

// Options configure a Synthesizer. Only the API key is required.
type Options struct {
	APIKey  string
	BaseURL string        // empty means api.openai.com
	Model   string        // empty means DefaultModel
	Timeout time.Duration // 0 leaves the client without a timeout
}

// Synthesizer produces answers through the OpenAI chat completions API.
// It implements store.Synthesizer.
type Synthesizer struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

// New builds a Synthesizer from options.
func New(opts Options) (*Synthesizer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}))
	}

	return &Synthesizer{
		client: openai.NewClient(reqOpts...),
		model:  model,
		log:    slog.Default().With("component", "synth"),
	}, nil
}

// Synthesize renders the fragments into a prompt and asks the model for
// an answer.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, fragments []store.Fragment) (string, error) {
	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt(question, fragments)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	s.log.Debug("synthesized answer",
		"model", s.model,
		"fragments", len(fragments),
		"answer_chars", len(answer))
	return answer, nil
}

// prompt renders the user message: the question followed by the numbered
// fragments, labeled the same way citations reference them.
func prompt(question string, fragments []store.Fragment) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nFragments:\n")
	if len(fragments) == 0 {
		b.WriteString("(none)\n")
	}
	for _, fragment := range fragments {
		fmt.Fprintf(&b, "[%d]", fragment.Rank)
		switch {
		case fragment.URI != "":
			fmt.Fprintf(&b, " %s", fragment.URI)
		case fragment.Title != "":
			fmt.Fprintf(&b, " %s", fragment.Title)
		}
		b.WriteString("\n")
		b.WriteString(fragment.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
