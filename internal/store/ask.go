// ABOUTME: Question answering over retrieved context with citation tracking
// ABOUTME: Falls back from semantic to lexical to timeline retrieval as indexes allow

package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Ask modes requested by callers.
const (
	ModeLex    = "lex"
	ModeSem    = "sem"
	ModeHybrid = "hybrid"
)

// Retrievers actually used, reported in responses. Without a vector index,
// sem and hybrid degrade to lex_fallback; without a lexical index the
// engine serves recent timeline entries.
const (
	RetrieverLex              = "lex"
	RetrieverSemantic         = "semantic"
	RetrieverHybrid           = "hybrid"
	RetrieverLexFallback      = "lex_fallback"
	RetrieverTimelineFallback = "timeline_fallback"
)

// Fragment kinds.
const (
	FragmentFull    = "full"
	FragmentSummary = "summary"
)

// AskRequest phrases a question over the store. Zero TopK and SnippetChars
// fall back to 10 and 200; an empty Mode means hybrid.
type AskRequest struct {
	Question     string
	TopK         int
	SnippetChars int
	URI          string
	Scope        string
	Cursor       string

	// Start and End bound retrieval timestamps, inclusive.
	Start *int64
	End   *int64

	// ContextOnly skips synthesis even when a synthesizer is available.
	ContextOnly bool

	Mode string

	// AsOfFrame and AsOfTS retrieve as of an earlier frame id or time.
	AsOfFrame *uint64
	AsOfTS    *int64
}

// Fragment is one piece of retrieved context.
type Fragment struct {
	Rank       int
	FrameID    uint64
	URI        string
	Title      string
	Score      *float64
	Matches    uint64
	Range      [2]int
	ChunkRange *[2]uint64
	Text       string
	Kind       string
}

// Citation points an answer at its supporting fragment.
type Citation struct {
	Index      int
	FrameID    uint64
	URI        string
	ChunkRange *[2]uint64
	Score      *float64
}

// AskStats carries phase timings in milliseconds.
type AskStats struct {
	RetrievalMS uint64
	SynthesisMS uint64
	LatencyMS   uint64
}

// AskResponse is the full answer envelope.
type AskResponse struct {
	Question    string
	Mode        string
	Retriever   string
	ContextOnly bool
	Retrieval   *SearchResponse
	Answer      string
	Citations   []Citation
	Fragments   []Fragment
	Stats       AskStats
}

// Synthesizer produces an answer from retrieved context. Implementations
// live outside the engine; Ask accepts nil and stays context-only.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, fragments []Fragment) (string, error)
}

// Ask retrieves context for a question and optionally synthesizes an
// answer. The response always carries the retrieval, fragments and
// citations; Answer stays empty in context-only runs.
func (m *Memory) Ask(ctx context.Context, req AskRequest, synth Synthesizer) (*AskResponse, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, errf(KindInvalidQuery, "question must not be blank")
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	switch mode {
	case ModeLex, ModeSem, ModeHybrid:
	default:
		return nil, errf(KindInvalidQuery, "unknown ask mode %q", req.Mode)
	}

	retriever := RetrieverLex
	if mode != ModeLex {
		// No vector index in this build; sem and hybrid retrieve lexically.
		retriever = RetrieverLexFallback
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	started := time.Now()
	retrieval, err := m.Search(ctx, SearchRequest{
		Query:        req.Question,
		TopK:         topK,
		SnippetChars: req.SnippetChars,
		URI:          req.URI,
		Scope:        req.Scope,
		Cursor:       req.Cursor,
		Start:        req.Start,
		End:          req.End,
		AsOfFrame:    req.AsOfFrame,
		AsOfTS:       req.AsOfTS,
	})
	if IsKind(err, KindLexNotEnabled) {
		retrieval, err = m.timelineRetrieval(ctx, req.Question, topK)
		retriever = RetrieverTimelineFallback
	}
	if err != nil {
		return nil, err
	}
	retrievalMS := uint64(time.Since(started).Milliseconds())

	fragments := fragmentsFromHits(retrieval.Hits)
	retrieval.Context = buildContext(fragments)

	citations := make([]Citation, 0, len(fragments))
	for _, fragment := range fragments {
		citations = append(citations, Citation{
			Index:      fragment.Rank,
			FrameID:    fragment.FrameID,
			URI:        fragment.URI,
			ChunkRange: fragment.ChunkRange,
			Score:      fragment.Score,
		})
	}

	resp := &AskResponse{
		Question:    req.Question,
		Mode:        mode,
		Retriever:   retriever,
		ContextOnly: req.ContextOnly || synth == nil,
		Retrieval:   retrieval,
		Citations:   citations,
		Fragments:   fragments,
	}

	var synthesisMS uint64
	if synth != nil && !req.ContextOnly {
		synthStarted := time.Now()
		answer, err := synth.Synthesize(ctx, req.Question, fragments)
		if err != nil {
			return nil, wrapf(KindSynthesisFailed, err, "synthesizing answer")
		}
		synthesisMS = uint64(time.Since(synthStarted).Milliseconds())
		resp.Answer = answer
	}

	resp.Stats = AskStats{
		RetrievalMS: retrievalMS,
		SynthesisMS: synthesisMS,
		LatencyMS:   uint64(time.Since(started).Milliseconds()),
	}

	m.logger.Debug("ask", "question", req.Question, "retriever", retriever, "fragments", len(fragments))
	return resp, nil
}

// timelineRetrieval serves recent frames when no lexical index exists.
func (m *Memory) timelineRetrieval(ctx context.Context, question string, topK int) (*SearchResponse, error) {
	entries, err := m.Timeline(ctx, TimelineQuery{Limit: uint64(topK), Reverse: true})
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{Query: question, Engine: "timeline"}
	for i, entry := range entries {
		resp.Hits = append(resp.Hits, SearchHit{
			Rank:    i + 1,
			FrameID: entry.FrameID,
			URI:     entry.URI,
			Text:    entry.Preview,
			Range:   [2]int{0, len([]rune(entry.Preview))},
			Tags:    []string{},
			Labels:  []string{},
		})
	}
	resp.TotalHits = uint64(len(resp.Hits))
	return resp, nil
}

func fragmentsFromHits(hits []SearchHit) []Fragment {
	fragments := make([]Fragment, 0, len(hits))
	for _, hit := range hits {
		kind := FragmentSummary
		if hit.TextIsFull {
			kind = FragmentFull
		}
		var chunkRange *[2]uint64
		if hit.ChunkIndex != nil {
			chunkRange = &[2]uint64{*hit.ChunkIndex, *hit.ChunkIndex + 1}
		}
		fragments = append(fragments, Fragment{
			Rank:       hit.Rank,
			FrameID:    hit.FrameID,
			URI:        hit.URI,
			Title:      hit.Title,
			Score:      hit.Score,
			Matches:    hit.Matches,
			Range:      hit.Range,
			ChunkRange: chunkRange,
			Text:       hit.Text,
			Kind:       kind,
		})
	}
	return fragments
}

// buildContext renders fragments into the prompt-ready context block.
func buildContext(fragments []Fragment) string {
	if len(fragments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, fragment := range fragments {
		fmt.Fprintf(&b, "[%d]", fragment.Rank)
		switch {
		case fragment.URI != "":
			fmt.Fprintf(&b, " %s", fragment.URI)
		case fragment.Title != "":
			fmt.Fprintf(&b, " %s", fragment.Title)
		}
		b.WriteByte('\n')
		b.WriteString(fragment.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
