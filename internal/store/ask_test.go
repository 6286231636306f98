// ABOUTME: Tests for ask: retrieval envelopes, citations, synthesis, fallbacks
// ABOUTME: Uses a fake synthesizer; no network involved

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSynthesizer struct {
	answer    string
	err       error
	calls     int
	questions []string
	fragments [][]Fragment
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, question string, fragments []Fragment) (string, error) {
	f.calls++
	f.questions = append(f.questions, question)
	f.fragments = append(f.fragments, fragments)
	return f.answer, f.err
}

func seedAsk(t *testing.T, m *Memory) {
	t.Helper()
	ctx := context.Background()

	_, err := m.PutWithOptions(ctx, []byte("the capital of France is Paris"), PutOptions{
		URI: "facts/france.txt", Timestamp: 100,
	})
	require.NoError(t, err)
	_, err = m.PutWithOptions(ctx, []byte("the capital of Japan is Tokyo"), PutOptions{
		URI: "facts/japan.txt", Timestamp: 200,
	})
	require.NoError(t, err)
}

func TestAsk_ContextOnlyWithoutSynthesizer(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)

	resp, err := m.Ask(context.Background(), AskRequest{Question: "capital of France"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "capital of France", resp.Question)
	assert.Equal(t, ModeHybrid, resp.Mode, "empty mode defaults to hybrid")
	assert.Equal(t, RetrieverLexFallback, resp.Retriever, "no vector index, so hybrid degrades")
	assert.True(t, resp.ContextOnly)
	assert.Empty(t, resp.Answer)

	require.NotEmpty(t, resp.Fragments)
	assert.Equal(t, SearchEngine, resp.Retrieval.Engine)
	assert.NotEmpty(t, resp.Retrieval.Context)
	assert.Contains(t, resp.Retrieval.Context, "[1] facts/")
}

func TestAsk_LexMode(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)

	resp, err := m.Ask(context.Background(), AskRequest{Question: "capital", Mode: ModeLex}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeLex, resp.Mode)
	assert.Equal(t, RetrieverLex, resp.Retriever)
}

func TestAsk_InvalidMode(t *testing.T) {
	m := setupTestMemory(t)

	_, err := m.Ask(context.Background(), AskRequest{Question: "q", Mode: "quantum"}, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidQuery))
}

func TestAsk_BlankQuestion(t *testing.T) {
	m := setupTestMemory(t)

	_, err := m.Ask(context.Background(), AskRequest{Question: "  "}, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidQuery))
}

func TestAsk_CitationsMirrorFragments(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)

	resp, err := m.Ask(context.Background(), AskRequest{Question: "capital"}, nil)
	require.NoError(t, err)

	require.Equal(t, len(resp.Fragments), len(resp.Citations))
	for i, citation := range resp.Citations {
		fragment := resp.Fragments[i]
		assert.Equal(t, fragment.Rank, citation.Index)
		assert.Equal(t, fragment.FrameID, citation.FrameID)
		assert.Equal(t, fragment.URI, citation.URI)
		assert.Equal(t, fragment.Score, citation.Score)
	}
}

func TestAsk_FragmentKinds(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)

	resp, err := m.Ask(context.Background(), AskRequest{Question: "France"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Fragments)

	// Short documents come back whole.
	assert.Equal(t, FragmentFull, resp.Fragments[0].Kind)
	assert.Nil(t, resp.Fragments[0].ChunkRange, "unchunked frames have no chunk range")
}

func TestAsk_ChunkRangeOnChunkHits(t *testing.T) {
	m := setupTestMemory(t, WithChunkChars(40))
	ctx := context.Background()

	_, err := m.Put(ctx, []byte("padding filler padding filler padding filler padding distinctive"))
	require.NoError(t, err)

	resp, err := m.Ask(ctx, AskRequest{Question: "distinctive"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Fragments)

	fragment := resp.Fragments[0]
	require.NotNil(t, fragment.ChunkRange)
	assert.Equal(t, fragment.ChunkRange[0]+1, fragment.ChunkRange[1], "a chunk hit covers exactly one chunk")
}

func TestAsk_WithSynthesizer(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)
	synth := &fakeSynthesizer{answer: "Paris."}

	resp, err := m.Ask(context.Background(), AskRequest{
		Question:    "capital of France",
		ContextOnly: false,
	}, synth)
	require.NoError(t, err)

	assert.False(t, resp.ContextOnly)
	assert.Equal(t, "Paris.", resp.Answer)
	assert.Equal(t, 1, synth.calls)
	require.Len(t, synth.questions, 1)
	assert.Equal(t, "capital of France", synth.questions[0])
	assert.Equal(t, resp.Fragments, synth.fragments[0], "the synthesizer sees the response fragments")
}

func TestAsk_ContextOnlyRequestSkipsSynthesis(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)
	synth := &fakeSynthesizer{answer: "unused"}

	resp, err := m.Ask(context.Background(), AskRequest{
		Question:    "capital",
		ContextOnly: true,
	}, synth)
	require.NoError(t, err)

	assert.True(t, resp.ContextOnly)
	assert.Empty(t, resp.Answer)
	assert.Zero(t, synth.calls)
}

func TestAsk_SynthesizerFailure(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)
	synth := &fakeSynthesizer{err: errors.New("model unavailable")}

	_, err := m.Ask(context.Background(), AskRequest{Question: "capital"}, synth)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSynthesisFailed))
}

func TestAsk_TimelineFallback(t *testing.T) {
	m := setupTestMemory(t)
	seedAsk(t, m)
	ctx := context.Background()

	// Without the lexical index, ask serves recent timeline entries.
	_, err := m.db.Exec("DROP TABLE frames_fts")
	require.NoError(t, err)

	resp, err := m.Ask(ctx, AskRequest{Question: "capital"}, nil)
	require.NoError(t, err)

	assert.Equal(t, RetrieverTimelineFallback, resp.Retriever)
	assert.Equal(t, "timeline", resp.Retrieval.Engine)
	require.Len(t, resp.Retrieval.Hits, 2)
	assert.Equal(t, uint64(1), resp.Retrieval.Hits[0].FrameID, "newest first")
	assert.Nil(t, resp.Retrieval.Hits[0].Score, "timeline hits carry no relevance score")
}

func TestAsk_TopKBoundsRetrieval(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := m.Put(ctx, []byte("repeated needle content"))
		require.NoError(t, err)
	}

	resp, err := m.Ask(ctx, AskRequest{Question: "needle", TopK: 2}, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Fragments, 2)
	assert.Equal(t, uint64(5), resp.Retrieval.TotalHits)
	assert.NotEmpty(t, resp.Retrieval.NextCursor)
}

func TestBuildContext(t *testing.T) {
	score := 1.5
	fragments := []Fragment{
		{Rank: 1, URI: "notes/a.txt", Text: "alpha text", Score: &score},
		{Rank: 2, Title: "Untitled Note", Text: "beta text"},
	}

	context := buildContext(fragments)
	assert.Contains(t, context, "[1] notes/a.txt\nalpha text")
	assert.Contains(t, context, "[2] Untitled Note\nbeta text")
	assert.Empty(t, buildContext(nil))
}
