// ABOUTME: Tests for lexical search: ranking, snippets, filters, cursor paging
// ABOUTME: Covers blank and no-term queries, as-of views, and chunk hit projection

package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_RanksByRelevance(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	dense, err := m.PutWithOptions(ctx, []byte("needle needle needle"), PutOptions{URI: "notes/dense.txt"})
	require.NoError(t, err)
	sparse, err := m.PutWithOptions(ctx, []byte("a single needle buried in a large haystack of other words"), PutOptions{URI: "notes/sparse.txt"})
	require.NoError(t, err)
	_, err = m.Put(ctx, []byte("nothing relevant here"))
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "needle"})
	require.NoError(t, err)

	assert.Equal(t, "needle", resp.Query)
	assert.Equal(t, SearchEngine, resp.Engine)
	assert.Equal(t, uint64(2), resp.TotalHits)
	require.Len(t, resp.Hits, 2)

	assert.Equal(t, dense, resp.Hits[0].FrameID, "the denser match ranks first")
	assert.Equal(t, sparse, resp.Hits[1].FrameID)
	assert.Equal(t, 1, resp.Hits[0].Rank)
	assert.Equal(t, 2, resp.Hits[1].Rank)

	require.NotNil(t, resp.Hits[0].Score)
	require.NotNil(t, resp.Hits[1].Score)
	assert.Greater(t, *resp.Hits[0].Score, *resp.Hits[1].Score, "scores are higher-is-better")

	assert.Equal(t, uint64(3), resp.Hits[0].Matches)
	assert.Equal(t, "notes/dense.txt", resp.Hits[0].URI)
	assert.Empty(t, resp.NextCursor, "a single page has no next cursor")
}

func TestSearch_BlankQuery(t *testing.T) {
	m := setupTestMemory(t)

	_, err := m.Search(context.Background(), SearchRequest{Query: "   "})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidQuery))
}

func TestSearch_EmptyStore(t *testing.T) {
	m := setupTestMemory(t)

	resp, err := m.Search(context.Background(), SearchRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Zero(t, resp.TotalHits)
	assert.Empty(t, resp.Hits)
	assert.Equal(t, SearchEngine, resp.Engine)
}

func TestSearch_NoUsableTerms(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()
	_, err := m.Put(ctx, []byte("content that will not be reached"))
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "!!! ???"})
	require.NoError(t, err)
	assert.Zero(t, resp.TotalHits)
	assert.Empty(t, resp.Hits)
}

func TestSearch_QuotesHostileInput(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()
	_, err := m.Put(ctx, []byte("ordinary text"))
	require.NoError(t, err)

	// FTS5 operators in the query must not reach the parser.
	for _, query := range []string{`AND OR NOT`, `"unbalanced`, `col:value`, `(boom`} {
		_, err := m.Search(ctx, SearchRequest{Query: query})
		require.NoError(t, err, "query %q should not hit index syntax", query)
	}
}

func TestSearch_Cursor(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Put(ctx, []byte("paged needle content number "+strings.Repeat("x", i)))
		require.NoError(t, err)
	}

	var seen []uint64
	cursor := ""
	pages := 0
	for {
		resp, err := m.Search(ctx, SearchRequest{Query: "needle", TopK: 1, Cursor: cursor})
		require.NoError(t, err)
		require.Len(t, resp.Hits, 1)
		assert.Equal(t, uint64(3), resp.TotalHits)
		assert.Equal(t, pages+1, resp.Hits[0].Rank, "rank continues across pages")
		seen = append(seen, resp.Hits[0].FrameID)
		pages++
		if resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.ElementsMatch(t, []uint64{0, 1, 2}, seen, "paging covers every hit exactly once")
}

func TestSearch_BadCursor(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	for _, cursor := range []string{"junk", "c1:x", "c1:-3", "c2:0"} {
		_, err := m.Search(ctx, SearchRequest{Query: "needle", Cursor: cursor})
		require.Error(t, err, "cursor %q", cursor)
		assert.True(t, IsKind(err, KindInvalidCursor))
	}
}

func TestSearch_URIFilter(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	a, err := m.PutWithOptions(ctx, []byte("shared topic in file a"), PutOptions{URI: "notes/a.md"})
	require.NoError(t, err)
	_, err = m.PutWithOptions(ctx, []byte("shared topic in file b"), PutOptions{URI: "mail/b.md"})
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "shared", URI: "notes/a.md"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, a, resp.Hits[0].FrameID)
}

func TestSearch_ScopeFilter(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	a, err := m.PutWithOptions(ctx, []byte("shared topic in file a"), PutOptions{URI: "notes/a.md"})
	require.NoError(t, err)
	_, err = m.PutWithOptions(ctx, []byte("shared topic in file b"), PutOptions{URI: "mail/b.md"})
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "shared", Scope: "notes/"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, a, resp.Hits[0].FrameID)

	// A scope with SQL LIKE wildcards matches literally, not as a pattern.
	resp, err = m.Search(ctx, SearchRequest{Query: "shared", Scope: "%"})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
}

func TestSearch_TimeBounds(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	early, err := m.PutWithOptions(ctx, []byte("bounded needle early"), PutOptions{Timestamp: 100})
	require.NoError(t, err)
	late, err := m.PutWithOptions(ctx, []byte("bounded needle late"), PutOptions{Timestamp: 300})
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "needle", Start: i64Ptr(200)})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, late, resp.Hits[0].FrameID)

	resp, err = m.Search(ctx, SearchRequest{Query: "needle", End: i64Ptr(200)})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, early, resp.Hits[0].FrameID)
}

func TestSearch_AsOfFrame(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	first, err := m.Put(ctx, []byte("saw the needle first"))
	require.NoError(t, err)
	_, err = m.Put(ctx, []byte("saw the needle second"))
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "needle", AsOfFrame: u64Ptr(first)})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, first, resp.Hits[0].FrameID, "later frames are invisible as of an earlier frame")
}

func TestSearch_SnippetForShortText(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	text := "the needle sits in plain view"
	_, err := m.Put(ctx, []byte(text))
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "needle"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)

	hit := resp.Hits[0]
	assert.Equal(t, text, hit.Text, "short texts are returned whole")
	assert.Equal(t, [2]int{0, len([]rune(text))}, hit.Range)
	assert.Equal(t, uint64(1), hit.Matches)
}

func TestSearch_SnippetWindowsLongText(t *testing.T) {
	text := strings.Repeat("padding words here ", 20) + "needle" + strings.Repeat(" trailing tail", 10)
	snippet, start, end, matches, full := snippetFor(text, []string{"needle"}, 40)

	assert.False(t, full)
	assert.Contains(t, snippet, "needle")
	assert.LessOrEqual(t, len([]rune(snippet)), 40)
	assert.Equal(t, uint64(1), matches)

	runes := []rune(text)
	assert.Equal(t, snippet, string(runes[start:end]), "the range addresses the snippet in rune offsets")
}

func TestSearch_ChunkHitsProjectParent(t *testing.T) {
	m := setupTestMemory(t, WithChunkChars(40))
	ctx := context.Background()

	parent, err := m.PutWithOptions(ctx,
		[]byte(strings.Repeat("filler words ", 8)+"distinctive"),
		PutOptions{URI: "docs/big.txt", Title: "Big Doc"},
	)
	require.NoError(t, err)

	resp, err := m.Search(ctx, SearchRequest{Query: "distinctive"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)

	hit := resp.Hits[0]
	assert.NotEqual(t, parent, hit.FrameID, "the hit is the chunk frame")
	assert.Equal(t, "docs/big.txt", hit.URI, "chunk hits borrow the parent URI")
	assert.Equal(t, "Big Doc", hit.Title)
	require.NotNil(t, hit.ChunkIndex)
}

func TestSearch_LexIndexMissing(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	_, err := m.db.Exec("DROP TABLE frames_fts")
	require.NoError(t, err)

	_, err = m.Search(ctx, SearchRequest{Query: "anything"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLexNotEnabled))
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta"}, queryTerms("Alpha, BETA! alpha"))
	assert.Empty(t, queryTerms("!!! ---"))

	many := strings.Repeat("a b c d e f g h i j k l m n o p q r s t ", 2)
	assert.Len(t, queryTerms(many), 16, "terms are capped")
}

func TestParseCursor(t *testing.T) {
	offset, err := parseCursor("")
	require.NoError(t, err)
	assert.Zero(t, offset)

	offset, err = parseCursor("c1:25")
	require.NoError(t, err)
	assert.Equal(t, 25, offset)

	_, err = parseCursor("25")
	assert.True(t, IsKind(err, KindInvalidCursor))
}
