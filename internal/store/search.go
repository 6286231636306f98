// ABOUTME: Lexical search over the FTS5 index with cursor pagination
// ABOUTME: Snippets, char ranges and match counts are computed from the stored text

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// SearchEngine names the lexical backend in search responses.
const SearchEngine = "fts5"

// SearchRequest selects and pages matching frames. Zero TopK and
// SnippetChars fall back to 10 and 200.
type SearchRequest struct {
	Query        string
	TopK         int
	SnippetChars int

	// URI restricts hits to frames with exactly this URI.
	URI string

	// Scope restricts hits to frames whose URI starts with this prefix.
	Scope string

	// Cursor resumes a previous search from its NextCursor.
	Cursor string

	// Start and End bound frame timestamps, inclusive.
	Start *int64
	End   *int64

	// AsOfFrame and AsOfTS answer "what did the store know then": hits are
	// limited to frames at or before the given id or timestamp.
	AsOfFrame *uint64
	AsOfTS    *int64
}

// SearchHit is one ranked match. Chunk hits surface their parent's URI and
// title.
type SearchHit struct {
	Rank    int
	FrameID uint64
	URI     string
	Title   string
	Text    string
	Range   [2]int
	Matches uint64
	Score   *float64
	Tags    []string
	Labels  []string

	// Chunk linkage and full-text marker, used by Ask when building
	// context fragments.
	ChunkIndex *uint64
	ChunkCount *uint64
	TextIsFull bool
}

// SearchResponse is a page of hits. NextCursor is empty once exhausted.
type SearchResponse struct {
	Query      string
	ElapsedMS  uint64
	TotalHits  uint64
	Hits       []SearchHit
	Context    string
	NextCursor string
	Engine     string
}

// Search runs a lexical query. A blank query fails with KindInvalidQuery;
// an empty store returns a well-formed zero-hit response.
func (m *Memory) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errf(KindInvalidQuery, "query must not be blank")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	snippetChars := req.SnippetChars
	if snippetChars <= 0 {
		snippetChars = 200
	}

	var ftsPresent int
	if err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE name = 'frames_fts'",
	).Scan(&ftsPresent); err != nil {
		return nil, wrapf(KindIo, err, "probing lexical index")
	}
	if ftsPresent == 0 {
		return nil, errf(KindLexNotEnabled, "lexical index is missing from this store")
	}

	offset, err := parseCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp := &SearchResponse{Query: req.Query, Engine: SearchEngine}

	terms := queryTerms(req.Query)
	if len(terms) == 0 {
		resp.ElapsedMS = uint64(time.Since(started).Milliseconds())
		return resp, nil
	}

	where, args := searchFilters(req, terms)

	var total uint64
	countQuery := `
		SELECT COUNT(*)
		FROM frames_fts
		JOIN frames f ON f.id = frames_fts.rowid
		LEFT JOIN frames p ON p.id = f.parent_id
		WHERE ` + where
	if err := m.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, wrapf(KindIo, err, "counting matches")
	}

	pageQuery := `
		SELECT f.id, COALESCE(f.uri, p.uri), COALESCE(f.title, p.title), f.search_text,
		       f.tags, f.labels, f.chunk_index, f.chunk_count, bm25(frames_fts) AS rank_score
		FROM frames_fts
		JOIN frames f ON f.id = frames_fts.rowid
		LEFT JOIN frames p ON p.id = f.parent_id
		WHERE ` + where + `
		ORDER BY rank_score, f.id
		LIMIT ? OFFSET ?`
	rows, err := m.db.QueryContext(ctx, pageQuery, append(args, topK, offset)...)
	if err != nil {
		return nil, wrapf(KindIo, err, "searching")
	}
	defer rows.Close()

	for rows.Next() {
		hit, err := scanHit(rows, terms, snippetChars)
		if err != nil {
			return nil, err
		}
		hit.Rank = offset + len(resp.Hits) + 1
		resp.Hits = append(resp.Hits, *hit)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapf(KindIo, err, "searching")
	}

	resp.TotalHits = total
	if uint64(offset+len(resp.Hits)) < total {
		resp.NextCursor = encodeCursor(offset + len(resp.Hits))
	}
	resp.ElapsedMS = uint64(time.Since(started).Milliseconds())

	m.logger.Debug("search", "query", req.Query, "hits", len(resp.Hits), "total", total)
	return resp, nil
}

// searchFilters builds the shared WHERE clause for count and page queries.
func searchFilters(req SearchRequest, terms []string) (string, []any) {
	conds := []string{"frames_fts MATCH ?", "f.status = 'active'"}
	args := []any{matchExpression(terms)}

	if req.URI != "" {
		conds = append(conds, "COALESCE(f.uri, p.uri) = ?")
		args = append(args, req.URI)
	}
	if req.Scope != "" {
		conds = append(conds, "substr(COALESCE(f.uri, p.uri), 1, length(?)) = ?")
		args = append(args, req.Scope, req.Scope)
	}
	if req.Start != nil {
		conds = append(conds, "f.ts >= ?")
		args = append(args, *req.Start)
	}
	if req.End != nil {
		conds = append(conds, "f.ts <= ?")
		args = append(args, *req.End)
	}
	if req.AsOfFrame != nil {
		conds = append(conds, "f.id <= ?")
		args = append(args, *req.AsOfFrame)
	}
	if req.AsOfTS != nil {
		conds = append(conds, "f.ts <= ?")
		args = append(args, *req.AsOfTS)
	}
	return strings.Join(conds, " AND "), args
}

type hitScanner interface {
	Scan(dest ...any) error
}

func scanHit(row hitScanner, terms []string, snippetChars int) (*SearchHit, error) {
	var hit SearchHit
	var uri, title sql.NullString
	var searchText, tagsJSON, labelsJSON string
	var chunkIndex, chunkCount sql.NullInt64
	var rankScore float64

	err := row.Scan(&hit.FrameID, &uri, &title, &searchText, &tagsJSON, &labelsJSON,
		&chunkIndex, &chunkCount, &rankScore)
	if err != nil {
		return nil, wrapf(KindIo, err, "scanning hit")
	}

	hit.URI = uri.String
	hit.Title = title.String
	if err := decodeJSONList(tagsJSON, &hit.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSONList(labelsJSON, &hit.Labels); err != nil {
		return nil, err
	}
	if chunkIndex.Valid {
		v := uint64(chunkIndex.Int64)
		hit.ChunkIndex = &v
	}
	if chunkCount.Valid {
		v := uint64(chunkCount.Int64)
		hit.ChunkCount = &v
	}

	// bm25 ranks better matches lower (more negative); report relevance
	// with higher-is-better sign.
	score := -rankScore
	hit.Score = &score

	text, start, end, matches, full := snippetFor(searchText, terms, snippetChars)
	hit.Text = text
	hit.Range = [2]int{start, end}
	hit.Matches = matches
	hit.TextIsFull = full
	return &hit, nil
}

// matchExpression quotes terms so user input can never hit FTS5 syntax.
func matchExpression(terms []string) string {
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " OR ")
}

// queryTerms tokenizes a query into lowercase alphanumeric terms, capped
// at 16.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var terms []string
	for _, field := range fields {
		if seen[field] {
			continue
		}
		seen[field] = true
		terms = append(terms, field)
		if len(terms) >= 16 {
			break
		}
	}
	return terms
}

// snippetFor extracts a window of at most maxChars runes around the first
// term occurrence, and counts term occurrences across the whole text. The
// returned range is in rune offsets; full reports whether the snippet is
// the entire text.
func snippetFor(text string, terms []string, maxChars int) (snippet string, start, end int, matches uint64, full bool) {
	lower := strings.ToLower(text)
	firstByte := -1
	for _, term := range terms {
		if idx := strings.Index(lower, term); idx >= 0 {
			if firstByte < 0 || idx < firstByte {
				firstByte = idx
			}
			matches += uint64(strings.Count(lower, term))
		}
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return text, 0, len(runes), matches, true
	}

	first := 0
	if firstByte > 0 {
		first = len([]rune(text[:firstByte]))
	}

	start = first - maxChars/5
	if start < 0 {
		start = 0
	}
	if start > len(runes)-maxChars {
		start = len(runes) - maxChars
	}
	end = start + maxChars

	// Snap to word boundaries where the window cuts mid-word.
	if start > 0 {
		for start < first && !unicode.IsSpace(runes[start-1]) {
			start++
		}
	}
	if end < len(runes) {
		for end > start+1 && !unicode.IsSpace(runes[end-1]) {
			end--
		}
	}
	return string(runes[start:end]), start, end, matches, false
}

const cursorPrefix = "c1:"

func encodeCursor(offset int) string {
	return cursorPrefix + strconv.Itoa(offset)
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	rest, ok := strings.CutPrefix(cursor, cursorPrefix)
	if !ok {
		return 0, errf(KindInvalidCursor, "unrecognized cursor %q", cursor)
	}
	offset, err := strconv.Atoi(rest)
	if err != nil || offset < 0 {
		return 0, errf(KindInvalidCursor, "unrecognized cursor %q", cursor)
	}
	return offset, nil
}

func decodeJSONList(encoded string, dest *[]string) error {
	if err := json.Unmarshal([]byte(encoded), dest); err != nil {
		return wrapf(KindDecode, err, "decoding list column")
	}
	return nil
}
