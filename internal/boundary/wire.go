// ABOUTME: JSON wire schemas of the C surface and their engine conversions
// ABOUTME: Requests preset defaults before decoding so absent fields keep them

package boundary

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/engramdb/engram/internal/store"
)

// decodeJSON fills dest from an optional JSON parameter that the caller
// did pass. Unknown fields are ignored; fields absent from the document
// keep whatever defaults dest was preset with.
func decodeJSON(data []byte, param string, dest any) *Fault {
	if !utf8.Valid(data) {
		return invalidUTF8(param)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return jsonParse(param, err)
	}
	return nil
}

// requireJSON is decodeJSON for parameters that must be present.
func requireJSON(data []byte, param string, dest any) *Fault {
	if data == nil {
		return nullPointer(param)
	}
	return decodeJSON(data, param, dest)
}

func marshalResponse(v any) (string, *Fault) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", newFault(CodeEncode, "encoding response: %v", err)
	}
	return string(out), nil
}

// orEmpty keeps list fields as [] on the wire instead of null.
func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type putOptionsRequest struct {
	URI             string            `json:"uri"`
	Title           string            `json:"title"`
	Timestamp       int64             `json:"timestamp"`
	Track           string            `json:"track"`
	Kind            string            `json:"kind"`
	Tags            map[string]string `json:"tags"`
	Labels          []string          `json:"labels"`
	SearchText      string            `json:"search_text"`
	AutoTag         bool              `json:"auto_tag"`
	ExtractDates    bool              `json:"extract_dates"`
	ExtractTriplets bool              `json:"extract_triplets"`
	NoRaw           bool              `json:"no_raw"`
	Dedup           bool              `json:"dedup"`
}

func (r putOptionsRequest) engine() store.PutOptions {
	return store.PutOptions{
		URI:             r.URI,
		Title:           r.Title,
		Timestamp:       r.Timestamp,
		Track:           r.Track,
		Kind:            r.Kind,
		Tags:            r.Tags,
		Labels:          r.Labels,
		SearchText:      r.SearchText,
		AutoTag:         r.AutoTag,
		ExtractDates:    r.ExtractDates,
		ExtractTriplets: r.ExtractTriplets,
		NoRaw:           r.NoRaw,
		Dedup:           r.Dedup,
	}
}

type searchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
	SnippetChars int    `json:"snippet_chars"`
	URI          string `json:"uri"`
	Scope        string `json:"scope"`
	Cursor       string `json:"cursor"`
}

// defaultSearchRequest carries the documented wire defaults.
func defaultSearchRequest() searchRequest {
	return searchRequest{TopK: 10, SnippetChars: 200}
}

func (r searchRequest) engine() store.SearchRequest {
	return store.SearchRequest{
		Query:        r.Query,
		TopK:         r.TopK,
		SnippetChars: r.SnippetChars,
		URI:          r.URI,
		Scope:        r.Scope,
		Cursor:       r.Cursor,
	}
}

type searchHit struct {
	Rank    int      `json:"rank"`
	FrameID uint64   `json:"frame_id"`
	URI     string   `json:"uri"`
	Title   string   `json:"title"`
	Text    string   `json:"text"`
	Range   [2]int   `json:"range"`
	Matches uint64   `json:"matches"`
	Score   *float64 `json:"score"`
	Tags    []string `json:"tags"`
	Labels  []string `json:"labels"`
}

type searchResponse struct {
	Query      string      `json:"query"`
	ElapsedMS  uint64      `json:"elapsed_ms"`
	TotalHits  uint64      `json:"total_hits"`
	Hits       []searchHit `json:"hits"`
	Context    string      `json:"context"`
	NextCursor *string     `json:"next_cursor"`
	Engine     string      `json:"engine,omitempty"`
}

// wireSearchResponse projects an engine response onto the wire schema.
// Ask embeds the same schema as its retrieval, minus the engine field.
func wireSearchResponse(resp *store.SearchResponse, includeEngine bool) searchResponse {
	hits := make([]searchHit, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		hits = append(hits, searchHit{
			Rank:    hit.Rank,
			FrameID: hit.FrameID,
			URI:     hit.URI,
			Title:   hit.Title,
			Text:    hit.Text,
			Range:   hit.Range,
			Matches: hit.Matches,
			Score:   hit.Score,
			Tags:    orEmpty(hit.Tags),
			Labels:  orEmpty(hit.Labels),
		})
	}

	wired := searchResponse{
		Query:     resp.Query,
		ElapsedMS: resp.ElapsedMS,
		TotalHits: resp.TotalHits,
		Hits:      hits,
		Context:   resp.Context,
	}
	if resp.NextCursor != "" {
		wired.NextCursor = &resp.NextCursor
	}
	if includeEngine {
		wired.Engine = resp.Engine
	}
	return wired
}

type askRequest struct {
	Question     string  `json:"question"`
	TopK         int     `json:"top_k"`
	SnippetChars int     `json:"snippet_chars"`
	URI          string  `json:"uri"`
	Scope        string  `json:"scope"`
	Cursor       string  `json:"cursor"`
	Start        *int64  `json:"start"`
	End          *int64  `json:"end"`
	ContextOnly  bool    `json:"context_only"`
	Mode         string  `json:"mode"`
	AsOfFrame    *uint64 `json:"as_of_frame"`
	AsOfTS       *int64  `json:"as_of_ts"`
}

func defaultAskRequest() askRequest {
	return askRequest{TopK: 10, SnippetChars: 200, ContextOnly: true}
}

func (r askRequest) engine() store.AskRequest {
	return store.AskRequest{
		Question:     r.Question,
		TopK:         r.TopK,
		SnippetChars: r.SnippetChars,
		URI:          r.URI,
		Scope:        r.Scope,
		Cursor:       r.Cursor,
		Start:        r.Start,
		End:          r.End,
		ContextOnly:  r.ContextOnly,
		Mode:         r.Mode,
		AsOfFrame:    r.AsOfFrame,
		AsOfTS:       r.AsOfTS,
	}
}

type askCitation struct {
	Index      int        `json:"index"`
	FrameID    uint64     `json:"frame_id"`
	URI        string     `json:"uri"`
	ChunkRange *[2]uint64 `json:"chunk_range"`
	Score      *float64   `json:"score"`
}

type askFragment struct {
	Rank       int        `json:"rank"`
	FrameID    uint64     `json:"frame_id"`
	URI        string     `json:"uri"`
	Title      string     `json:"title"`
	Score      *float64   `json:"score"`
	Matches    uint64     `json:"matches"`
	Range      [2]int     `json:"range"`
	ChunkRange *[2]uint64 `json:"chunk_range"`
	Text       string     `json:"text"`
	Kind       string     `json:"kind"`
}

type askStatsWire struct {
	RetrievalMS uint64 `json:"retrieval_ms"`
	SynthesisMS uint64 `json:"synthesis_ms"`
	LatencyMS   uint64 `json:"latency_ms"`
}

type askResponse struct {
	Question         string          `json:"question"`
	Mode             string          `json:"mode"`
	Retriever        string          `json:"retriever"`
	ContextOnly      bool            `json:"context_only"`
	Retrieval        *searchResponse `json:"retrieval"`
	Answer           *string         `json:"answer"`
	Citations        []askCitation   `json:"citations"`
	ContextFragments []askFragment   `json:"context_fragments"`
	Stats            askStatsWire    `json:"stats"`
}

func wireAskResponse(resp *store.AskResponse) askResponse {
	retrieval := wireSearchResponse(resp.Retrieval, false)

	citations := make([]askCitation, 0, len(resp.Citations))
	for _, citation := range resp.Citations {
		citations = append(citations, askCitation{
			Index:      citation.Index,
			FrameID:    citation.FrameID,
			URI:        citation.URI,
			ChunkRange: citation.ChunkRange,
			Score:      citation.Score,
		})
	}

	fragments := make([]askFragment, 0, len(resp.Fragments))
	for _, fragment := range resp.Fragments {
		fragments = append(fragments, askFragment{
			Rank:       fragment.Rank,
			FrameID:    fragment.FrameID,
			URI:        fragment.URI,
			Title:      fragment.Title,
			Score:      fragment.Score,
			Matches:    fragment.Matches,
			Range:      fragment.Range,
			ChunkRange: fragment.ChunkRange,
			Text:       fragment.Text,
			Kind:       fragment.Kind,
		})
	}

	wired := askResponse{
		Question:         resp.Question,
		Mode:             resp.Mode,
		Retriever:        resp.Retriever,
		ContextOnly:      resp.ContextOnly,
		Retrieval:        &retrieval,
		Citations:        citations,
		ContextFragments: fragments,
		Stats: askStatsWire{
			RetrievalMS: resp.Stats.RetrievalMS,
			SynthesisMS: resp.Stats.SynthesisMS,
			LatencyMS:   resp.Stats.LatencyMS,
		},
	}
	if resp.Answer != "" {
		wired.Answer = &resp.Answer
	}
	return wired
}

type timelineQuery struct {
	Limit   uint64 `json:"limit"`
	Since   *int64 `json:"since"`
	Until   *int64 `json:"until"`
	Reverse bool   `json:"reverse"`
}

func (q timelineQuery) engine() store.TimelineQuery {
	return store.TimelineQuery{
		Limit:   q.Limit,
		Since:   q.Since,
		Until:   q.Until,
		Reverse: q.Reverse,
	}
}

type timelineEntry struct {
	FrameID     uint64   `json:"frame_id"`
	Timestamp   int64    `json:"timestamp"`
	Preview     string   `json:"preview"`
	URI         string   `json:"uri"`
	ChildFrames []uint64 `json:"child_frames"`
}

type timelineResponse struct {
	Entries []timelineEntry `json:"entries"`
	Count   int             `json:"count"`
}

func wireTimeline(entries []store.TimelineEntry) timelineResponse {
	wired := make([]timelineEntry, 0, len(entries))
	for _, entry := range entries {
		wired = append(wired, timelineEntry{
			FrameID:     entry.FrameID,
			Timestamp:   entry.Timestamp,
			Preview:     entry.Preview,
			URI:         entry.URI,
			ChildFrames: orEmpty(entry.ChildFrames),
		})
	}
	return timelineResponse{Entries: wired, Count: len(wired)}
}

// frameRecord is the wire form of a frame. SQL NULL columns surface as
// JSON null, not empty strings.
type frameRecord struct {
	ID            uint64   `json:"id"`
	Timestamp     int64    `json:"timestamp"`
	Kind          *string  `json:"kind"`
	URI           *string  `json:"uri"`
	Title         *string  `json:"title"`
	Status        string   `json:"status"`
	PayloadLength uint64   `json:"payload_length"`
	Tags          []string `json:"tags"`
	Labels        []string `json:"labels"`
	ParentID      *uint64  `json:"parent_id"`
	ChunkIndex    *uint64  `json:"chunk_index"`
	ChunkCount    *uint64  `json:"chunk_count"`
}

func wireFrame(frame *store.Frame) frameRecord {
	return frameRecord{
		ID:            frame.ID,
		Timestamp:     frame.Timestamp,
		Kind:          optString(frame.Kind),
		URI:           optString(frame.URI),
		Title:         optString(frame.Title),
		Status:        frame.Status,
		PayloadLength: frame.PayloadLen,
		Tags:          orEmpty(frame.Tags),
		Labels:        orEmpty(frame.Labels),
		ParentID:      frame.ParentID,
		ChunkIndex:    frame.ChunkIndex,
		ChunkCount:    frame.ChunkCount,
	}
}
