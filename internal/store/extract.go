// ABOUTME: Content extraction for ingestion: text decode, markdown stripping, auto tags
// ABOUTME: Produces the search text, labels, date tags and triplet tags stored on frames

package store

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// extractText turns payload bytes into the plain text stored as search
// text. Markdown content is flattened through the goldmark AST; everything
// else is decoded as UTF-8 with invalid sequences replaced.
func extractText(payload []byte, kind, uri string) (string, error) {
	decoded := string(payload)
	if !utf8.Valid(payload) {
		decoded = strings.ToValidUTF8(decoded, "�")
	}
	if isMarkdown(kind, uri) {
		return markdownText([]byte(decoded))
	}
	return decoded, nil
}

func isMarkdown(kind, uri string) bool {
	switch strings.ToLower(kind) {
	case "markdown", "md", "text/markdown":
		return true
	}
	lower := strings.ToLower(uri)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

// markdownText flattens a markdown document to plain text, keeping code
// block contents and link targets.
func markdownText(src []byte) (string, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	var buf strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch t := n.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.AutoLink:
				buf.Write(t.URL(src))
			case *ast.FencedCodeBlock:
				writeSegmentLines(&buf, src, t.Lines())
			case *ast.CodeBlock:
				writeSegmentLines(&buf, src, t.Lines())
			}
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", wrapf(KindExtractionFailed, err, "flattening markdown")
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

func writeSegmentLines(buf *strings.Builder, src []byte, lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9]{3,}`)

// stopwords excluded from auto labels.
var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "because": true,
	"been": true, "before": true, "being": true, "between": true, "both": true,
	"could": true, "does": true, "down": true, "during": true, "each": true,
	"from": true, "have": true, "having": true, "here": true, "into": true,
	"just": true, "more": true, "most": true, "other": true, "over": true,
	"same": true, "should": true, "some": true, "such": true, "than": true,
	"that": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true,
	"under": true, "very": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "will": true, "with": true,
	"would": true, "your": true,
}

// autoLabels picks the top-n recurring content words, ties broken
// alphabetically so results are deterministic.
func autoLabels(content string, n int) []string {
	counts := make(map[string]int)
	for _, word := range wordPattern.FindAllString(content, -1) {
		lower := strings.ToLower(word)
		if !stopwords[lower] {
			counts[lower]++
		}
	}
	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	sort.Strings(words)
	return words
}

var datePattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// extractDates finds ISO dates in content, validated and deduplicated in
// order of first appearance.
func extractDates(content string, max int) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, match := range datePattern.FindAllString(content, -1) {
		if seen[match] {
			continue
		}
		if _, err := time.Parse("2006-01-02", match); err != nil {
			continue
		}
		seen[match] = true
		dates = append(dates, match)
		if len(dates) >= max {
			break
		}
	}
	return dates
}

var tripletPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9 _-]{0,48}?)\s+(is|are|was|were)\s+(?:a |an |the )?([A-Za-z][A-Za-z0-9 _-]{0,48}[A-Za-z0-9])`)

// extractTriplets pulls naive subject-verb-object statements ("X is Y")
// out of content. Heuristic only; meant for cheap relation tagging.
func extractTriplets(content string, max int) []string {
	var triplets []string
	seen := make(map[string]bool)
	for _, sentence := range splitSentences(content) {
		for _, m := range tripletPattern.FindAllStringSubmatch(sentence, -1) {
			subject := strings.TrimSpace(m[1])
			object := strings.TrimSpace(m[3])
			if subject == "" || object == "" {
				continue
			}
			triplet := subject + "|" + strings.ToLower(m[2]) + "|" + object
			if seen[triplet] {
				continue
			}
			seen[triplet] = true
			triplets = append(triplets, triplet)
			if len(triplets) >= max {
				return triplets
			}
		}
	}
	return triplets
}

func splitSentences(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

// previewText collapses content to a single line of at most max runes.
func previewText(content string, max int) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	runes := []rune(collapsed)
	if len(runes) <= max {
		return collapsed
	}
	return string(runes[:max-1]) + "…"
}
