// ABOUTME: The search, ask, timeline, and stats subcommands
// ABOUTME: Ask wires the OpenAI synthesizer when the config enables it

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/engramdb/engram/internal/store"
	"github.com/engramdb/engram/internal/synth"
)

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	common := registerCommon(fs)
	topK := fs.Int("k", 10, "Number of hits")
	snippetChars := fs.Int("snippet-chars", 0, "Snippet length in characters (0 = engine default)")
	uri := fs.String("uri", "", "Restrict hits to exactly this URI")
	scope := fs.String("scope", "", "Restrict hits to URIs with this prefix")
	cursor := fs.String("cursor", "", "Resume from a previous next cursor")
	since := fs.String("since", "", "Lower time bound, unix seconds or RFC 3339")
	until := fs.String("until", "", "Upper time bound, unix seconds or RFC 3339")
	asOfFrame := fs.Uint64("as-of-frame", 0, "Answer as of this frame id")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("search needs a query, e.g. engramctl search deploy checklist")
	}

	req := store.SearchRequest{
		Query:        strings.Join(fs.Args(), " "),
		TopK:         *topK,
		SnippetChars: *snippetChars,
		URI:          *uri,
		Scope:        *scope,
		Cursor:       *cursor,
	}
	var err error
	if req.Start, err = parseWhen(*since); err != nil {
		return fmt.Errorf("invalid -since: %w", err)
	}
	if req.End, err = parseWhen(*until); err != nil {
		return fmt.Errorf("invalid -until: %w", err)
	}
	if *asOfFrame > 0 {
		req.AsOfFrame = asOfFrame
	}

	_, path, err := common.resolve()
	if err != nil {
		return err
	}
	mem, err := store.Open(path)
	if err != nil {
		return err
	}
	defer mem.Close()

	resp, err := mem.Search(ctx, req)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	gray.Printf("%d hits in %dms (%s)\n\n", resp.TotalHits, resp.ElapsedMS, resp.Engine)
	for _, hit := range resp.Hits {
		printHit(hit)
	}
	if resp.NextCursor != "" {
		gray.Printf("more: -cursor %s\n", resp.NextCursor)
	}
	return nil
}

func printHit(hit store.SearchHit) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Printf("%2d. ", hit.Rank)
	switch {
	case hit.Title != "":
		fmt.Print(hit.Title)
	case hit.URI != "":
		fmt.Print(hit.URI)
	default:
		fmt.Printf("frame %d", hit.FrameID)
	}
	gray.Printf("  frame %d", hit.FrameID)
	if hit.Score != nil {
		gray.Printf("  score %.3f", *hit.Score)
	}
	fmt.Println()
	if hit.Title != "" && hit.URI != "" {
		gray.Printf("    %s\n", hit.URI)
	}
	if hit.Text != "" {
		fmt.Printf("    %s\n", strings.ReplaceAll(hit.Text, "\n", " "))
	}
	fmt.Println()
}

func runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	common := registerCommon(fs)
	topK := fs.Int("k", 10, "Number of fragments to retrieve")
	snippetChars := fs.Int("snippet-chars", 0, "Fragment length in characters (0 = engine default)")
	mode := fs.String("mode", "", "Retrieval mode: lex, sem, or hybrid (default hybrid)")
	uri := fs.String("uri", "", "Restrict retrieval to exactly this URI")
	scope := fs.String("scope", "", "Restrict retrieval to URIs with this prefix")
	since := fs.String("since", "", "Lower time bound, unix seconds or RFC 3339")
	until := fs.String("until", "", "Upper time bound, unix seconds or RFC 3339")
	contextOnly := fs.Bool("context-only", false, "Skip synthesis, print the retrieved fragments")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("ask needs a question, e.g. engramctl ask what changed last week")
	}

	req := store.AskRequest{
		Question:     strings.Join(fs.Args(), " "),
		TopK:         *topK,
		SnippetChars: *snippetChars,
		Mode:         *mode,
		URI:          *uri,
		Scope:        *scope,
		ContextOnly:  *contextOnly,
	}
	var err error
	if req.Start, err = parseWhen(*since); err != nil {
		return fmt.Errorf("invalid -since: %w", err)
	}
	if req.End, err = parseWhen(*until); err != nil {
		return fmt.Errorf("invalid -until: %w", err)
	}

	cfg, path, err := common.resolve()
	if err != nil {
		return err
	}

	var synthesizer store.Synthesizer
	if cfg.Synth.Enabled && !*contextOnly {
		s, err := synth.New(synth.Options{
			APIKey:  cfg.Synth.APIKey,
			BaseURL: cfg.Synth.BaseURL,
			Model:   cfg.Synth.Model,
			Timeout: cfg.Synth.Timeout,
		})
		if err != nil {
			return fmt.Errorf("configuring synthesizer: %w", err)
		}
		synthesizer = s
	}

	mem, err := store.Open(path)
	if err != nil {
		return err
	}
	defer mem.Close()

	resp, err := mem.Ask(ctx, req, synthesizer)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	if resp.ContextOnly {
		gray.Printf("%d fragments (%s retrieval, %dms)\n\n", len(resp.Fragments), resp.Retriever, resp.Stats.LatencyMS)
		for _, fragment := range resp.Fragments {
			printFragment(fragment)
		}
		return nil
	}

	fmt.Println(resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println()
		for _, citation := range resp.Citations {
			label := citation.URI
			if label == "" {
				label = fmt.Sprintf("frame %d", citation.FrameID)
			}
			gray.Printf("[%d] %s\n", citation.Index, label)
		}
	}
	gray.Printf("\nretrieval %dms, synthesis %dms (%s)\n", resp.Stats.RetrievalMS, resp.Stats.SynthesisMS, resp.Retriever)
	return nil
}

func printFragment(fragment store.Fragment) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Printf("%2d. ", fragment.Rank)
	switch {
	case fragment.URI != "":
		fmt.Print(fragment.URI)
	case fragment.Title != "":
		fmt.Print(fragment.Title)
	default:
		fmt.Printf("frame %d", fragment.FrameID)
	}
	gray.Printf("  frame %d\n", fragment.FrameID)
	if fragment.Text != "" {
		fmt.Printf("    %s\n", strings.ReplaceAll(fragment.Text, "\n", " "))
	}
	fmt.Println()
}

func runTimeline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("timeline", flag.ExitOnError)
	common := registerCommon(fs)
	limit := fs.Uint64("n", 20, "Maximum entries (0 = all)")
	since := fs.String("since", "", "Lower time bound, unix seconds or RFC 3339")
	until := fs.String("until", "", "Upper time bound, unix seconds or RFC 3339")
	reverse := fs.Bool("reverse", false, "Newest first")
	fs.Parse(args)

	q := store.TimelineQuery{Limit: *limit, Reverse: *reverse}
	var err error
	if q.Since, err = parseWhen(*since); err != nil {
		return fmt.Errorf("invalid -since: %w", err)
	}
	if q.Until, err = parseWhen(*until); err != nil {
		return fmt.Errorf("invalid -until: %w", err)
	}

	_, path, err := common.resolve()
	if err != nil {
		return err
	}
	mem, err := store.Open(path)
	if err != nil {
		return err
	}
	defer mem.Close()

	entries, err := mem.Timeline(ctx, q)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	for _, entry := range entries {
		gray.Print(time.Unix(entry.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"))
		cyan.Printf("  %6d  ", entry.FrameID)
		fmt.Print(strings.ReplaceAll(entry.Preview, "\n", " "))
		if entry.URI != "" {
			gray.Printf("  %s", entry.URI)
		}
		if len(entry.ChildFrames) > 0 {
			gray.Printf("  +%d chunks", len(entry.ChildFrames))
		}
		fmt.Println()
	}
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	common := registerCommon(fs)
	fs.Parse(args)

	_, path, err := common.resolve()
	if err != nil {
		return err
	}
	mem, err := store.Open(path)
	if err != nil {
		return err
	}
	defer mem.Close()

	s, err := mem.Stats(ctx)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	fmt.Printf("Store:     %s\n", path)
	fmt.Printf("Frames:    %d active / %d total\n", s.ActiveFrameCount, s.FrameCount)
	fmt.Printf("Size:      %s", humanBytes(s.SizeBytes))
	gray.Printf("  (payload %s, logical %s, wal %s)\n", humanBytes(s.PayloadBytes), humanBytes(s.LogicalBytes), humanBytes(s.WalBytes))
	if s.CapacityBytes > 0 {
		fmt.Printf("Capacity:  %s", humanBytes(s.CapacityBytes))
		gray.Printf("  (%.1f%% used, %s free)\n", s.StorageUtilisationPercent, humanBytes(s.RemainingCapacityBytes))
	}
	fmt.Printf("Indexes:   %s\n", indexSummary(s))
	fmt.Printf("Overhead:  %.1f%%", s.OverheadPercent)
	gray.Printf("  (savings %.1f%%)\n", s.SavingsPercent)
	return nil
}

func indexSummary(s *store.Stats) string {
	var parts []string
	if s.HasLexIndex {
		parts = append(parts, fmt.Sprintf("lex (%s)", humanBytes(s.LexIndexBytes)))
	}
	if s.HasTimeIndex {
		parts = append(parts, fmt.Sprintf("time (%s)", humanBytes(s.TimeIndexBytes)))
	}
	if s.HasVecIndex {
		parts = append(parts, fmt.Sprintf("vec (%s)", humanBytes(s.VecIndexBytes)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
