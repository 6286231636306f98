// ABOUTME: The create and put subcommands: make a store file and feed documents in
// ABOUTME: Put reads from a file argument or stdin and commits before exiting

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/engramdb/engram/internal/store"
)

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	common := registerCommon(fs)
	capacity := fs.Uint64("capacity-bytes", 0, "Logical capacity cap in bytes (0 = unlimited)")
	chunkChars := fs.Int("chunk-chars", 0, "Chunk size for long documents (0 = engine default)")
	fs.Parse(args)

	cfg, path, err := common.resolve()
	if err != nil {
		return err
	}
	if *capacity == 0 {
		*capacity = cfg.Store.CapacityBytes
	}
	if *chunkChars == 0 {
		*chunkChars = cfg.Store.ChunkChars
	}

	var opts []store.Option
	if *capacity > 0 {
		opts = append(opts, store.WithCapacity(*capacity))
	}
	if *chunkChars > 0 {
		opts = append(opts, store.WithChunkChars(*chunkChars))
	}

	mem, err := store.Create(path, opts...)
	if err != nil {
		return err
	}
	uid := mem.UID()
	if err := mem.Close(); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	green.Print("✓ ")
	fmt.Printf("Created %s\n", path)
	gray.Printf("  uid %s\n", uid)
	if *capacity > 0 {
		gray.Printf("  capacity %s\n", humanBytes(*capacity))
	}
	return nil
}

func runPut(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	common := registerCommon(fs)
	uri := fs.String("uri", "", "Stable identifier for upsert and citations")
	title := fs.String("title", "", "Display title")
	track := fs.String("track", "", "Logical stream name")
	kind := fs.String("kind", "", "Payload kind hint, e.g. text or markdown")
	ts := fs.String("ts", "", "Frame timestamp, unix seconds or RFC 3339 (default now)")
	searchText := fs.String("search-text", "", "Index this text instead of the payload")
	autoTag := fs.Bool("auto-tag", false, "Derive tags from the content")
	extractDates := fs.Bool("extract-dates", false, "Index dates found in the content")
	extractTriplets := fs.Bool("extract-triplets", false, "Extract subject/verb/object triplets")
	noRaw := fs.Bool("no-raw", false, "Index only, do not keep the payload")
	dedup := fs.Bool("dedup", false, "Reuse an identical frame when one exists")
	var tags, labels repeatedFlag
	fs.Var(&tags, "tag", "Tag as key=value (repeatable)")
	fs.Var(&labels, "label", "Label (repeatable)")
	fs.Parse(args)

	data, source, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	opts := store.PutOptions{
		URI:             *uri,
		Title:           *title,
		Track:           *track,
		Kind:            *kind,
		Labels:          labels,
		SearchText:      *searchText,
		AutoTag:         *autoTag,
		ExtractDates:    *extractDates,
		ExtractTriplets: *extractTriplets,
		NoRaw:           *noRaw,
		Dedup:           *dedup,
	}
	if *ts != "" {
		when, err := parseWhen(*ts)
		if err != nil {
			return fmt.Errorf("invalid -ts: %w", err)
		}
		opts.Timestamp = *when
	}
	opts.Tags, err = parseTags(tags)
	if err != nil {
		return err
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

	id, err := mem.PutWithOptions(ctx, data, opts)
	if err != nil {
		return err
	}
	if err := mem.Commit(ctx); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	green.Print("✓ ")
	fmt.Printf("Stored frame %d\n", id)
	gray.Printf("  %s from %s\n", humanBytes(uint64(len(data))), source)
	return nil
}

// readInput loads the document from a file argument, or from stdin when the
// argument is empty or "-".
func readInput(arg string) ([]byte, string, error) {
	if arg == "" || arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return data, "stdin", nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, "", err
	}
	return data, arg, nil
}

func parseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("tag %q must be key=value", pair)
		}
		tags[key] = value
	}
	return tags, nil
}
