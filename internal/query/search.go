package query

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/bigline/internal/bytesource"
	"github.com/standardbeagle/bigline/internal/config"
	berrors "github.com/standardbeagle/bigline/internal/errors"
	"github.com/standardbeagle/bigline/internal/lineindex"
	"github.com/standardbeagle/bigline/internal/parsespec"
	"github.com/standardbeagle/bigline/internal/types"
)

// SearchOptions bundles the tunables Search needs from EngineConfig so
// the function signature doesn't grow every time a new knob is added.
type SearchOptions struct {
	Workers         int
	MatchCap        int
	ProgressPercent float64
	ProgressMaxRate time.Duration
}

func OptionsFromConfig(cfg *config.Config) SearchOptions {
	return SearchOptions{
		Workers:         cfg.SearchWorkers,
		MatchCap:        cfg.MatchCap,
		ProgressPercent: cfg.ProgressPercent,
		ProgressMaxRate: cfg.ProgressMaxRate,
	}
}

// partition is one worker's newline-aligned line range (spec §4.5).
type partition struct {
	startLine, endLine int
}

// Search runs the parallel full-file scan described in spec §4.5:
// compile, partition by CPU count with boundaries snapped to newlines,
// dispatch workers that test each column string, merge in partition
// order, and enforce the match cap. onProgress is called with
// strictly non-decreasing percentages; it may be nil.
func Search(ctx context.Context, idx *lineindex.Index, src bytesource.ByteSource, spec *parsespec.Spec,
	pattern string, opts SearchOptions, onProgress func(percent float64)) (*types.SearchResults, error) {

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, berrors.InvalidRegex(pattern, err)
	}

	lineCount := idx.LineCount()
	if lineCount == 0 {
		return &types.SearchResults{Matches: []types.Match{}, TotalMatches: 0, SearchComplete: true}, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > lineCount {
		workers = lineCount
	}
	matchCap := opts.MatchCap
	if matchCap <= 0 {
		matchCap = 1000
	}

	partitions := partitionByBytes(idx, workers)

	var bytesProcessed int64
	var matchCount int64
	totalBytes := idx.Offsets()[lineCount] - idx.Offsets()[0]

	results := make([][]types.Match, len(partitions))

	stopProgress := make(chan struct{})
	var progressWG sync.WaitGroup
	if onProgress != nil && totalBytes > 0 {
		progressWG.Add(1)
		go runProgressLoop(&progressWG, stopProgress, &bytesProcessed, totalBytes, opts, onProgress)
	}

	g, gctx := errgroup.WithContext(ctx)
	for pi, p := range partitions {
		pi, p := pi, p
		g.Go(func() error {
			matches, err := searchPartition(gctx, idx, src, spec, re, p, matchCap, &matchCount, &bytesProcessed)
			if err != nil {
				return err
			}
			results[pi] = matches
			return nil
		})
	}
	err = g.Wait()

	close(stopProgress)
	progressWG.Wait()

	if err != nil {
		return nil, err
	}

	var merged []types.Match
	for _, m := range results {
		merged = append(merged, m...)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.StartIndex < b.StartIndex
	})

	// matchCount counts every match a worker claimed, including the one
	// claim per worker that overshoots the cap and is discarded, so it
	// reaches matchCap exactly when the cap was hit. Workers stop
	// scanning once it does, so it is not the file's total match count.
	complete := atomic.LoadInt64(&matchCount) < int64(matchCap)
	if len(merged) > matchCap {
		merged = merged[:matchCap]
	}
	if onProgress != nil {
		onProgress(100)
	}

	return &types.SearchResults{
		Matches:        merged,
		TotalMatches:   len(merged),
		SearchComplete: complete,
	}, nil
}

// partitionByBytes splits the file into `workers` roughly equal byte
// ranges, snapping each boundary to the nearest line start at or after
// the raw split (spec §4.5 step 2), so no line straddles two
// partitions.
func partitionByBytes(idx *lineindex.Index, workers int) []partition {
	offsets := idx.Offsets()
	lineCount := idx.LineCount()
	total := offsets[lineCount] - offsets[0]

	lineStartingAtOrAfter := func(byteOffset int64) int {
		return sort.Search(lineCount+1, func(i int) bool {
			return offsets[i] >= byteOffset
		})
	}

	var parts []partition
	prevLine := 0
	for i := 1; i <= workers; i++ {
		var splitLine int
		if i == workers {
			splitLine = lineCount
		} else {
			rawSplit := offsets[0] + total*int64(i)/int64(workers)
			splitLine = lineStartingAtOrAfter(rawSplit)
			if splitLine > lineCount {
				splitLine = lineCount
			}
		}
		if splitLine > prevLine {
			parts = append(parts, partition{startLine: prevLine, endLine: splitLine})
			prevLine = splitLine
		}
	}
	if len(parts) == 0 {
		parts = append(parts, partition{startLine: 0, endLine: lineCount})
	}
	return parts
}

// searchPartition scans one worker's line range, testing every column
// string against re and recording matches until either the partition
// ends or the shared match cap is reached.
func searchPartition(ctx context.Context, idx *lineindex.Index, src bytesource.ByteSource, spec *parsespec.Spec,
	re *regexp.Regexp, p partition, matchCap int, matchCount, bytesProcessed *int64) ([]types.Match, error) {

	var matches []types.Match
	for lineNo := p.startLine; lineNo < p.endLine; lineNo++ {
		select {
		case <-ctx.Done():
			return matches, nil
		default:
		}
		if atomic.LoadInt64(matchCount) >= int64(matchCap) {
			break
		}

		lo, hi := idx.LineRange(lineNo)
		raw, err := src.ReadRange(lo, hi)
		if err != nil {
			return nil, err
		}
		atomic.AddInt64(bytesProcessed, hi-lo)

		line := lineindex.DecodeLine(raw)
		columns := parsespec.ApplyOrRaw(spec, line)

		for col, colStr := range columns {
			if atomic.LoadInt64(matchCount) >= int64(matchCap) {
				break
			}
			locs := re.FindAllStringIndex(colStr, -1)
			for _, loc := range locs {
				if atomic.AddInt64(matchCount, 1) > int64(matchCap) {
					break
				}
				matches = append(matches, types.Match{
					LineNumber: uint64(lineNo),
					Column:     uint32(col),
					StartIndex: uint32(loc[0]),
					EndIndex:   uint32(loc[1]),
				})
			}
		}
	}
	return matches, nil
}

// runProgressLoop emits throttled Progress callbacks (spec §4.5 step
// 4): roughly every opts.ProgressPercent of total bytes, never faster
// than opts.ProgressMaxRate.
func runProgressLoop(wg *sync.WaitGroup, stop <-chan struct{}, bytesProcessed *int64, totalBytes int64,
	opts SearchOptions, onProgress func(percent float64)) {
	defer wg.Done()

	rate := opts.ProgressMaxRate
	if rate <= 0 {
		rate = 100 * time.Millisecond
	}
	step := opts.ProgressPercent
	if step <= 0 {
		step = 5
	}

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	var lastEmitted float64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			processed := atomic.LoadInt64(bytesProcessed)
			percent := float64(processed) / float64(totalBytes) * 100
			if percent > 100 {
				percent = 100
			}
			if percent-lastEmitted >= step {
				onProgress(percent)
				lastEmitted = percent
			}
		}
	}
}
