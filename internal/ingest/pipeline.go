// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/djlyric/music-trend-panel/internal/match"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

// defaultWorkers bounds concurrent record resolution when the caller
// does not set a limit.
const defaultWorkers = 8

// Source fetches one provider's chart records for a window. Each
// provider adapter implements this interface.
type Source interface {
	Name() types.Provider
	Fetch(ctx context.Context, window types.ChartWindow) ([]types.RawTrendRecord, error)
}

// Summary holds the counters of one ingestion run.
type Summary struct {
	Providers []string
	Records   int
	Created   int
	Matched   map[match.Stage]int
	Ambiguous int
	Errors    []string
}

// Total returns the number of records that produced a track decision.
func (s Summary) Total() int {
	total := s.Created
	for _, n := range s.Matched {
		total += n
	}
	return total
}

// Run fetches all sources concurrently, then resolves and merges their
// records. Provider failures are isolated: a transient or auth error
// skips that provider and the batch continues. Record-level store
// errors are collected per record. The only fatal conditions are
// context cancellation and an InvariantViolation from the coordinator.
func Run(ctx context.Context, sources []Source, c *Coordinator, window types.ChartWindow, workers int, w io.Writer) (Summary, error) {
	summary := Summary{Matched: make(map[match.Stage]int)}
	if len(sources) == 0 {
		return summary, fmt.Errorf("no providers configured")
	}

	// Provider fetches are independent; fan out and collect.
	type fetchResult struct {
		name    types.Provider
		records []types.RawTrendRecord
		err     error
	}

	ch := make(chan fetchResult, len(sources))
	var fetchWG sync.WaitGroup
	for _, src := range sources {
		fetchWG.Add(1)
		go func(src Source) {
			defer fetchWG.Done()
			records, err := src.Fetch(ctx, window)
			ch <- fetchResult{name: src.Name(), records: records, err: err}
		}(src)
	}
	go func() {
		fetchWG.Wait()
		close(ch)
	}()

	var records []types.RawTrendRecord
	for fr := range ch {
		summary.Providers = append(summary.Providers, string(fr.name))
		if fr.err != nil {
			fmt.Fprintf(w, "warning: %v\n", fr.err)
			summary.Errors = append(summary.Errors, fr.err.Error())
			continue
		}
		fmt.Fprintf(w, "fetched %d records from %s\n", len(fr.records), fr.name)
		records = append(records, fr.records...)
	}
	summary.Records = len(records)

	if err := applyAll(ctx, records, c, workers, w, &summary); err != nil {
		return summary, err
	}

	fmt.Fprintf(w, "\nrecords: %d, created: %d, matched: %d, ambiguous: %d, errors: %d\n",
		summary.Records, summary.Created, summary.Total()-summary.Created,
		summary.Ambiguous, len(summary.Errors))
	return summary, nil
}

// applyAll resolves records with bounded concurrency. The matcher's
// read stages are parallel-safe; the coordinator serializes per
// identity.
func applyAll(ctx context.Context, records []types.RawTrendRecord, c *Coordinator, workers int, w io.Writer, summary *Summary) error {
	if workers <= 0 {
		workers = defaultWorkers
	}
	w = &syncWriter{w: w}

	applyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)
	sem := make(chan struct{}, workers)

	for _, rec := range records {
		if applyCtx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(rec types.RawTrendRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := c.Apply(applyCtx, rec, w)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var iv *InvariantViolation
				if errors.As(err, &iv) {
					// The single-creation guarantee failed; stop the
					// batch loudly.
					if fatalErr == nil {
						fatalErr = err
						cancel()
					}
					return
				}
				if applyCtx.Err() != nil && errors.Is(err, context.Canceled) {
					return
				}
				msg := fmt.Sprintf("record %s/%q: %v", rec.Provider, rec.Title, err)
				fmt.Fprintf(w, "warning: %s\n", msg)
				summary.Errors = append(summary.Errors, msg)
				return
			}
			if out.Created {
				summary.Created++
			} else {
				summary.Matched[out.Stage]++
			}
			if out.Ambiguous {
				summary.Ambiguous++
			}
		}(rec)
	}
	wg.Wait()

	if fatalErr != nil {
		return fatalErr
	}
	return ctx.Err()
}

// syncWriter serializes progress writes from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
