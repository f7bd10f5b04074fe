package linkcheck

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/sourcegraph/conc/pool"

	"cinelink/internal/database"
)

const (
	defaultInterval    = 30 * time.Minute
	defaultConcurrency = 4
	defaultBatchSize   = 50
	probeTimeout       = 15 * time.Second
)

// LinkSource yields the links to probe.
type LinkSource interface {
	AllActiveLinks(limit int) ([]database.MovieLink, error)
}

// ResultSink records probe outcomes.
type ResultSink interface {
	Record(entry *database.PerformanceEntry) error
}

var (
	_ LinkSource = (*database.MovieRepository)(nil)
	_ ResultSink = (*database.PerformanceRepository)(nil)
)

// Service periodically probes stored master playlist URLs and records
// response time and status so stale links can be spotted.
type Service struct {
	links       LinkSource
	results     ResultSink
	client      *http.Client
	interval    time.Duration
	concurrency int
	batchSize   int
}

func NewService(links LinkSource, results ResultSink, interval time.Duration, concurrency int) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		links:       links,
		results:     results,
		client:      &http.Client{Timeout: probeTimeout},
		interval:    interval,
		concurrency: concurrency,
		batchSize:   defaultBatchSize,
	}
}

// Start runs the probe loop until ctx is cancelled. The first sweep happens
// one interval after startup, not immediately.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[linkcheck] starting, interval %s, concurrency %d", s.interval, s.concurrency)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[linkcheck] stopping")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Printf("[linkcheck] sweep failed: %v", err)
			}
		}
	}
}

// RunOnce probes one batch of active links concurrently.
func (s *Service) RunOnce(ctx context.Context) error {
	links, err := s.links.AllActiveLinks(s.batchSize)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, link := range links {
		p.Go(func() {
			s.probe(ctx, link)
		})
	}
	p.Wait()
	log.Printf("[linkcheck] probed %d links", len(links))
	return nil
}

func (s *Service) probe(ctx context.Context, link database.MovieLink) {
	entry := &database.PerformanceEntry{LinkID: link.ID, CheckedAt: time.Now().UTC()}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link.ManifestURL, nil)
	if err != nil {
		msg := err.Error()
		entry.ErrorMessage = &msg
	} else {
		resp, err := s.client.Do(req)
		elapsed := int(time.Since(start).Milliseconds())
		entry.ResponseTimeMS = &elapsed
		if err != nil {
			msg := err.Error()
			entry.ErrorMessage = &msg
		} else {
			resp.Body.Close()
			status := resp.StatusCode
			entry.StatusCode = &status
		}
	}

	if err := s.results.Record(entry); err != nil {
		log.Printf("[linkcheck] failed to record result for link %d: %v", link.ID, err)
	}
}
