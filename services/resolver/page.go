package resolver

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"cinelink/models"
)

// FetchTimeout bounds every upstream fetch in the chain. A timed-out fetch is
// a terminal failure for that URL within that request; there is no retry.
const FetchTimeout = 10 * time.Second

// maxPageBytes caps how much of an upstream document is read. Embed wrappers
// and player pages are small; anything bigger is not a page we understand.
const maxPageBytes = 4 << 20

// ParseResult is the outcome of resolving one upstream URL. A result is
// successful iff ManifestURL is set and Error is empty; only successful
// results are cached and persisted.
type ParseResult struct {
	ManifestURL    string            `json:"manifest_url,omitempty"`
	OpaqueID       string            `json:"opaque_id,omitempty"`
	SourceKind     models.SourceKind `json:"source_kind"`
	SourceURL      string            `json:"source_url,omitempty"`
	Title          string            `json:"title,omitempty"`
	FirstParagraph string            `json:"first_paragraph,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Successful reports whether the result carries a manifest URL and no error.
func (r ParseResult) Successful() bool {
	return r.ManifestURL != "" && r.Error == ""
}

// PageResolver walks the upstream embed chain for a single candidate URL:
// root page -> embedded iframe -> player iframe -> manifest URL. Network and
// parse failures are folded into the ParseResult, never raised, so sibling
// candidates in the same batch keep going.
type PageResolver struct {
	client *http.Client
}

// NewPageResolver constructs a resolver with sane defaults. A nil client gets
// a fresh one bounded by FetchTimeout.
func NewPageResolver(client *http.Client) *PageResolver {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	return &PageResolver{client: client}
}

// Resolve runs the four-stage chain against the candidate URL.
func (p *PageResolver) Resolve(ctx context.Context, candidate CandidateURL) ParseResult {
	fail := func(err error) ParseResult {
		return ParseResult{SourceKind: candidate.Kind, SourceURL: candidate.URL, Error: err.Error()}
	}

	// Stage 1: fetch the root page.
	body, err := p.fetch(ctx, candidate.URL)
	if err != nil {
		return fail(err)
	}

	// Pages outside the known embed family yield best-effort metadata, not an
	// error: title plus first paragraph, tagged unknown.
	if !strings.Contains(candidate.URL, "/embed/movie") {
		title, firstParagraph := extractPageSummary(body)
		return ParseResult{
			SourceKind:     models.SourceKindUnknown,
			SourceURL:      candidate.URL,
			Title:          title,
			FirstParagraph: firstParagraph,
		}
	}

	// Stage 2: locate the embedded frame and the opaque page id.
	page := extractFramePage(body)
	if page.IframeSrc == "" {
		return fail(fmt.Errorf("no iframe found in the page"))
	}

	// Stage 3: normalize and fetch the frame document.
	iframeURL := normalizeRef(page.IframeSrc)
	iframeBody, err := p.fetch(ctx, iframeURL)
	if err != nil {
		return fail(fmt.Errorf("fetch iframe %s: %w", iframeURL, err))
	}

	result := ParseResult{
		OpaqueID:   page.OpaqueID,
		SourceKind: candidate.Kind,
		SourceURL:  candidate.URL,
	}

	// Stage 4: find the player reference, fetch it, pull the manifest URL.
	// A missing match leaves ManifestURL empty without raising.
	playerSrc := extractPlayerSrc(string(iframeBody))
	if playerSrc == "" {
		return result
	}
	playerURL := resolveAgainstOrigin(iframeURL, playerSrc)
	playerBody, err := p.fetch(ctx, playerURL)
	if err != nil {
		log.Printf("[resolver] failed to fetch player page %s: %v", playerURL, err)
		return result
	}
	result.ManifestURL = extractFileURL(string(playerBody))
	return result
}

func (p *PageResolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	addBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream %s returned %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

func addBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
}
