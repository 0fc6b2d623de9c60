package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"

	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; contexta-crawler/1.0)"
	maxPageBytes     = 10 << 20
)

// PageFetcher downloads HTML pages and, when a recorder is set, snapshots them.
type PageFetcher struct {
	client    *http.Client
	userAgent string
	recorder  archive.Recorder
	log       *logger.Logger
}

func NewPageFetcher(timeout time.Duration, recorder archive.Recorder, log *logger.Logger) *PageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewPageFetcherWithClient(&http.Client{Timeout: timeout}, recorder, log)
}

func NewPageFetcherWithClient(client *http.Client, recorder archive.Recorder, log *logger.Logger) *PageFetcher {
	if log == nil {
		log = logger.Nop()
	}
	return &PageFetcher{
		client:    client,
		userAgent: defaultUserAgent,
		recorder:  recorder,
		log:       log.With("service", "PageFetcher"),
	}
}

// Fetch returns the body of link. Non-2xx responses are errors.
func (f *PageFetcher) Fetch(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", link, err)
	}

	if f.recorder != nil {
		if err := f.recorder.RecordPage(ctx, link, body); err != nil {
			f.log.Warn("page snapshot failed", "link", link, "error", err)
		}
	}
	return body, nil
}

// page is a fetched HTML document with its DOM and readable text.
type page struct {
	dom  *goquery.Document
	text string
}

func parsePage(html []byte) (*page, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	text, _, err := docconv.ConvertHTML(bytes.NewReader(html), false)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return &page{dom: dom, text: strings.TrimSpace(text)}, nil
}

func (p *page) firstText(selector string) string {
	return strings.TrimSpace(p.dom.Find(selector).First().Text())
}

func (p *page) firstAttr(selector, attr string) string {
	v, _ := p.dom.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}
