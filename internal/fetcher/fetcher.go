// Package fetcher downloads the configured feed and extracts its newest entry.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"rss_relay/internal/model"
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS and Atom feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client. Every fetch is bounded by timeout.
func New(client HTTPClient, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		client:  client,
		timeout: timeout,
	}
}

// Fetch downloads and parses the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "RSSRelayBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Latest returns the first entry of feed, which feeds list newest first,
// or nil if the feed has no entries.
func Latest(feed *gofeed.Feed) *model.FeedEntry {
	if feed == nil || len(feed.Items) == 0 {
		return nil
	}
	item := feed.Items[0]
	return &model.FeedEntry{
		ID:        EntryID(item),
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(item.Link),
		Author:    itemAuthor(item),
		Published: item.PublishedParsed,
	}
}

// EntryID returns the identifier used for novelty detection: the entry link,
// then its GUID, then a SHA-256 hash of title+description.
func EntryID(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Description))
	return fmt.Sprintf("sha256:%x", h[:16])
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// Source reports the feed URL to poll. config.Runtime satisfies it.
type Source interface {
	FeedURL() string
}

// Poller fetches the newest entry of the configured feed.
type Poller struct {
	fetcher *Fetcher
	source  Source
	log     *slog.Logger
}

// NewPoller creates a Poller reading its URL from source on every poll.
func NewPoller(f *Fetcher, source Source, log *slog.Logger) *Poller {
	return &Poller{fetcher: f, source: source, log: log}
}

// Poll returns the newest entry, or nil when the feed is empty or could not
// be fetched. Failures are logged and never returned; the next tick retries.
func (p *Poller) Poll(ctx context.Context) *model.FeedEntry {
	url := p.source.FeedURL()
	feed, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.log.Error("fetch feed", "url", url, "error", err)
		return nil
	}
	entry := Latest(feed)
	if entry == nil {
		p.log.Debug("feed has no entries", "url", url)
	}
	return entry
}
