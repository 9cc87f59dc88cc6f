package feeds

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"ThreatScanner/internal/config"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// RSSSource implements ArticleSource over RSS/Atom security-news feeds.
type RSSSource struct {
	feeds  []config.FeedConfig
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ ports.ArticleSource = (*RSSSource)(nil)

// NewRSSSource wires the configured feeds.
func NewRSSSource(feeds []config.FeedConfig, logger *slog.Logger) *RSSSource {
	return &RSSSource{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// FetchDaily pulls every configured feed and returns the items published on
// the requested UTC day. A single failing feed is logged and skipped so one
// dead source never starves the whole run.
func (s *RSSSource) FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error) {
	if len(s.feeds) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}

	targetDay := day.UTC().Truncate(24 * time.Hour)
	seen := map[string]struct{}{}
	var aggregated []domain.Article

	for _, feedCfg := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(feedCfg.URL, ctx)
		if err != nil {
			s.warn("feed fetch failed", "feed", feedCfg.Name, "error", err)
			continue
		}

		count := 0
		for _, item := range feed.Items {
			article, ok := toArticle(item, feedCfg.Name, targetDay)
			if !ok {
				continue
			}
			if _, dup := seen[article.ID]; dup {
				continue
			}
			seen[article.ID] = struct{}{}
			aggregated = append(aggregated, article)
			count++
		}
		s.debug("feed processed", "feed", feedCfg.Name, "items", len(feed.Items), "matched", count)
	}

	return aggregated, nil
}

func toArticle(item *gofeed.Item, source string, targetDay time.Time) (domain.Article, bool) {
	if item == nil || item.PublishedParsed == nil {
		return domain.Article{}, false
	}

	published := item.PublishedParsed.UTC()
	if !published.Truncate(24 * time.Hour).Equal(targetDay) {
		return domain.Article{}, false
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}

	return domain.Article{
		ID:          itemID(item),
		Title:       strings.TrimSpace(item.Title),
		Body:        stripHTML(body),
		URL:         item.Link,
		Source:      source,
		PublishedAt: published,
	}, true
}

// itemID derives a stable identifier from the feed GUID, falling back to
// the item link.
func itemID(item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// stripHTML reduces feed markup to plain text for the models.
func stripHTML(content string) string {
	if !strings.Contains(content, "<") {
		return strings.TrimSpace(content)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(doc.Text())
}

func (s *RSSSource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *RSSSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
