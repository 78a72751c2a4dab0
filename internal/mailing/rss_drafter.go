package mailing

import (
	"context"
	"fmt"
	gohtml "html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
)

// FeedDrafter turns the latest entries of an RSS/Atom feed into a
// newsletter issue draft. The draft goes through the normal publish
// path afterwards, so it gets the same validation and idempotency
// treatment as a hand-written issue.
type FeedDrafter struct {
	parser   *gofeed.Parser
	client   httpretry.HTTPDoer
	maxItems int
}

// NewFeedDrafter creates a drafter that includes at most maxItems feed
// entries per draft.
func NewFeedDrafter(maxItems int) *FeedDrafter {
	if maxItems <= 0 {
		maxItems = 5
	}
	return &FeedDrafter{
		parser:   gofeed.NewParser(),
		client:   httpretry.NewRetryClient(nil, 3),
		maxItems: maxItems,
	}
}

type feedItem struct {
	Title       string
	Description string
	Link        string
	Author      string
	PubDate     time.Time
}

// DraftFromFeed fetches feedURL and builds an issue draft from its most
// recent entries.
func (d *FeedDrafter) DraftFromFeed(ctx context.Context, feedURL string) (*domain.IssueDraft, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	feed, err := d.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed %q has no entries", feedURL)
	}

	items := make([]feedItem, 0, d.maxItems)
	for _, raw := range feed.Items {
		items = append(items, newFeedItem(raw))
		if len(items) == d.maxItems {
			break
		}
	}

	title := items[0].Title
	if feed.Title != "" {
		title = fmt.Sprintf("%s: %s", feed.Title, items[0].Title)
	}

	return &domain.IssueDraft{
		Title:       title,
		TextContent: buildPlainDigest(items),
		HTMLContent: buildHTMLDigest(feed.Title, items),
	}, nil
}

func newFeedItem(item *gofeed.Item) feedItem {
	fi := feedItem{
		Title:       item.Title,
		Description: stripHTML(item.Description),
		Link:        item.Link,
	}
	if item.PublishedParsed != nil {
		fi.PubDate = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		fi.PubDate = *item.UpdatedParsed
	} else {
		fi.PubDate = time.Now()
	}
	if len(item.Authors) > 0 {
		fi.Author = item.Authors[0].Name
	} else if item.Author != nil {
		fi.Author = item.Author.Name
	}
	return fi
}

func buildPlainDigest(items []feedItem) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(item.Title)
		b.WriteString("\n")
		b.WriteString(item.PubDate.Format("January 2, 2006"))
		if item.Author != "" {
			b.WriteString(" by ")
			b.WriteString(item.Author)
		}
		if item.Description != "" {
			b.WriteString("\n\n")
			b.WriteString(item.Description)
		}
		if item.Link != "" {
			b.WriteString("\n\nRead more: ")
			b.WriteString(item.Link)
		}
	}
	return b.String()
}

func buildHTMLDigest(feedTitle string, items []feedItem) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<body>\n")
	if feedTitle != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>\n", gohtml.EscapeString(feedTitle))
	}
	for _, item := range items {
		b.WriteString("<article>\n")
		fmt.Fprintf(&b, "<h2>%s</h2>\n", gohtml.EscapeString(item.Title))
		meta := item.PubDate.Format("January 2, 2006")
		if item.Author != "" {
			meta += " by " + item.Author
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", gohtml.EscapeString(meta))
		if item.Description != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", gohtml.EscapeString(item.Description))
		}
		if item.Link != "" {
			fmt.Fprintf(&b, "<p><a href=%q>Read more</a></p>\n", item.Link)
		}
		b.WriteString("</article>\n")
	}
	b.WriteString("</body>\n</html>")
	return b.String()
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(input string) string {
	text := htmlTagRe.ReplaceAllString(input, "")
	text = gohtml.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
