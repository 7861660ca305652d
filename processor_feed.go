package ragprep

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

const feedParser = "feed_parser"

// FeedProcessor renders RSS and Atom feeds, one section per item.
type FeedProcessor struct{}

// NewFeedProcessor creates a new FeedProcessor.
func NewFeedProcessor() *FeedProcessor {
	return &FeedProcessor{}
}

func (p *FeedProcessor) Name() string { return "feed" }

func (p *FeedProcessor) SupportedExtensions() []string {
	return []string{".rss", ".atom"}
}

func (p *FeedProcessor) CanProcess(path string) bool {
	return canProcess(path, p.SupportedExtensions())
}

func (p *FeedProcessor) Process(_ context.Context, req *Request) *Result {
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": feedParser})
	f, err := os.Open(req.SourcePath)
	if err != nil {
		return failWith(req.SourcePath, feedParser, err)
	}
	defer f.Close()

	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		log.WithError(err).Error("parse feed failed")
		return failWith(req.SourcePath, feedParser, fmt.Errorf("parse feed: %w", err))
	}

	var b strings.Builder
	if feed.Title != "" {
		fmt.Fprintf(&b, "# %s\n", feed.Title)
	}
	if feed.Description != "" {
		fmt.Fprintf(&b, "%s\n", feed.Description)
	}
	b.WriteString("\n")

	for _, item := range feed.Items {
		if item.Title != "" {
			fmt.Fprintf(&b, "## %s\n", item.Title)
		}
		switch {
		case item.Published != "":
			fmt.Fprintf(&b, "Published: %s\n\n", item.Published)
		case item.Updated != "":
			fmt.Fprintf(&b, "Updated: %s\n\n", item.Updated)
		}
		if item.Link != "" {
			fmt.Fprintf(&b, "Link: %s\n\n", item.Link)
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		if looksLikeHTML(body) {
			if md, err := htmlToMarkdown(body); err == nil {
				body = md
			}
		}
		if body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	meta := baseMetadata(req.SourcePath, feedParser)
	meta["title"] = feed.Title
	meta["item_count"] = len(feed.Items)
	if feed.FeedType != "" {
		meta["feed_type"] = feed.FeedType
	}
	return succeed(tidyMarkdown(b.String()), meta)
}
