package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// entry is one parsed feed item, format-independent
type entry struct {
	Title     string
	Link      string
	Summary   string
	Published time.Time
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomDoc struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// parseFeed decodes RSS 2.0 or Atom, selected by the document's root element.
func parseFeed(data []byte) ([]entry, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, fmt.Errorf("feed is not valid XML: %w", err)
	}

	switch root {
	case "rss":
		var doc rssDoc
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse rss: %w", err)
		}
		entries := make([]entry, 0, len(doc.Channel.Items))
		for _, item := range doc.Channel.Items {
			entries = append(entries, entry{
				Title:     strings.TrimSpace(item.Title),
				Link:      strings.TrimSpace(item.Link),
				Summary:   strings.TrimSpace(item.Description),
				Published: parseFeedTime(item.PubDate),
			})
		}
		return entries, nil

	case "feed":
		var doc atomDoc
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse atom: %w", err)
		}
		entries := make([]entry, 0, len(doc.Entries))
		for _, ae := range doc.Entries {
			summary := ae.Summary
			if summary == "" {
				summary = ae.Content
			}
			published := ae.Published
			if published == "" {
				published = ae.Updated
			}
			entries = append(entries, entry{
				Title:     strings.TrimSpace(ae.Title),
				Link:      atomHref(ae.Links),
				Summary:   strings.TrimSpace(summary),
				Published: parseFeedTime(published),
			})
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("unsupported feed root element %q", root)
	}
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// atomHref prefers the alternate link, falling back to the first
func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var feedTimeFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// parseFeedTime tries the timestamp formats feeds use in the wild; a zero
// time means unknown.
func parseFeedTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, format := range feedTimeFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
