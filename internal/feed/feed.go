package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"briefcast/internal/config"
	"briefcast/internal/logging"
	"briefcast/internal/queue"
)

// FileName is the published feed document inside the episodes directory.
const FileName = "feed.xml"

// Publisher rebuilds the RSS document from the episode catalog. Rebuilds are
// full: the feed is regenerated from the store every time, so a missed
// publish is healed by the next one.
type Publisher struct {
	store  *queue.Store
	cfg    config.Feed
	dir    string
	logger *slog.Logger
}

// NewPublisher constructs a publisher writing into the episodes directory.
func NewPublisher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		cfg:    cfg.Feed,
		dir:    cfg.Paths.EpisodesDir,
		logger: logging.NewComponentLogger(logger, "feed"),
	}
}

// Path returns the location of the published feed document.
func (p *Publisher) Path() string {
	return filepath.Join(p.dir, FileName)
}

// Republish regenerates the feed from the episode catalog and atomically
// replaces the published document.
func (p *Publisher) Republish(ctx context.Context) error {
	episodes, err := p.store.ListEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("load episodes: %w", err)
	}

	document, err := p.render(episodes)
	if err != nil {
		return fmt.Errorf("render feed: %w", err)
	}

	target := p.Path()
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, document, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish feed: %w", err)
	}

	p.logger.Info("feed republished", logging.Int("episodes", len(episodes)))
	return nil
}

// RepublishAsync rebuilds the feed without blocking the caller. Publishing is
// advisory: a failure is logged and the next rebuild covers for it.
func (p *Publisher) RepublishAsync(ctx context.Context) {
	go func() {
		if err := p.Republish(ctx); err != nil {
			p.logger.Warn("feed republish failed", logging.Error(err))
		}
	}()
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	Author        string    `xml:"managingEditor,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	GUID        rssGUID      `xml:"guid"`
	PubDate     string       `xml:"pubDate"`
	Enclosure   rssEnclosure `xml:"enclosure"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

func (p *Publisher) render(episodes []*queue.Episode) ([]byte, error) {
	channel := rssChannel{
		Title:         p.cfg.Title,
		Link:          p.cfg.BaseURL,
		Description:   p.cfg.Title,
		Language:      p.cfg.Language,
		Author:        p.cfg.Author,
		LastBuildDate: time.Now().UTC().Format(time.RFC1123Z),
	}

	for _, episode := range episodes {
		enclosureURL, err := p.enclosureURL(episode.File)
		if err != nil {
			return nil, err
		}
		channel.Items = append(channel.Items, rssItem{
			Title:       episode.Title,
			Description: itemDescription(episode),
			GUID:        rssGUID{IsPermaLink: false, Value: episode.ID},
			PubDate:     episode.Published.UTC().Format(time.RFC1123Z),
			Enclosure: rssEnclosure{
				URL:    enclosureURL,
				Length: episode.FileSize,
				Type:   "audio/mpeg",
			},
		})
	}

	document, err := xml.MarshalIndent(rssDocument{Version: "2.0", Channel: channel}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), document...), nil
}

func (p *Publisher) enclosureURL(file string) (string, error) {
	joined, err := url.JoinPath(p.cfg.BaseURL, "episodes", filepath.Base(file))
	if err != nil {
		return "", fmt.Errorf("build enclosure url for %s: %w", file, err)
	}
	return joined, nil
}

func itemDescription(episode *queue.Episode) string {
	description := strings.TrimSpace(episode.Description)
	if len(episode.Sources) == 0 {
		return description
	}
	var builder strings.Builder
	builder.WriteString(description)
	builder.WriteString("\n\nSources:\n")
	for _, source := range episode.Sources {
		builder.WriteString("- ")
		builder.WriteString(source)
		builder.WriteByte('\n')
	}
	return builder.String()
}
