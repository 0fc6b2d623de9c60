package crawler

import (
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// Deps holds what the built-in crawlers are constructed from.
type Deps struct {
	Articles     DocumentStore[models.ArticleDocument]
	Posts        DocumentStore[models.PostDocument]
	Repositories DocumentStore[models.RepositoryDocument]
	Fetcher      *PageFetcher
	GitHub       *GitHubClient
	Log          *logger.Logger
}

type registration struct {
	domain  string
	crawler Crawler
}

// Dispatcher picks a crawler for a link by its domain.
type Dispatcher struct {
	deps     Deps
	entries  []registration
	fallback Crawler
	log      *logger.Logger
}

func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Dispatcher{
		deps:     deps,
		fallback: NewCustomArticleCrawler(deps.Articles, deps.Fetcher, deps.Log),
		log:      deps.Log.With("service", "CrawlerDispatcher"),
	}
}

// Register routes links whose domain equals that of domain to c. Earlier
// registrations win.
func (d *Dispatcher) Register(domain string, c Crawler) *Dispatcher {
	host, err := Domain(domain)
	if err != nil {
		d.log.Warn("ignoring crawler registration", "domain", domain, "error", err)
		return d
	}
	d.entries = append(d.entries, registration{domain: host, crawler: c})
	return d
}

func (d *Dispatcher) RegisterMedium() *Dispatcher {
	return d.Register("https://medium.com", NewMediumCrawler(d.deps.Articles, d.deps.Fetcher, d.deps.Log))
}

func (d *Dispatcher) RegisterLinkedIn() *Dispatcher {
	return d.Register("https://linkedin.com", NewLinkedInCrawler(d.deps.Posts, d.deps.Log))
}

func (d *Dispatcher) RegisterGitHub() *Dispatcher {
	return d.Register("https://github.com", NewGitHubCrawler(d.deps.Repositories, d.deps.GitHub, nil, d.deps.Log))
}

// GetCrawler never fails: unmatched links get the custom article crawler.
func (d *Dispatcher) GetCrawler(link string) Crawler {
	if host, err := Domain(link); err == nil {
		for _, e := range d.entries {
			if e.domain == host {
				return e.crawler
			}
		}
	}
	d.log.Warn("No crawler found, defaulting to CustomArticleCrawler", "link", link)
	return d.fallback
}
