package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-pipeline/internal/config"
	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	"github.com/markdave123-py/contexta-pipeline/internal/core/crawler"
	db "github.com/markdave123-py/contexta-pipeline/internal/core/database"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
	"github.com/markdave123-py/contexta-pipeline/internal/utils"
)

const PipelineETL = "digital_data_etl"

// UserStore resolves authors in the raw store.
type UserStore interface {
	GetOrCreate(ctx context.Context, filter db.Filter, build func() models.UserDocument) (*models.UserDocument, error)
}

// CrawlerResolver picks the crawler responsible for a link.
type CrawlerResolver interface {
	GetCrawler(link string) crawler.Crawler
}

type ETLService struct {
	users    UserStore
	crawlers CrawlerResolver
	recorder archive.Recorder
	log      *logger.Logger
}

func NewETLService(users UserStore, crawlers CrawlerResolver, recorder archive.Recorder, log *logger.Logger) *ETLService {
	if log == nil {
		log = logger.Nop()
	}
	return &ETLService{users: users, crawlers: crawlers, recorder: recorder, log: log.With("service", "ETLService")}
}

// GetOrCreateUser resolves fullName to a stored user, creating it on first sight.
func (s *ETLService) GetOrCreateUser(ctx context.Context, fullName string) (*models.UserDocument, UserMetadata, error) {
	return getOrCreateUser(ctx, s.users, s.log, fullName)
}

func getOrCreateUser(ctx context.Context, users UserStore, log *logger.Logger, fullName string) (*models.UserDocument, UserMetadata, error) {
	var meta UserMetadata
	meta.Query.UserFullName = fullName

	first, last, err := utils.SplitUserFullName(fullName)
	if err != nil {
		return nil, meta, err
	}
	log.Info("Getting or creating user", "first_name", first, "last_name", last)

	user, err := users.GetOrCreate(ctx, db.Filter{"first_name": first, "last_name": last}, func() models.UserDocument {
		return models.UserDocument{ID: uuid.New(), FirstName: first, LastName: last}
	})
	if err != nil {
		return nil, meta, fmt.Errorf("get or create user %q: %w", fullName, err)
	}

	meta.Retrieved.UserID = user.ID.String()
	meta.Retrieved.FirstName = user.FirstName
	meta.Retrieved.LastName = user.LastName
	return user, meta, nil
}

// CrawlLinks crawls links one after another. A failing link is counted and
// logged; it never stops the rest.
func (s *ETLService) CrawlLinks(ctx context.Context, user models.UserDocument, links []string) CrawlSummary {
	summary := CrawlSummary{NumLinks: len(links), PerDomain: map[string]DomainStats{}}

	s.log.Info("Starting to crawl links", "num_links", len(links))
	for _, link := range links {
		if ctx.Err() != nil {
			s.log.Warn("crawl interrupted", "error", ctx.Err())
			break
		}

		domain, err := crawler.Domain(link)
		if err != nil {
			domain = "invalid"
		}
		ok := s.crawlLink(ctx, link, user)

		stats := summary.PerDomain[domain]
		stats.Total++
		if ok {
			stats.Successful++
			summary.NumSuccessful++
		}
		summary.PerDomain[domain] = stats
	}

	s.log.Info(fmt.Sprintf("Successfully crawled %d/%d links.", summary.NumSuccessful, len(links)))
	return summary
}

func (s *ETLService) crawlLink(ctx context.Context, link string, user models.UserDocument) bool {
	c := s.crawlers.GetCrawler(link)
	if err := c.Extract(ctx, link, user); err != nil {
		s.log.Error("An error occurred while crawling", "link", link, "error", err)
		return false
	}
	return true
}

// Run executes the whole ETL pipeline and archives its summary under runID.
func (s *ETLService) Run(ctx context.Context, runID string, params config.ETLRun) (*ETLSummary, error) {
	started := time.Now()
	summary, err := s.run(ctx, params)
	recordRun(ctx, s.recorder, s.log, PipelineETL, runID, started, params, summary, err)
	return summary, err
}

func (s *ETLService) run(ctx context.Context, params config.ETLRun) (*ETLSummary, error) {
	user, meta, err := s.GetOrCreateUser(ctx, params.UserFullName)
	if err != nil {
		return nil, err
	}
	return &ETLSummary{
		User:  meta,
		Crawl: s.CrawlLinks(ctx, *user, params.Links),
	}, nil
}
