package crawler

import (
	"context"
	"fmt"
	"net/url"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// CustomArticleCrawler handles any link no other crawler claims.
type CustomArticleCrawler struct {
	articles DocumentStore[models.ArticleDocument]
	fetcher  *PageFetcher
	log      *logger.Logger
}

func NewCustomArticleCrawler(articles DocumentStore[models.ArticleDocument], fetcher *PageFetcher, log *logger.Logger) *CustomArticleCrawler {
	if log == nil {
		log = logger.Nop()
	}
	return &CustomArticleCrawler{articles: articles, fetcher: fetcher, log: log.With("service", "CustomArticleCrawler")}
}

func (c *CustomArticleCrawler) Extract(ctx context.Context, link string, user models.UserDocument) error {
	exists, err := alreadyStored(ctx, c.articles, link)
	if err != nil {
		return err
	}
	if exists {
		c.log.Info("Article already exists in the database", "link", link)
		return nil
	}

	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidLink, link)
	}

	c.log.Info("Starting scraping article", "link", link)
	html, err := c.fetcher.Fetch(ctx, link)
	if err != nil {
		return err
	}
	p, err := parsePage(html)
	if err != nil {
		return err
	}

	content := models.NewContent(
		"Title", p.firstText("title"),
		"Subtitle", p.firstAttr(`meta[name="description"]`, "content"),
		"Content", p.text,
		"language", p.firstAttr("html", "lang"),
	)
	doc := models.ArticleDocument{
		Document: models.NewDocument(u.Host, content, user),
		Link:     link,
	}
	if _, err := c.articles.Save(ctx, doc); err != nil {
		return err
	}

	c.log.Info("Finished scraping custom article", "link", link)
	return nil
}
