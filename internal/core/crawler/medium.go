package crawler

import (
	"context"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

type MediumCrawler struct {
	articles DocumentStore[models.ArticleDocument]
	fetcher  *PageFetcher
	log      *logger.Logger
}

func NewMediumCrawler(articles DocumentStore[models.ArticleDocument], fetcher *PageFetcher, log *logger.Logger) *MediumCrawler {
	if log == nil {
		log = logger.Nop()
	}
	return &MediumCrawler{articles: articles, fetcher: fetcher, log: log.With("service", "MediumCrawler")}
}

func (c *MediumCrawler) Extract(ctx context.Context, link string, user models.UserDocument) error {
	exists, err := alreadyStored(ctx, c.articles, link)
	if err != nil {
		return err
	}
	if exists {
		c.log.Info("Article already exists in the database", "link", link)
		return nil
	}

	c.log.Info("Starting scraping Medium article", "link", link)
	html, err := c.fetcher.Fetch(ctx, link)
	if err != nil {
		return err
	}
	p, err := parsePage(html)
	if err != nil {
		return err
	}

	content := models.NewContent(
		"Title", p.firstText("h1.pw-post-title"),
		"Subtitle", p.firstText("h2.pw-subtitle-paragraph"),
		"Content", p.text,
	)
	doc := models.ArticleDocument{
		Document: models.NewDocument("medium", content, user),
		Link:     link,
	}
	if _, err := c.articles.Save(ctx, doc); err != nil {
		return err
	}

	c.log.Info("Finished scraping Medium article", "link", link)
	return nil
}
