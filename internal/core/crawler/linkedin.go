package crawler

import (
	"context"
	"fmt"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// LinkedInCrawler is registered so LinkedIn links fail loudly instead of
// falling through to the generic article crawler. The public feed needs an
// authenticated browser session.
type LinkedInCrawler struct {
	posts DocumentStore[models.PostDocument]
	log   *logger.Logger
}

func NewLinkedInCrawler(posts DocumentStore[models.PostDocument], log *logger.Logger) *LinkedInCrawler {
	if log == nil {
		log = logger.Nop()
	}
	return &LinkedInCrawler{posts: posts, log: log.With("service", "LinkedInCrawler")}
}

func (c *LinkedInCrawler) Extract(ctx context.Context, link string, _ models.UserDocument) error {
	exists, err := alreadyStored(ctx, c.posts, link)
	if err != nil {
		return err
	}
	if exists {
		c.log.Info("Post already exists in the database", "link", link)
		return nil
	}
	return fmt.Errorf("linkedin %s: %w", link, ErrDeprecated)
}
