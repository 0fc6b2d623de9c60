package preprocessing

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
)

const contentDelimiter = " #### "

// CleaningHandler turns one raw document family into its cleaned form.
type CleaningHandler interface {
	Clean(raw models.RawDocument) (models.CleanedDoc, error)
}

type postCleaningHandler struct{}

func (postCleaningHandler) Clean(raw models.RawDocument) (models.CleanedDoc, error) {
	post, ok := raw.(models.PostDocument)
	if !ok {
		return nil, unexpectedType(raw, models.CategoryPosts)
	}
	return models.CleanedPostDocument{
		CleanedDocument: cleanedBase(post.Document, post.Content.Values()),
		Image:           post.Image,
		Link:            post.Link,
	}, nil
}

type articleCleaningHandler struct{}

func (articleCleaningHandler) Clean(raw models.RawDocument) (models.CleanedDoc, error) {
	article, ok := raw.(models.ArticleDocument)
	if !ok {
		return nil, unexpectedType(raw, models.CategoryArticles)
	}
	var values []string
	for _, v := range article.Content.Values() {
		if v != "" {
			values = append(values, v)
		}
	}
	return models.CleanedArticleDocument{
		CleanedDocument: cleanedBase(article.Document, values),
		Link:            article.Link,
	}, nil
}

type repositoryCleaningHandler struct{}

func (repositoryCleaningHandler) Clean(raw models.RawDocument) (models.CleanedDoc, error) {
	repo, ok := raw.(models.RepositoryDocument)
	if !ok {
		return nil, unexpectedType(raw, models.CategoryRepositories)
	}
	return models.CleanedRepositoryDocument{
		CleanedDocument: cleanedBase(repo.Document, repo.Content.Values()),
		Name:            repo.Name,
		Link:            repo.Link,
	}, nil
}

func cleanedBase(doc models.Document, values []string) models.CleanedDocument {
	return models.CleanedDocument{
		ID:             doc.ID,
		Content:        CleanText(strings.Join(values, contentDelimiter)),
		Platform:       doc.Platform,
		AuthorID:       doc.AuthorID,
		AuthorFullName: doc.AuthorFullName,
	}
}

func unexpectedType(doc any, category models.Category) error {
	return fmt.Errorf("%w: %T is not a %s document", ErrUnsupportedCategory, doc, category)
}
