package preprocessing

import (
	"maps"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
)

const (
	postChunkSize          = 500
	postChunkOverlap       = 50
	articleMinLength       = 1000
	articleMaxLength       = 2000
	repositoryChunkSize    = 1500
	repositoryChunkOverlap = 100
)

// ChunkingHandler splits one cleaned document family into chunks.
type ChunkingHandler interface {
	Metadata() map[string]any
	Chunk(cleaned models.CleanedDoc) ([]models.ChunkDoc, error)
}

type postChunkingHandler struct {
	tokensPerChunk int
}

func (postChunkingHandler) Metadata() map[string]any {
	return map[string]any{"chunk_size": postChunkSize, "chunk_overlap": postChunkOverlap}
}

func (h postChunkingHandler) Chunk(cleaned models.CleanedDoc) ([]models.ChunkDoc, error) {
	post, ok := cleaned.(models.CleanedPostDocument)
	if !ok {
		return nil, unexpectedType(cleaned, models.CategoryPosts)
	}
	var out []models.ChunkDoc
	for _, text := range ChunkText(post.Content, postChunkSize, postChunkOverlap, h.tokensPerChunk) {
		out = append(out, models.PostChunk{
			Chunk: newChunk(text, post.CleanedDocument, h.Metadata()),
			Image: post.Image,
		})
	}
	return out, nil
}

type articleChunkingHandler struct{}

func (articleChunkingHandler) Metadata() map[string]any {
	return map[string]any{"min_length": articleMinLength, "max_length": articleMaxLength}
}

func (h articleChunkingHandler) Chunk(cleaned models.CleanedDoc) ([]models.ChunkDoc, error) {
	article, ok := cleaned.(models.CleanedArticleDocument)
	if !ok {
		return nil, unexpectedType(cleaned, models.CategoryArticles)
	}
	var out []models.ChunkDoc
	for _, text := range ChunkArticle(article.Content, articleMinLength, articleMaxLength) {
		out = append(out, models.ArticleChunk{
			Chunk: newChunk(text, article.CleanedDocument, h.Metadata()),
			Link:  article.Link,
		})
	}
	return out, nil
}

type repositoryChunkingHandler struct {
	tokensPerChunk int
}

func (repositoryChunkingHandler) Metadata() map[string]any {
	return map[string]any{"chunk_size": repositoryChunkSize, "chunk_overlap": repositoryChunkOverlap}
}

func (h repositoryChunkingHandler) Chunk(cleaned models.CleanedDoc) ([]models.ChunkDoc, error) {
	repo, ok := cleaned.(models.CleanedRepositoryDocument)
	if !ok {
		return nil, unexpectedType(cleaned, models.CategoryRepositories)
	}
	var out []models.ChunkDoc
	for _, text := range ChunkText(repo.Content, repositoryChunkSize, repositoryChunkOverlap, h.tokensPerChunk) {
		out = append(out, models.RepositoryChunk{
			Chunk: newChunk(text, repo.CleanedDocument, h.Metadata()),
			Name:  repo.Name,
			Link:  repo.Link,
		})
	}
	return out, nil
}

func newChunk(text string, doc models.CleanedDocument, metadata map[string]any) models.Chunk {
	return models.Chunk{
		ID:             models.ChunkID(text),
		Content:        text,
		Platform:       doc.Platform,
		DocumentID:     doc.ID,
		AuthorID:       doc.AuthorID,
		AuthorFullName: doc.AuthorFullName,
		Metadata:       maps.Clone(metadata),
	}
}
