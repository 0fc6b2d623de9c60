package models

import "github.com/google/uuid"

// VectorSettings is the static configuration of a vector-store document type.
// Name is empty for types that are never persisted on their own.
type VectorSettings struct {
	Name           string
	Category       Category
	UseVectorIndex bool
	HasEmbedding   bool
}

// VectorDocument is anything that flows through the vector side of the pipeline.
type VectorDocument interface {
	GetID() uuid.UUID
	VectorSettings() VectorSettings
}

// Embeddable documents expose the text handed to the embedding model.
type Embeddable interface {
	VectorDocument
	EmbeddingText() string
}

// Embedded documents carry a vector.
type Embedded interface {
	VectorDocument
	GetEmbedding() []float32
}

// CleanedDocument is the normalised single-string form of a raw document.
// Its id equals the id of the raw document it came from.
type CleanedDocument struct {
	ID             uuid.UUID `json:"id"`
	Content        string    `json:"content"`
	Platform       string    `json:"platform"`
	AuthorID       uuid.UUID `json:"author_id"`
	AuthorFullName string    `json:"author_full_name"`
}

func (d CleanedDocument) GetID() uuid.UUID             { return d.ID }
func (d CleanedDocument) CleanedBase() CleanedDocument { return d }

type CleanedDoc interface {
	VectorDocument
	CleanedBase() CleanedDocument
}

type CleanedPostDocument struct {
	CleanedDocument
	Image string `json:"image,omitempty"`
	Link  string `json:"link,omitempty"`
}

func (CleanedPostDocument) VectorSettings() VectorSettings {
	return VectorSettings{Name: "cleaned_posts", Category: CategoryPosts}
}

type CleanedArticleDocument struct {
	CleanedDocument
	Link string `json:"link"`
}

func (CleanedArticleDocument) VectorSettings() VectorSettings {
	return VectorSettings{Name: "cleaned_articles", Category: CategoryArticles}
}

type CleanedRepositoryDocument struct {
	CleanedDocument
	Name string `json:"name"`
	Link string `json:"link"`
}

func (CleanedRepositoryDocument) VectorSettings() VectorSettings {
	return VectorSettings{Name: "cleaned_repositories", Category: CategoryRepositories}
}

// Chunk is a bounded, content-addressed slice of a cleaned document.
type Chunk struct {
	ID             uuid.UUID      `json:"id"`
	Content        string         `json:"content"`
	Platform       string         `json:"platform"`
	DocumentID     uuid.UUID      `json:"document_id"`
	AuthorID       uuid.UUID      `json:"author_id"`
	AuthorFullName string         `json:"author_full_name"`
	Metadata       map[string]any `json:"metadata"`
}

func (c Chunk) GetID() uuid.UUID      { return c.ID }
func (c Chunk) ChunkBase() Chunk      { return c }
func (c Chunk) EmbeddingText() string { return c.Content }

type ChunkDoc interface {
	Embeddable
	ChunkBase() Chunk
}

type PostChunk struct {
	Chunk
	Image string `json:"image,omitempty"`
}

func (PostChunk) VectorSettings() VectorSettings {
	return VectorSettings{Category: CategoryPosts}
}

type ArticleChunk struct {
	Chunk
	Link string `json:"link"`
}

func (ArticleChunk) VectorSettings() VectorSettings {
	return VectorSettings{Category: CategoryArticles}
}

type RepositoryChunk struct {
	Chunk
	Name string `json:"name"`
	Link string `json:"link"`
}

func (RepositoryChunk) VectorSettings() VectorSettings {
	return VectorSettings{Category: CategoryRepositories}
}

type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

func (c EmbeddedChunk) GetEmbedding() []float32 { return c.Embedding }

type EmbeddedPostChunk struct {
	EmbeddedChunk
}

func (EmbeddedPostChunk) VectorSettings() VectorSettings {
	return VectorSettings{Name: "embedded_posts", Category: CategoryPosts, UseVectorIndex: true, HasEmbedding: true}
}

type EmbeddedArticleChunk struct {
	EmbeddedChunk
	Link string `json:"link"`
}

func (EmbeddedArticleChunk) VectorSettings() VectorSettings {
	return VectorSettings{Name: "embedded_articles", Category: CategoryArticles, UseVectorIndex: true, HasEmbedding: true}
}

type EmbeddedRepositoryChunk struct {
	EmbeddedChunk
	Name string `json:"name"`
	Link string `json:"link"`
}

func (EmbeddedRepositoryChunk) VectorSettings() VectorSettings {
	return VectorSettings{Name: "embedded_repositories", Category: CategoryRepositories, UseVectorIndex: true, HasEmbedding: true}
}

// Query is a free-text retrieval request.
type Query struct {
	ID             uuid.UUID      `json:"id"`
	Content        string         `json:"content"`
	AuthorID       uuid.UUID      `json:"author_id"`
	AuthorFullName string         `json:"author_full_name,omitempty"`
	Metadata       map[string]any `json:"metadata"`
}

func NewQuery(text string) Query {
	return Query{ID: uuid.New(), Content: text, Metadata: map[string]any{}}
}

func (q Query) GetID() uuid.UUID      { return q.ID }
func (q Query) EmbeddingText() string { return q.Content }

func (Query) VectorSettings() VectorSettings {
	return VectorSettings{Category: CategoryQueries}
}

type EmbeddedQuery struct {
	Query
	Embedding []float32 `json:"embedding"`
}

func (q EmbeddedQuery) GetEmbedding() []float32 { return q.Embedding }

func (EmbeddedQuery) VectorSettings() VectorSettings {
	return VectorSettings{Category: CategoryQueries, HasEmbedding: true}
}
