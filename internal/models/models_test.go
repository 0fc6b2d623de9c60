package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIDIsDeterministicVersion4(t *testing.T) {
	id := ChunkID("hello")

	assert.Equal(t, "5d41402a-bc4b-4a76-b971-9d911017c592", id.String())
	assert.Equal(t, uuid.Version(4), id.Version())
	assert.Equal(t, uuid.RFC4122, id.Variant())
	assert.Equal(t, id, ChunkID("hello"))
	assert.NotEqual(t, id, ChunkID("hello "))
}

func TestContentKeepsInsertionOrderThroughJSON(t *testing.T) {
	doc := ArticleDocument{
		Document: Document{
			ID:      uuid.New(),
			Content: NewContent("Title", "Zebra", "Subtitle", "", "Content", "Body text"),
		},
		Link: "https://medium.com/p/1",
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"content":{"Title":"Zebra","Subtitle":"","Content":"Body text"}`)

	var back ArticleDocument
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []string{"Zebra", "", "Body text"}, back.Content.Values())
	assert.Equal(t, doc.Link, back.Link)
	assert.True(t, SameDocument(doc, back))
}

func TestContentDecodesNullAndScalars(t *testing.T) {
	var c Content
	require.NoError(t, json.Unmarshal([]byte(`{"Title":null,"stars":42,"Title":"again"}`), &c))

	v, ok := c.Get("Title")
	assert.True(t, ok)
	assert.Equal(t, "again", v)
	assert.Len(t, c, 2)
	stars, _ := c.Get("stars")
	assert.Equal(t, "42", stars)
}

func TestSameDocumentComparesTypeAndID(t *testing.T) {
	id := uuid.New()
	post := CleanedPostDocument{CleanedDocument: CleanedDocument{ID: id}}
	article := CleanedArticleDocument{CleanedDocument: CleanedDocument{ID: id}}

	assert.True(t, SameDocument(post, CleanedPostDocument{CleanedDocument: CleanedDocument{ID: id, Content: "other"}}))
	assert.False(t, SameDocument(post, article))
	assert.False(t, SameDocument(post, CleanedPostDocument{CleanedDocument: CleanedDocument{ID: uuid.New()}}))
}

func TestRegistryResolvesCollections(t *testing.T) {
	kind, err := LookupVectorKind("embedded_articles")
	require.NoError(t, err)
	assert.Equal(t, CategoryArticles, kind.Settings.Category)
	assert.True(t, kind.Settings.HasEmbedding)

	doc, err := kind.Decode([]byte(`{"id":"5d41402a-bc4b-4a76-b971-9d911017c592","content":"x","link":"https://a.b","embedding":[0.5]}`))
	require.NoError(t, err)
	article, ok := doc.(EmbeddedArticleChunk)
	require.True(t, ok)
	assert.Equal(t, "https://a.b", article.Link)
	assert.Equal(t, []float32{0.5}, article.Embedding)

	_, err = LookupVectorKind("users")
	assert.ErrorIs(t, err, ErrUnknownCollection)

	kind, err = EmbeddedKindFor(CategoryRepositories)
	require.NoError(t, err)
	assert.Equal(t, "embedded_repositories", kind.Settings.Name)

	kind, err = VectorKindForCategory(StageCleaned, CategoryArticles)
	require.NoError(t, err)
	assert.Equal(t, "cleaned_articles", kind.Settings.Name)

	_, err = VectorKindForCategory(StageEmbedded, CategoryPrompt)
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, err = CollectionOf(PostChunk{})
	assert.ErrorIs(t, err, ErrImproperlyConfigured)
}

func TestRawRegistry(t *testing.T) {
	kind, err := RawKindForCategory(CategoryRepositories)
	require.NoError(t, err)
	assert.Equal(t, "repositories", kind.Name)

	kind, err = LookupRawKind("articles")
	require.NoError(t, err)
	assert.Equal(t, CategoryArticles, kind.Category)
	doc, err := kind.Decode([]byte(`{"id":"5d41402a-bc4b-4a76-b971-9d911017c592","content":{"Title":"RAG"},"platform":"medium","link":"https://a.b"}`))
	require.NoError(t, err)
	article, ok := doc.(ArticleDocument)
	require.True(t, ok)
	assert.Equal(t, "https://a.b", article.Link)
	assert.Equal(t, "medium", article.Platform)

	category, err := RawCategoryOf(PostDocument{})
	require.NoError(t, err)
	assert.Equal(t, CategoryPosts, category)

	_, err = RawKindForCategory(CategoryQueries)
	assert.ErrorIs(t, err, ErrUnknownCollection)
	_, err = LookupRawKind("cleaned_posts")
	assert.ErrorIs(t, err, ErrUnknownCollection)
	_, err = RawCategoryOf(UserDocument{})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestGrouping(t *testing.T) {
	docs := []VectorDocument{
		CleanedPostDocument{},
		CleanedArticleDocument{},
		CleanedPostDocument{},
	}

	byCategory := GroupByCategory(docs)
	assert.Len(t, byCategory[CategoryPosts], 2)
	assert.Len(t, byCategory[CategoryArticles], 1)

	byType := GroupByType(docs)
	require.Len(t, byType, 2)
	assert.Len(t, byType[0].Docs, 2)
	assert.Equal(t, "CleanedPostDocument", byType[0].Type.Name())
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("repositories")
	require.NoError(t, err)
	assert.Equal(t, CategoryRepositories, c)

	_, err = ParseCategory("users")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Len(t, Categories(), 9)
}
