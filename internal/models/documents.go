package models

import (
	"strings"

	"github.com/google/uuid"
)

// NoSQLDocument is anything persisted in the raw document store.
type NoSQLDocument interface {
	GetID() uuid.UUID
	CollectionName() string
}

// RawDocument is a crawled document of one of the content families.
type RawDocument interface {
	NoSQLDocument
	Base() Document
}

type UserDocument struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

func (u UserDocument) GetID() uuid.UUID     { return u.ID }
func (UserDocument) CollectionName() string { return "users" }

func (u UserDocument) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Document holds the fields shared by every raw content family.
type Document struct {
	ID             uuid.UUID `json:"id"`
	Content        Content   `json:"content"`
	Platform       string    `json:"platform"`
	AuthorID       uuid.UUID `json:"author_id"`
	AuthorFullName string    `json:"author_full_name"`
}

func (d Document) GetID() uuid.UUID { return d.ID }
func (d Document) Base() Document   { return d }

type ArticleDocument struct {
	Document
	Link string `json:"link"`
}

func (ArticleDocument) CollectionName() string { return string(CategoryArticles) }

type PostDocument struct {
	Document
	Image string `json:"image,omitempty"`
	Link  string `json:"link,omitempty"`
}

func (PostDocument) CollectionName() string { return string(CategoryPosts) }

type RepositoryDocument struct {
	Document
	Name string `json:"name"`
	Link string `json:"link"`
}

func (RepositoryDocument) CollectionName() string { return string(CategoryRepositories) }

// NewDocument stamps a fresh id and the author onto a content payload.
func NewDocument(platform string, content Content, author UserDocument) Document {
	return Document{
		ID:             uuid.New(),
		Content:        content,
		Platform:       platform,
		AuthorID:       author.ID,
		AuthorFullName: author.FullName(),
	}
}
