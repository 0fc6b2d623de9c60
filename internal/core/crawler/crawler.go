// Package crawler extracts raw documents from links and stores them in the
// raw document store.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	db "github.com/markdave123-py/contexta-pipeline/internal/core/database"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
)

var (
	// ErrDeprecated marks a source that can no longer be crawled.
	ErrDeprecated  = errors.New("crawler deprecated")
	ErrInvalidLink = errors.New("invalid link")
)

// Crawler extracts the document behind link on behalf of user and persists it.
type Crawler interface {
	Extract(ctx context.Context, link string, user models.UserDocument) error
}

// DocumentStore is the slice of a raw-store collection a crawler needs.
type DocumentStore[T models.NoSQLDocument] interface {
	Find(ctx context.Context, filter db.Filter) (*T, error)
	Save(ctx context.Context, doc T) (*T, error)
}

// Domain returns the host of link, lowercased, with any port and leading
// "www." removed. Links without a scheme are read as https.
func Domain(link string) (string, error) {
	raw := strings.TrimSpace(link)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLink)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidLink, link)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// alreadyStored reports whether a document with this link exists.
func alreadyStored[T models.NoSQLDocument](ctx context.Context, store DocumentStore[T], link string) (bool, error) {
	found, err := store.Find(ctx, db.Filter{"link": link})
	if err != nil {
		return false, fmt.Errorf("check existing %s: %w", link, err)
	}
	return found != nil, nil
}
