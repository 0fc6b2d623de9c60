package crawler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-pipeline/internal/core/archive"
	db "github.com/markdave123-py/contexta-pipeline/internal/core/database"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

type stores struct {
	articles *db.Collection[models.ArticleDocument]
	posts    *db.Collection[models.PostDocument]
	repos    *db.Collection[models.RepositoryDocument]
}

func newStores(t *testing.T) stores {
	t.Helper()
	backend := db.NewMemoryBackend()
	articles, err := db.NewCollection[models.ArticleDocument](backend, logger.Nop())
	require.NoError(t, err)
	posts, err := db.NewCollection[models.PostDocument](backend, logger.Nop())
	require.NoError(t, err)
	repos, err := db.NewCollection[models.RepositoryDocument](backend, logger.Nop())
	require.NoError(t, err)
	return stores{articles: articles, posts: posts, repos: repos}
}

var testUser = models.UserDocument{ID: uuid.New(), FirstName: "Paul", LastName: "Iusztin"}

func TestDomain(t *testing.T) {
	cases := map[string]string{
		"https://medium.com/p/1":            "medium.com",
		"https://www.Medium.com:443/p/1":    "medium.com",
		"http://github.com/decodingml/repo": "github.com",
		"linkedin.com/in/someone":           "linkedin.com",
	}
	for link, want := range cases {
		got, err := Domain(link)
		require.NoError(t, err, link)
		assert.Equal(t, want, got, link)
	}

	_, err := Domain("   ")
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestDispatcherRoutesByDomain(t *testing.T) {
	s := newStores(t)
	d := NewDispatcher(Deps{
		Articles:     s.articles,
		Posts:        s.posts,
		Repositories: s.repos,
		Fetcher:      NewPageFetcher(0, nil, logger.Nop()),
		GitHub:       NewGitHubClient(context.Background(), "", 0),
		Log:          logger.Nop(),
	}).RegisterMedium().RegisterLinkedIn().RegisterGitHub()

	assert.IsType(t, &MediumCrawler{}, d.GetCrawler("https://medium.com/@someone/post-123"))
	assert.IsType(t, &MediumCrawler{}, d.GetCrawler("https://www.medium.com/p/1"))
	assert.IsType(t, &GitHubCrawler{}, d.GetCrawler("https://github.com/decodingml/llm-twin-course"))
	assert.IsType(t, &LinkedInCrawler{}, d.GetCrawler("https://www.linkedin.com/posts/x"))
	assert.IsType(t, &CustomArticleCrawler{}, d.GetCrawler("https://blog.example.com/post"))
	assert.IsType(t, &CustomArticleCrawler{}, d.GetCrawler("https://notmedium.com/p/1"))
	assert.IsType(t, &CustomArticleCrawler{}, d.GetCrawler("::not a url"))
}

func TestLinkedInCrawlerIsDeprecated(t *testing.T) {
	s := newStores(t)
	c := NewLinkedInCrawler(s.posts, logger.Nop())
	err := c.Extract(context.Background(), "https://linkedin.com/posts/1", testUser)
	assert.ErrorIs(t, err, ErrDeprecated)
}

func TestCrawlersAcceptNilLogger(t *testing.T) {
	s := newStores(t)
	fetcher := NewPageFetcher(0, nil, nil)
	crawlers := []Crawler{
		NewMediumCrawler(s.articles, fetcher, nil),
		NewCustomArticleCrawler(s.articles, fetcher, nil),
		NewLinkedInCrawler(s.posts, nil),
		NewGitHubCrawler(s.repos, NewGitHubClient(context.Background(), "", 0), nil, nil),
	}
	for _, c := range crawlers {
		assert.NotNil(t, c)
	}

	err := crawlers[2].Extract(context.Background(), "https://linkedin.com/posts/1", testUser)
	assert.ErrorIs(t, err, ErrDeprecated)
}

const articleHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Building an LLM Twin</title>
  <meta name="description" content="An end-to-end framework">
</head>
<body>
  <h1 class="pw-post-title">Building an LLM Twin</h1>
  <h2 class="pw-subtitle-paragraph">From data to deployment</h2>
  <p>The feature pipeline cleans, chunks and embeds documents.</p>
</body>
</html>`

func TestArticleCrawlers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	ctx := context.Background()
	recorder := archive.NewLogRecorder(logger.Nop())
	fetcher := NewPageFetcherWithClient(srv.Client(), recorder, logger.Nop())

	t.Run("medium", func(t *testing.T) {
		s := newStores(t)
		c := NewMediumCrawler(s.articles, fetcher, logger.Nop())
		link := srv.URL + "/p/1"

		require.NoError(t, c.Extract(ctx, link, testUser))
		doc, err := s.articles.Find(ctx, db.Filter{"link": link})
		require.NoError(t, err)
		require.NotNil(t, doc)

		assert.Equal(t, "medium", doc.Platform)
		assert.Equal(t, testUser.ID, doc.AuthorID)
		title, _ := doc.Content.Get("Title")
		subtitle, _ := doc.Content.Get("Subtitle")
		body, _ := doc.Content.Get("Content")
		assert.Equal(t, "Building an LLM Twin", title)
		assert.Equal(t, "From data to deployment", subtitle)
		assert.Contains(t, body, "The feature pipeline cleans")

		before := hits.Load()
		require.NoError(t, c.Extract(ctx, link, testUser))
		assert.Equal(t, before, hits.Load(), "stored links are not fetched again")
	})

	t.Run("custom", func(t *testing.T) {
		s := newStores(t)
		c := NewCustomArticleCrawler(s.articles, fetcher, logger.Nop())
		link := srv.URL + "/blog/post"

		require.NoError(t, c.Extract(ctx, link, testUser))
		doc, err := s.articles.Find(ctx, db.Filter{"link": link})
		require.NoError(t, err)
		require.NotNil(t, doc)

		assert.Equal(t, srv.Listener.Addr().String(), doc.Platform)
		assert.Equal(t, []string{"Title", "Subtitle", "Content", "language"}, keys(doc.Content))
		subtitle, _ := doc.Content.Get("Subtitle")
		lang, _ := doc.Content.Get("language")
		assert.Equal(t, "An end-to-end framework", subtitle)
		assert.Equal(t, "en", lang)
	})
}

func TestPageFetcherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewPageFetcherWithClient(srv.Client(), nil, logger.Nop()).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 404")
}

func TestGitHubCrawler(t *testing.T) {
	blobs := map[string]string{
		"sha-main":   "package main\n\nfunc main() {}\n",
		"sha-readme": "# Twin course",
		"sha-lock":   "locked",
		"sha-hook":   "#!/bin/sh",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/decodingml/llm-twin/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/repos/decodingml/llm-twin/":
			http.NotFound(w, r)
		case "/repos/decodingml/llm-twin/git/trees/main":
			assert.Equal(t, "1", r.URL.Query().Get("recursive"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sha": "tree",
				"tree": []map[string]any{
					{"path": "README.md", "type": "blob", "sha": "sha-readme"},
					{"path": "cmd", "type": "tree", "sha": "sha-dir"},
					{"path": "cmd/main.go", "type": "blob", "sha": "sha-main"},
					{"path": "poetry.lock", "type": "blob", "sha": "sha-lock"},
					{"path": ".github/hooks/pre-commit", "type": "blob", "sha": "sha-hook"},
				},
				"truncated": false,
			})
		default:
			sha := r.URL.Path[len("/repos/decodingml/llm-twin/git/blobs/"):]
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sha":      sha,
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(blobs[sha])),
			})
		}
	})
	mux.HandleFunc("/repos/decodingml/llm-twin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "llm-twin", "default_branch": "main"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewGitHubClientWithBaseURL(srv.Client(), srv.URL)
	require.NoError(t, err)

	ctx := context.Background()
	s := newStores(t)
	c := NewGitHubCrawler(s.repos, client, nil, logger.Nop())
	link := "https://github.com/decodingml/llm-twin"

	require.NoError(t, c.Extract(ctx, link, testUser))
	doc, err := s.repos.Find(ctx, db.Filter{"link": link})
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "github", doc.Platform)
	assert.Equal(t, "llm-twin", doc.Name)
	assert.Equal(t, []string{"README.md", "cmd/main.go"}, keys(doc.Content))
	mainGo, _ := doc.Content.Get("cmd/main.go")
	assert.Equal(t, "packagemain\n\nfuncmain(){}\n", mainGo)
}

func TestParseRepoLink(t *testing.T) {
	owner, repo, err := parseRepoLink("https://github.com/decodingml/llm-twin-course.git/")
	require.NoError(t, err)
	assert.Equal(t, "decodingml", owner)
	assert.Equal(t, "llm-twin-course", repo)

	_, _, err = parseRepoLink("https://github.com/decodingml")
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func keys(c models.Content) []string {
	out := make([]string, len(c))
	for i, f := range c {
		out[i] = f.Key
	}
	return out
}
