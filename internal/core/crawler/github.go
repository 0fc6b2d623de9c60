package crawler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

// APIError is a failed GitHub API call.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error %d: %s (%s)", e.StatusCode, e.Message, e.URL)
}

// GitHubClient wraps go-github with the calls the repository crawler makes.
type GitHubClient struct {
	gh *gh.Client
}

// NewGitHubClient authenticates with token when one is given.
func NewGitHubClient(ctx context.Context, token string, timeout time.Duration) *GitHubClient {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = timeout
	return &GitHubClient{gh: gh.NewClient(hc)}
}

// NewGitHubClientWithBaseURL points the client at another API root, such as
// a GitHub Enterprise server.
func NewGitHubClientWithBaseURL(hc *http.Client, baseURL string) (*GitHubClient, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("github base url: %w", err)
	}
	client := gh.NewClient(hc)
	client.BaseURL = u
	return &GitHubClient{gh: client}, nil
}

func (c *GitHubClient) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", wrapGitHubError(err, "get repo")
	}
	return r.GetDefaultBranch(), nil
}

func (c *GitHubClient) tree(ctx context.Context, owner, repo, ref string) (*gh.Tree, error) {
	t, _, err := c.gh.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, wrapGitHubError(err, "get tree")
	}
	return t, nil
}

func (c *GitHubClient) blob(ctx context.Context, owner, repo, sha string) (string, error) {
	b, _, err := c.gh.Git.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return "", wrapGitHubError(err, "get blob")
	}
	if b.GetEncoding() == "base64" {
		raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(b.GetContent(), "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode blob %s: %w", sha, err)
		}
		return string(raw), nil
	}
	return b.GetContent(), nil
}

func wrapGitHubError(err error, operation string) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// DefaultIgnore lists path prefixes (for directories) and suffixes (for
// files) skipped when reading a repository.
var DefaultIgnore = []string{".git", ".toml", ".lock", ".png"}

type GitHubCrawler struct {
	repos  DocumentStore[models.RepositoryDocument]
	client *GitHubClient
	ignore []string
	log    *logger.Logger
}

func NewGitHubCrawler(repos DocumentStore[models.RepositoryDocument], client *GitHubClient, ignore []string, log *logger.Logger) *GitHubCrawler {
	if log == nil {
		log = logger.Nop()
	}
	if ignore == nil {
		ignore = DefaultIgnore
	}
	return &GitHubCrawler{repos: repos, client: client, ignore: ignore, log: log.With("service", "GitHubCrawler")}
}

func (c *GitHubCrawler) Extract(ctx context.Context, link string, user models.UserDocument) error {
	exists, err := alreadyStored(ctx, c.repos, link)
	if err != nil {
		return err
	}
	if exists {
		c.log.Info("Repository already exists in the database", "link", link)
		return nil
	}

	owner, repo, err := parseRepoLink(link)
	if err != nil {
		return err
	}
	c.log.Info("Starting scraping GitHub repository", "link", link)

	branch, err := c.client.defaultBranch(ctx, owner, repo)
	if err != nil {
		return err
	}
	tree, err := c.client.tree(ctx, owner, repo, branch)
	if err != nil {
		return err
	}

	var content models.Content
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		p := entry.GetPath()
		if c.skip(p) {
			continue
		}
		text, err := c.client.blob(ctx, owner, repo, entry.GetSHA())
		if err != nil {
			c.log.Warn("skipping unreadable file", "path", p, "error", err)
			continue
		}
		content = content.Set(p, strings.ReplaceAll(text, " ", ""))
	}
	if tree.GetTruncated() {
		c.log.Warn("repository tree truncated by the API", "link", link, "files", len(content))
	}

	doc := models.RepositoryDocument{
		Document: models.NewDocument("github", content, user),
		Name:     repo,
		Link:     link,
	}
	if _, err := c.repos.Save(ctx, doc); err != nil {
		return err
	}

	c.log.Info("Finished scraping GitHub repository", "link", link, "files", len(content))
	return nil
}

// skip applies the ignore list: prefixes against the directory, suffixes
// against the file name.
func (c *GitHubCrawler) skip(p string) bool {
	dir, file := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	for _, ign := range c.ignore {
		if strings.HasPrefix(dir, ign) || strings.HasSuffix(file, ign) {
			return true
		}
	}
	return false
}

// parseRepoLink reads owner and repository from a github.com link.
func parseRepoLink(link string) (owner, repo string, err error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q is not a repository link", ErrInvalidLink, link)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
