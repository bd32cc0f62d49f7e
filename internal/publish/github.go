package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubConfig holds the settings for the GitHub contents sink.
type GitHubConfig struct {
	// Token is a personal access token with contents write permission.
	Token string

	// Owner and Repo name the target repository.
	Owner string
	Repo  string

	// Branch is the target branch; empty means the repository default.
	Branch string

	// PathPrefix is prepended to the generated file path, e.g. "digests".
	PathPrefix string

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// GitHubSink commits the digest as a markdown file via the GitHub
// contents API. Re-publishing a date looks up the existing file's SHA
// and updates it in place, which is what makes delivery idempotent.
type GitHubSink struct {
	httpClient *http.Client
	config     GitHubConfig
}

// NewGitHubSink creates a GitHubSink.
func NewGitHubSink(config GitHubConfig) (*GitHubSink, error) {
	if config.Token == "" {
		return nil, errors.New("github token cannot be empty")
	}
	if config.Owner == "" || config.Repo == "" {
		return nil, errors.New("github owner and repo cannot be empty")
	}
	if config.BaseURL == "" {
		config.BaseURL = githubAPIBaseURL
	}
	return &GitHubSink{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
	}, nil
}

// Name implements Sink.
func (s *GitHubSink) Name() string { return "github" }

// Publish implements Sink.
func (s *GitHubSink) Publish(ctx context.Context, date string, content string) error {
	path := date + ".md"
	if s.config.PathPrefix != "" {
		path = s.config.PathPrefix + "/" + path
	}

	sha, err := s.currentSHA(ctx, path)
	if err != nil {
		return err
	}

	body := map[string]string{
		"message": fmt.Sprintf("Add digest for %s", date),
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if sha != "" {
		body["message"] = fmt.Sprintf("Update digest for %s", date)
		body["sha"] = sha
	}
	if s.config.Branch != "" {
		body["branch"] = s.config.Branch
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode github request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(path), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build github request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("github returned status %d for %s", resp.StatusCode, path)
	}
	return nil
}

// currentSHA returns the blob SHA of the existing file, or empty when
// the file does not exist yet.
func (s *GitHubSink) currentSHA(ctx context.Context, path string) (string, error) {
	url := s.contentsURL(path)
	if s.config.Branch != "" {
		url += "?ref=" + s.config.Branch
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build github request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github returned status %d looking up %s", resp.StatusCode, path)
	}

	var payload struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode github response: %w", err)
	}
	return payload.SHA, nil
}

func (s *GitHubSink) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		s.config.BaseURL, s.config.Owner, s.config.Repo, path)
}

func (s *GitHubSink) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.config.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
}
