// Package twitter is a narrow client for the pieces of the Twitter v2
// API the agent consumes: who am I, my recent mentions, one tweet with
// its media/user expansions, and posting a reply. Everything else about
// the protocol is out of scope.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Field sets requested on tweet lookups. Kept in one place because the
// extractor depends on exactly these expansions being present.
const (
	tweetFields        = "referenced_tweets,author_id,attachments"
	tweetExpansions    = "referenced_tweets.id,attachments.media_keys,author_id,referenced_tweets.id.author_id,referenced_tweets.id.attachments.media_keys"
	userFields         = "username"
	mediaFields        = "type,url,preview_image_url,media_key"
	mentionTweetFields = "id,created_at,text"
)

// Config holds client connection settings.
type Config struct {
	BaseURL     string
	BearerToken string
}

// Client talks to the Twitter v2 API.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a Twitter API client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the Twitter API. The status code
// is kept structured so classifiers do not have to sniff error text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter: status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code for error classifiers.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Me returns the authenticated bot account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out userResponse
	if err := c.get(ctx, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("twitter: empty /users/me response")
	}
	return out.Data, nil
}

// UserMentions returns up to maxResults tweets mentioning userID that
// were posted at or after startTime.
func (c *Client) UserMentions(ctx context.Context, userID string, maxResults int, startTime time.Time) (*MentionsResponse, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("tweet.fields", mentionTweetFields)
	if !startTime.IsZero() {
		q.Set("start_time", startTime.UTC().Format(time.RFC3339))
	}

	var out MentionsResponse
	if err := c.get(ctx, "/users/"+userID+"/mentions", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tweet returns one tweet with the media, user and referenced-tweet
// expansions the extractor needs.
func (c *Client) Tweet(ctx context.Context, id string) (*TweetResponse, error) {
	q := url.Values{}
	q.Set("tweet.fields", tweetFields)
	q.Set("expansions", tweetExpansions)
	q.Set("user.fields", userFields)
	q.Set("media.fields", mediaFields)

	var out TweetResponse
	if err := c.get(ctx, "/tweets/"+id, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReply posts text as a reply to the given tweet.
func (c *Client) CreateReply(ctx context.Context, text, inReplyToTweetID string) error {
	payload := map[string]any{
		"text": text,
		"reply": map[string]string{
			"in_reply_to_tweet_id": inReplyToTweetID,
		},
	}
	return c.post(ctx, "/tweets", payload, nil)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
