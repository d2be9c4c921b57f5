package twitter

import "time"

// Tweet is the subset of the v2 tweet object the agent reads.
type Tweet struct {
	ID               string            `json:"id"`
	Text             string            `json:"text,omitempty"`
	AuthorID         string            `json:"author_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at,omitempty"`
	Attachments      *Attachments      `json:"attachments,omitempty"`
	ReferencedTweets []ReferencedTweet `json:"referenced_tweets,omitempty"`
}

// Attachments carries the media keys attached to a tweet.
type Attachments struct {
	MediaKeys []string `json:"media_keys,omitempty"`
}

// ReferencedTweet links a tweet to another it quotes or replies to.
type ReferencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Media is the subset of the v2 media object the agent reads.
type Media struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// User is the subset of the v2 user object the agent reads.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Includes carries the expanded objects referenced by a tweet lookup.
type Includes struct {
	Media  []Media `json:"media,omitempty"`
	Users  []User  `json:"users,omitempty"`
	Tweets []Tweet `json:"tweets,omitempty"`
}

// TweetResponse is a single-tweet lookup response.
type TweetResponse struct {
	Data     *Tweet    `json:"data"`
	Includes *Includes `json:"includes,omitempty"`
}

// MentionsResponse is a mentions-timeline response.
type MentionsResponse struct {
	Data []Tweet `json:"data"`
}

// userResponse is a /users/me response.
type userResponse struct {
	Data *User `json:"data"`
}
