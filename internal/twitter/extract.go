package twitter

// ExtractImageURL finds an analyzable image in a tweet lookup response.
// Photos yield their direct URL; videos and animated gifs fall back to
// the preview image. The second return value reports whether the tweet
// is a root tweet (it references no other tweet); callers use that to
// attribute the image to its original poster.
func ExtractImageURL(resp *TweetResponse) (string, bool) {
	if resp == nil || resp.Data == nil {
		return "", false
	}

	isRoot := len(resp.Data.ReferencedTweets) == 0

	if resp.Data.Attachments == nil || resp.Includes == nil {
		return "", false
	}

	keys := make(map[string]bool, len(resp.Data.Attachments.MediaKeys))
	for _, k := range resp.Data.Attachments.MediaKeys {
		keys[k] = true
	}
	if len(keys) == 0 {
		return "", false
	}

	for _, m := range resp.Includes.Media {
		if !keys[m.MediaKey] {
			continue
		}
		switch m.Type {
		case "photo":
			if m.URL != "" {
				return m.URL, isRoot
			}
		case "video", "animated_gif":
			if m.PreviewImageURL != "" {
				return m.PreviewImageURL, isRoot
			}
		}
	}
	return "", false
}

// RootTweetResponse returns a lookup response for the tweet this one
// replied to, reusing the expansions already fetched. Returns nil when
// the tweet is not a reply or the root is absent from the includes.
func RootTweetResponse(resp *TweetResponse) *TweetResponse {
	if resp == nil || resp.Data == nil || resp.Includes == nil {
		return nil
	}

	var rootID string
	for _, ref := range resp.Data.ReferencedTweets {
		if ref.Type == "replied_to" {
			rootID = ref.ID
			break
		}
	}
	if rootID == "" {
		return nil
	}

	for i := range resp.Includes.Tweets {
		if resp.Includes.Tweets[i].ID == rootID {
			return &TweetResponse{
				Data:     &resp.Includes.Tweets[i],
				Includes: resp.Includes,
			}
		}
	}
	return nil
}

// UserByID finds a user in the includes, or nil.
func UserByID(includes *Includes, id string) *User {
	if includes == nil || id == "" {
		return nil
	}
	for i := range includes.Users {
		if includes.Users[i].ID == id {
			return &includes.Users[i]
		}
	}
	return nil
}
