package model

import "fmt"

// ProfileURL is the id-based profile URL of an account.
func ProfileURL(id string) string {
	return fmt.Sprintf("https://twitter.com/i/user/%s", id)
}

// PlaceholderHandle is the well-defined stand-in used wherever no handle
// could be resolved: the id-based profile URL, never a bare numeric id.
func PlaceholderHandle(id string) string {
	return ProfileURL(id)
}

// TweetURL is the canonical URL of one of the owner's tweets.
func TweetURL(owner, tweetID string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", owner, tweetID)
}

// StatusURL is the URL of an arbitrary user's tweet, used for reply targets.
func StatusURL(handle, tweetID string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", handle, tweetID)
}
