package model

import "time"

// TweetKind classifies a tweet. Exactly one kind applies to every tweet;
// classification precedence is retweet > quote > reply > original.
type TweetKind string

const (
	KindOriginal TweetKind = "original"
	KindRetweet  TweetKind = "retweet"
	KindReply    TweetKind = "reply"
	KindQuote    TweetKind = "quote"
)

// Tweet is the canonical tweet record. Kind-specific fields are only set
// for the matching kind: RetweetedFrom for retweets, the ReplyTo* fields
// for replies, QuotedTweetID for quotes.
type Tweet struct {
	ID             string
	Year           int
	Kind           TweetKind
	RetweetedFrom  string
	ReplyToHandles []string
	ReplyToTweetID string
	ReplyToURL     string
	QuotedTweetID  string
	Body           string
	CreatedAt      time.Time
	URL            string
	Media          []string
}

// DirectMessage is a single message in a one-to-one conversation.
// Sender and Recipient are never equal.
type DirectMessage struct {
	Sender    string
	Recipient string
	Body      string
	CreatedAt time.Time
}

// GroupMessage is a single message in a group conversation.
type GroupMessage struct {
	Sender    string
	Body      string
	CreatedAt time.Time
}

// GroupConversation is a conversation with three or more participants.
// Every message sender is a member of Participants.
type GroupConversation struct {
	Name         string
	Messages     []GroupMessage
	Participants []string
}

// User is a resolved account. Handle is never empty and never a bare
// numeric id; unresolvable ids degrade to the profile-URL placeholder.
type User struct {
	Handle     string
	ProfileURL string
}

// UserInfo is the aggregate result of one ingestion run.
type UserInfo struct {
	Owner          string
	Following      []User
	Followers      []User
	Tweets         []Tweet
	DirectMessages []DirectMessage
	Groups         []GroupConversation
	MediaPaths     []string
	FollowingCount int
	FollowerCount  int
	Warnings       []Warning
}
