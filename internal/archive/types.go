package archive

import "encoding/json"

// Category names as exposed by ReadCategory.
const (
	CategoryAccount   = "account"
	CategoryTweets    = "tweets"
	CategoryFollowing = "following"
	CategoryFollowers = "followers"
	CategoryDMs       = "dm"
	CategoryGroupDMs  = "dm-group"
)

// RawCategoryFile is the parsed contents of one export category: the
// category name plus its records in export order, still untyped.
type RawCategoryFile struct {
	Category string
	Records  []json.RawMessage
}

// RawAccount is the owner identity from account.js.
type RawAccount struct {
	Username  string `json:"username"`
	AccountID string `json:"accountId"`
}

type rawAccountWrapper struct {
	Account RawAccount `json:"account"`
}

// RawURLEntity is a shortlink entity attached to a tweet.
type RawURLEntity struct {
	URL      string `json:"url"`
	Expanded string `json:"expanded_url"`
	Display  string `json:"display_url"`
}

// RawMediaEntity is a media entity attached to a tweet.
type RawMediaEntity struct {
	URL      string `json:"url"`
	MediaURL string `json:"media_url"`
}

// RawMention is a user mention carrying both id and handle.
type RawMention struct {
	ID         string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

// RawEntities is the entities / extended_entities block of a tweet.
type RawEntities struct {
	URLs         []RawURLEntity   `json:"urls"`
	Media        []RawMediaEntity `json:"media"`
	UserMentions []RawMention     `json:"user_mentions"`
}

// RawTweet is one tweet record as stored in the export. String ids match
// the export's id_str convention.
type RawTweet struct {
	ID                  string       `json:"id_str"`
	CreatedAt           string       `json:"created_at"`
	FullText            string       `json:"full_text"`
	Entities            RawEntities  `json:"entities"`
	ExtendedEntities    *RawEntities `json:"extended_entities"`
	InReplyToStatusID   string       `json:"in_reply_to_status_id"`
	InReplyToScreenName string       `json:"in_reply_to_screen_name"`
	InReplyToUserID     string       `json:"in_reply_to_user_id"`
	QuotedStatusID      string       `json:"quoted_status_id_str"`
}

type rawTweetWrapper struct {
	Tweet *RawTweet `json:"tweet"`
}

// RawDMURL is a shortlink entity inside a direct message.
type RawDMURL struct {
	URL      string `json:"url"`
	Expanded string `json:"expanded"`
}

// RawMessage is a messageCreate event.
type RawMessage struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"senderId"`
	RecipientID string     `json:"recipientId"`
	Text        string     `json:"text"`
	CreatedAt   string     `json:"createdAt"`
	URLs        []RawDMURL `json:"urls"`
	MediaURLs   []string   `json:"mediaUrls"`
}

// RawJoin is a joinConversation event.
type RawJoin struct {
	InitiatingUserID     string   `json:"initiatingUserId"`
	ParticipantsSnapshot []string `json:"participantsSnapshot"`
}

// RawParticipantsJoin is a participantsJoin event.
type RawParticipantsJoin struct {
	InitiatingUserID string   `json:"initiatingUserId"`
	UserIDs          []string `json:"userIds"`
}

// RawNameUpdate is a conversationNameUpdate event.
type RawNameUpdate struct {
	Name string `json:"name"`
}

// RawConversationEvent is one message-stream entry; exactly one field is set.
type RawConversationEvent struct {
	MessageCreate          *RawMessage          `json:"messageCreate"`
	JoinConversation       *RawJoin             `json:"joinConversation"`
	ParticipantsJoin       *RawParticipantsJoin `json:"participantsJoin"`
	ConversationNameUpdate *RawNameUpdate       `json:"conversationNameUpdate"`
}

// RawConversation is one DM thread, one-to-one or group.
type RawConversation struct {
	ID       string                 `json:"conversationId"`
	Messages []RawConversationEvent `json:"messages"`
}

type rawConversationWrapper struct {
	DMConversation *RawConversation `json:"dmConversation"`
}

// RawFollow is one following/follower list entry: a bare account id.
type RawFollow struct {
	AccountID string `json:"accountId"`
	UserLink  string `json:"userLink"`
}

type rawFollowingWrapper struct {
	Following *RawFollow `json:"following"`
}

type rawFollowerWrapper struct {
	Follower *RawFollow `json:"follower"`
}
