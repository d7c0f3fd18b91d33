package tweets

import (
	"path"
	"regexp"
	"strings"
	"time"

	"plumage/internal/archive"
	"plumage/internal/model"
	"plumage/internal/refindex"
	"plumage/internal/util"
)

// Retweet bodies start with "RT @handle:"; replies start with the mention
// block of the accounts being replied to.
var (
	retweetMarker = regexp.MustCompile(`^RT @([0-9A-Za-z_]+):?\s*`)
	replyMentions = regexp.MustCompile(`^(@[0-9A-Za-z_]+ )+`)
)

// Normalize converts raw tweet records into canonical tweets, preserving
// export order. Classification precedence is retweet > quote > reply >
// original; exactly one kind is assigned per tweet.
func Normalize(raw []archive.RawTweet, idx *refindex.Snapshot, owner string) ([]model.Tweet, []model.Warning) {
	out := make([]model.Tweet, 0, len(raw))
	var warnings []model.Warning
	for _, rt := range raw {
		t, w := convert(rt, idx, owner)
		out = append(out, t)
		warnings = append(warnings, w...)
	}
	return out, warnings
}

func convert(rt archive.RawTweet, idx *refindex.Snapshot, owner string) (model.Tweet, []model.Warning) {
	var warnings []model.Warning
	t := model.Tweet{
		ID:   rt.ID,
		Kind: model.KindOriginal,
		URL:  model.TweetURL(owner, rt.ID),
	}

	// Example: Tue Mar 19 14:05:17 +0000 2019
	if ts, err := time.Parse(time.RubyDate, rt.CreatedAt); err == nil {
		t.CreatedAt = ts
		t.Year = ts.Year()
	} else {
		warnings = append(warnings, model.Warnf(model.WarnCategoryParse, archive.CategoryTweets,
			"tweet %s: bad created_at %q", rt.ID, rt.CreatedAt))
	}

	body := util.NormalizeWhitespace(rt.FullText)

	switch {
	case retweetMarker.MatchString(body):
		t.Kind = model.KindRetweet
		m := retweetMarker.FindStringSubmatch(body)
		t.RetweetedFrom = m[1]
		body = body[len(m[0]):]
	case rt.QuotedStatusID != "":
		t.Kind = model.KindQuote
		t.QuotedTweetID = rt.QuotedStatusID
	case rt.InReplyToStatusID != "":
		t.Kind = model.KindReply
		t.ReplyToTweetID = rt.InReplyToStatusID
		body = convertReply(&t, rt, body, idx, owner, &warnings)
	}

	body, media, mw := resolveMedia(rt, idx, body)
	t.Media = media
	warnings = append(warnings, mw...)

	body, lw := idx.ExpandLinks(body)
	warnings = append(warnings, lw...)
	t.Body = util.NormalizeWhitespace(body)
	return t, warnings
}

// convertReply strips the leading mention block into the reply-target
// handles and determines the target account. An empty mention block means a
// self-reply.
func convertReply(t *model.Tweet, rt archive.RawTweet, body string, idx *refindex.Snapshot, owner string, warnings *[]model.Warning) string {
	prefix := replyMentions.FindString(body)
	if prefix != "" {
		body = body[len(prefix):]
		for _, name := range strings.Fields(prefix) {
			t.ReplyToHandles = append(t.ReplyToHandles, strings.TrimPrefix(name, "@"))
		}
	} else {
		t.ReplyToHandles = []string{owner}
	}

	target := rt.InReplyToScreenName
	if target == "" {
		// Older exports lack in_reply_to_screen_name.
		if h, ok := idx.Handle(rt.InReplyToUserID); ok {
			target = h
		} else if len(t.ReplyToHandles) > 0 && prefix != "" {
			target = t.ReplyToHandles[0]
		} else {
			target = rt.InReplyToUserID
			*warnings = append(*warnings, model.Warnf(model.WarnUnresolvedHandle, rt.InReplyToUserID,
				"reply target of tweet %s has no handle", rt.ID))
		}
	}
	t.ReplyToURL = model.StatusURL(target, rt.InReplyToStatusID)
	return body
}

// resolveMedia maps attached media to materialized local files. The archive
// names tweet media "<tweetID>-<basename of media_url>"; when that exact
// file is absent, any file prefixed with the tweet id is used instead
// (videos are renamed in exports). A tweet whose media cannot be found
// keeps its textual reference in the body and is flagged, not dropped.
func resolveMedia(rt archive.RawTweet, idx *refindex.Snapshot, body string) (string, []string, []model.Warning) {
	if len(rt.Entities.Media) == 0 || rt.ExtendedEntities == nil || len(rt.ExtendedEntities.Media) == 0 {
		return body, nil, nil
	}
	var paths []string
	var warnings []model.Warning
	mediaRef := rt.Entities.Media[0].URL
	for _, m := range rt.ExtendedEntities.Media {
		if m.MediaURL == "" {
			continue
		}
		name := rt.ID + "-" + path.Base(m.MediaURL)
		if p, ok := idx.MediaPath(name); ok {
			paths = append(paths, p)
			continue
		}
		if byPrefix := idx.MediaByPrefix(rt.ID + "-"); len(byPrefix) > 0 {
			paths = append(paths, byPrefix...)
			continue
		}
		warnings = append(warnings, model.Warnf(model.WarnUnresolvedMedia, name,
			"media for tweet %s not in archive", rt.ID))
	}
	if len(paths) > 0 && mediaRef != "" {
		body = strings.ReplaceAll(body, mediaRef, "")
	}
	return body, dedupe(paths), warnings
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, p := range in {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
