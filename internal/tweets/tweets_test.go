package tweets

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"plumage/internal/archive"
	"plumage/internal/model"
	"plumage/internal/refindex"
)

const owner = "mainbird"

func snapshotFor(raw []archive.RawTweet, media map[string]string) *refindex.Snapshot {
	acct := archive.RawAccount{Username: owner, AccountID: "111"}
	return refindex.Build(acct, raw, nil, nil, media).Snapshot()
}

func normalizeOne(t *testing.T, rt archive.RawTweet, media map[string]string) (model.Tweet, []model.Warning) {
	t.Helper()
	raw := []archive.RawTweet{rt}
	out, warnings := Normalize(raw, snapshotFor(raw, media), owner)
	if len(out) != 1 {
		t.Fatalf("expected 1 tweet, got %d", len(out))
	}
	return out[0], warnings
}

func TestOriginalTweet(t *testing.T) {
	tw, warnings := normalizeOne(t, archive.RawTweet{
		ID:        "900",
		CreatedAt: "Tue Mar 19 14:05:17 +0000 2019",
		FullText:  "just setting up  my\nfeed",
	}, nil)
	if tw.Kind != model.KindOriginal {
		t.Fatalf("kind: %s", tw.Kind)
	}
	if tw.Body != "just setting up my feed" {
		t.Fatalf("body: %q", tw.Body)
	}
	if tw.Year != 2019 {
		t.Fatalf("year: %d", tw.Year)
	}
	want := time.Date(2019, time.March, 19, 14, 5, 17, 0, time.UTC)
	if !tw.CreatedAt.Equal(want) {
		t.Fatalf("created at: %v", tw.CreatedAt)
	}
	if tw.URL != "https://twitter.com/mainbird/status/900" {
		t.Fatalf("url: %s", tw.URL)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
}

func TestRetweetMarkerWinsOverEverything(t *testing.T) {
	tw, _ := normalizeOne(t, archive.RawTweet{
		ID:                "901",
		CreatedAt:         "Tue Mar 19 14:05:17 +0000 2019",
		FullText:          "RT @someone: hello world",
		QuotedStatusID:    "7",
		InReplyToStatusID: "8",
	}, nil)
	if tw.Kind != model.KindRetweet {
		t.Fatalf("kind: %s", tw.Kind)
	}
	if tw.RetweetedFrom != "someone" {
		t.Fatalf("retweeted from: %s", tw.RetweetedFrom)
	}
	if tw.Body != "hello world" {
		t.Fatalf("body: %q", tw.Body)
	}
	if tw.QuotedTweetID != "" || tw.ReplyToTweetID != "" {
		t.Fatalf("kind-specific fields leaked: %+v", tw)
	}
}

func TestQuoteWinsOverReply(t *testing.T) {
	tw, _ := normalizeOne(t, archive.RawTweet{
		ID:                "902",
		CreatedAt:         "Tue Mar 19 14:05:17 +0000 2019",
		FullText:          "this, but louder",
		QuotedStatusID:    "7",
		InReplyToStatusID: "8",
	}, nil)
	if tw.Kind != model.KindQuote {
		t.Fatalf("kind: %s", tw.Kind)
	}
	if tw.QuotedTweetID != "7" {
		t.Fatalf("quoted id: %s", tw.QuotedTweetID)
	}
	if tw.ReplyToTweetID != "" {
		t.Fatalf("reply fields leaked: %+v", tw)
	}
}

func TestReplyStripsMentionBlock(t *testing.T) {
	tw, warnings := normalizeOne(t, archive.RawTweet{
		ID:                  "903",
		CreatedAt:           "Tue Mar 19 14:05:17 +0000 2019",
		FullText:            "@friend @other thanks both",
		InReplyToStatusID:   "800",
		InReplyToScreenName: "friend",
	}, nil)
	if tw.Kind != model.KindReply {
		t.Fatalf("kind: %s", tw.Kind)
	}
	if !reflect.DeepEqual(tw.ReplyToHandles, []string{"friend", "other"}) {
		t.Fatalf("reply handles: %v", tw.ReplyToHandles)
	}
	if tw.Body != "thanks both" {
		t.Fatalf("body: %q", tw.Body)
	}
	if tw.ReplyToURL != "https://twitter.com/friend/status/800" {
		t.Fatalf("reply url: %s", tw.ReplyToURL)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
}

func TestSelfReplyTargetsOwner(t *testing.T) {
	tw, _ := normalizeOne(t, archive.RawTweet{
		ID:                "904",
		CreatedAt:         "Tue Mar 19 14:05:17 +0000 2019",
		FullText:          "continuing the thread",
		InReplyToStatusID: "800",
		InReplyToUserID:   "111",
	}, nil)
	if !reflect.DeepEqual(tw.ReplyToHandles, []string{owner}) {
		t.Fatalf("reply handles: %v", tw.ReplyToHandles)
	}
	if tw.ReplyToURL != "https://twitter.com/mainbird/status/800" {
		t.Fatalf("reply url: %s", tw.ReplyToURL)
	}
}

func TestReplyToUnknownAccountDegrades(t *testing.T) {
	tw, warnings := normalizeOne(t, archive.RawTweet{
		ID:                "905",
		CreatedAt:         "Tue Mar 19 14:05:17 +0000 2019",
		FullText:          "who were you again",
		InReplyToStatusID: "800",
		InReplyToUserID:   "999",
	}, nil)
	if tw.ReplyToURL != "https://twitter.com/999/status/800" {
		t.Fatalf("reply url: %s", tw.ReplyToURL)
	}
	found := false
	for _, w := range warnings {
		if w.Kind == model.WarnUnresolvedHandle && w.Subject == "999" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unresolved-handle warning, got %v", warnings)
	}
}

func TestMediaResolvedByExactName(t *testing.T) {
	tw, warnings := normalizeOne(t, archive.RawTweet{
		ID:        "906",
		CreatedAt: "Tue Mar 19 14:05:17 +0000 2019",
		FullText:  "have a look https://t.co/med",
		Entities: archive.RawEntities{Media: []archive.RawMediaEntity{
			{URL: "https://t.co/med", MediaURL: "http://pbs.twimg.com/media/pic.jpg"},
		}},
		ExtendedEntities: &archive.RawEntities{Media: []archive.RawMediaEntity{
			{URL: "https://t.co/med", MediaURL: "http://pbs.twimg.com/media/pic.jpg"},
		}},
	}, map[string]string{"906-pic.jpg": "/out/media/906-pic.jpg"})
	if !reflect.DeepEqual(tw.Media, []string{"/out/media/906-pic.jpg"}) {
		t.Fatalf("media: %v", tw.Media)
	}
	if tw.Body != "have a look" {
		t.Fatalf("body: %q", tw.Body)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
}

func TestMediaFallsBackToTweetIDPrefix(t *testing.T) {
	tw, warnings := normalizeOne(t, archive.RawTweet{
		ID:        "907",
		CreatedAt: "Tue Mar 19 14:05:17 +0000 2019",
		FullText:  "video https://t.co/med",
		Entities: archive.RawEntities{Media: []archive.RawMediaEntity{
			{URL: "https://t.co/med", MediaURL: "http://pbs.twimg.com/media/clip.mp4"},
		}},
		ExtendedEntities: &archive.RawEntities{Media: []archive.RawMediaEntity{
			{URL: "https://t.co/med", MediaURL: "http://pbs.twimg.com/media/clip.mp4"},
		}},
	}, map[string]string{"907-renamed.mp4": "/out/media/907-renamed.mp4"})
	if !reflect.DeepEqual(tw.Media, []string{"/out/media/907-renamed.mp4"}) {
		t.Fatalf("media: %v", tw.Media)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
}

func TestMissingMediaKeepsReferenceAndWarns(t *testing.T) {
	tw, warnings := normalizeOne(t, archive.RawTweet{
		ID:        "908",
		CreatedAt: "Tue Mar 19 14:05:17 +0000 2019",
		FullText:  "gone https://t.co/med",
		Entities: archive.RawEntities{Media: []archive.RawMediaEntity{
			{URL: "https://t.co/med", MediaURL: "http://pbs.twimg.com/media/lost.jpg"},
		}},
		ExtendedEntities: &archive.RawEntities{Media: []archive.RawMediaEntity{
			{URL: "https://t.co/med", MediaURL: "http://pbs.twimg.com/media/lost.jpg"},
		}},
	}, nil)
	if len(tw.Media) != 0 {
		t.Fatalf("media: %v", tw.Media)
	}
	// The shortlink expands to the hosted media URL so the body keeps a
	// usable reference.
	if !strings.Contains(tw.Body, "http://pbs.twimg.com/media/lost.jpg") {
		t.Fatalf("body lost its media reference: %q", tw.Body)
	}
	found := false
	for _, w := range warnings {
		if w.Kind == model.WarnUnresolvedMedia {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unresolved-media warning, got %v", warnings)
	}
}

func TestBadTimestampWarnsButKeepsTweet(t *testing.T) {
	tw, warnings := normalizeOne(t, archive.RawTweet{
		ID:        "909",
		CreatedAt: "not a date",
		FullText:  "old data",
	}, nil)
	if tw.ID != "909" || tw.Body != "old data" {
		t.Fatalf("tweet dropped or mangled: %+v", tw)
	}
	if len(warnings) != 1 || warnings[0].Kind != model.WarnCategoryParse {
		t.Fatalf("warnings: %v", warnings)
	}
}

func TestEveryTweetGetsExactlyOneKind(t *testing.T) {
	raw := []archive.RawTweet{
		{ID: "1", CreatedAt: "Tue Mar 19 14:05:17 +0000 2019", FullText: "plain"},
		{ID: "2", CreatedAt: "Tue Mar 19 14:05:17 +0000 2019", FullText: "RT @a: x"},
		{ID: "3", CreatedAt: "Tue Mar 19 14:05:17 +0000 2019", FullText: "q", QuotedStatusID: "7"},
		{ID: "4", CreatedAt: "Tue Mar 19 14:05:17 +0000 2019", FullText: "@b r", InReplyToStatusID: "8", InReplyToScreenName: "b"},
	}
	out, _ := Normalize(raw, snapshotFor(raw, nil), owner)
	wantKinds := []model.TweetKind{model.KindOriginal, model.KindRetweet, model.KindQuote, model.KindReply}
	if len(out) != len(raw) {
		t.Fatalf("tweets dropped: %d of %d", len(out), len(raw))
	}
	for i, tw := range out {
		if tw.Kind != wantKinds[i] {
			t.Fatalf("tweet %s: kind %s, want %s", tw.ID, tw.Kind, wantKinds[i])
		}
	}
}
