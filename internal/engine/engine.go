package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"plumage/internal/archive"
	"plumage/internal/config"
	"plumage/internal/convo"
	"plumage/internal/graph"
	"plumage/internal/handlecache"
	"plumage/internal/logging"
	"plumage/internal/lookup"
	"plumage/internal/metrics"
	"plumage/internal/model"
	"plumage/internal/refindex"
	"plumage/internal/tweets"
)

// Option injects collaborators, mainly for tests.
type Option func(*Engine)

// WithResolver replaces the default bearer-token lookup client.
func WithResolver(r lookup.Resolver) Option { return func(e *Engine) { e.resolver = r } }

// WithHandleCache replaces the config-driven handle cache.
func WithHandleCache(db *handlecache.DB) Option { return func(e *Engine) { e.cache = db } }

// Engine runs one archive ingestion: extract, index, resolve, normalize,
// assemble. Handle resolution always runs to completion before the tweet
// and conversation normalizers see the index; they receive an immutable
// snapshot and may run in parallel. Every accessor is independently
// invokable; shared pipeline stages run once and are reused.
type Engine struct {
	cfg      config.Config
	resolver lookup.Resolver
	cache    *handlecache.DB
	ownCache bool

	prepMu   sync.Mutex
	prepared bool
	prepErr  error

	warnMu   sync.Mutex
	warnings []model.Warning

	arc           *archive.Archive
	owner         archive.RawAccount
	rawTweets     []archive.RawTweet
	rawDMs        []archive.RawConversation
	rawGroups     []archive.RawConversation
	rawFollowing  []archive.RawFollow
	rawFollowers  []archive.RawFollow
	declFollowing int
	declFollowers int
	mediaPaths    map[string]string
	snap          *refindex.Snapshot
	following     []model.User
	followers     []model.User

	tweetsOnce sync.Once
	tweetList  []model.Tweet
	tweetWarns []model.Warning
	convoOnce  sync.Once
	dmList     []model.DirectMessage
	groupList  []model.GroupConversation
	convoWarns []model.Warning
}

func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg}
	for _, o := range opts {
		o(e)
	}
	if e.resolver == nil && cfg.Credentials.BearerToken != "" {
		e.resolver = lookup.NewHTTPClient(cfg.Credentials.BearerToken, lookup.Options{
			RPS:         cfg.Lookup.RPS,
			Burst:       cfg.Lookup.Burst,
			MaxAttempts: cfg.Lookup.MaxAttempts,
			BaseBackoff: time.Duration(cfg.Lookup.BaseBackoffMS) * time.Millisecond,
		})
	}
	return e
}

// Close releases the handle cache if the engine opened it.
func (e *Engine) Close() error {
	if e.ownCache && e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

/// prepare runs the shared pipeline head once: extraction, category reads,
// media materialization, index build and handle resolution. Only archive
// corruption is fatal; category failures degrade to warnings. The error is
// cached so repeated accessor calls fail consistently.
func (e *Engine) prepare(ctx context.Context) error {
	e.prepMu.Lock()
	defer e.prepMu.Unlock()
	if e.prepared {
		return e.prepErr
	}
	e.prepared = true
	e.prepErr = e.doPrepare(ctx)
	return e.prepErr
}

func (e *Engine) doPrepare(ctx context.Context) error {
	if e.cache == nil && e.cfg.Cache.DBPath != "" {
		if db, err := handlecache.Open(e.cfg.Cache.DBPath); err == nil {
			e.cache = db
			e.ownCache = true
		} else {
			logging.Error("handle_cache_open_failed", map[string]any{"path": e.cfg.Cache.DBPath, "error": err.Error()})
		}
	}

	arc, err := archive.Open(e.cfg.Archive.Path, e.cfg.Archive.WorkDir)
	if err != nil {
		return err
	}
	e.arc = arc

	e.owner, err = arc.Account()
	if err != nil {
		return err
	}

	e.rawTweets, err = arc.Tweets()
	if err = e.degrade(err); err != nil {
		return err
	}
	e.rawFollowing, e.declFollowing, err = arc.Following()
	if err = e.degrade(err); err != nil {
		return err
	}
	e.rawFollowers, e.declFollowers, err = arc.Followers()
	if err = e.degrade(err); err != nil {
		return err
	}
	if len(e.rawFollowing) != e.declFollowing {
		e.warn(model.Warnf(model.WarnCountMismatch, archive.CategoryFollowing,
			"export declares %d records, %d parsed", e.declFollowing, len(e.rawFollowing)))
	}
	if len(e.rawFollowers) != e.declFollowers {
		e.warn(model.Warnf(model.WarnCountMismatch, archive.CategoryFollowers,
			"export declares %d records, %d parsed", e.declFollowers, len(e.rawFollowers)))
	}
	e.rawDMs, err = arc.DirectMessages()
	if err = e.degrade(err); err != nil {
		return err
	}
	e.rawGroups, err = arc.GroupDirectMessages()
	if err = e.degrade(err); err != nil {
		return err
	}

	e.mediaPaths, err = arc.MaterializeMedia(e.cfg.Archive.OutputDir)
	if err != nil {
		return err
	}

	ix := refindex.Build(e.owner, e.rawTweets, e.rawDMs, e.rawGroups, e.mediaPaths)

	var extraIDs []string
	for _, c := range e.rawDMs {
		extraIDs = append(extraIDs, convo.ParticipantIDs(c)...)
	}
	for _, c := range e.rawGroups {
		extraIDs = append(extraIDs, convo.ParticipantIDs(c)...)
	}
	var gw []model.Warning
	e.following, e.followers, gw = graph.Normalize(ctx, e.rawFollowing, e.rawFollowers, extraIDs, ix, e.resolver, e.cache)
	e.warn(gw...)

	e.snap = ix.Snapshot()
	return nil
}

// degrade converts a per-category parse failure into a warning and lets
// everything else through as fatal.
func (e *Engine) degrade(err error) error {
	if err == nil {
		return nil
	}
	var cerr *archive.CategoryParseError
	if errors.As(err, &cerr) {
		metrics.IncCategoryError(cerr.Category)
		e.warn(model.Warnf(model.WarnCategoryParse, cerr.Category, "%v", cerr.Err))
		return nil
	}
	return err
}

func (e *Engine) warn(w ...model.Warning) {
	countUnresolved(w)
	e.warnMu.Lock()
	e.warnings = append(e.warnings, w...)
	e.warnMu.Unlock()
}

func countUnresolved(w []model.Warning) {
	for _, x := range w {
		switch x.Kind {
		case model.WarnUnresolvedLink, model.WarnUnresolvedMedia, model.WarnUnresolvedHandle:
			metrics.IncUnresolved(string(x.Kind))
		}
	}
}

// The normalizers keep their warnings in per-stage slices so the final
// warning order does not depend on goroutine scheduling.
func (e *Engine) normalizeTweets() {
	e.tweetsOnce.Do(func() {
		e.tweetList, e.tweetWarns = tweets.Normalize(e.rawTweets, e.snap, e.owner.Username)
		countUnresolved(e.tweetWarns)
	})
}

func (e *Engine) normalizeConversations() {
	e.convoOnce.Do(func() {
		e.dmList, e.groupList, e.convoWarns = convo.Normalize(e.rawDMs, e.rawGroups, e.snap)
		countUnresolved(e.convoWarns)
	})
}

// RetrieveInformation runs the full pipeline and assembles the unified
// result. The tweet and conversation normalizers only read the index
// snapshot, so they run concurrently.
func (e *Engine) RetrieveInformation(ctx context.Context) (*model.UserInfo, error) {
	start := time.Now()
	metrics.ParseRuns.Inc()
	if err := e.prepare(ctx); err != nil {
		metrics.ParseErrors.Inc()
		return nil, err
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { e.normalizeTweets(); return nil })
	g.Go(func() error { e.normalizeConversations(); return nil })
	_ = g.Wait()

	info := e.assemble()
	metrics.ObserveParseDuration(start)
	logging.Info("parse_done", map[string]any{
		"owner":     info.Owner,
		"tweets":    len(info.Tweets),
		"following": info.FollowingCount,
		"followers": info.FollowerCount,
		"warnings":  len(info.Warnings),
	})
	return info, nil
}

func (e *Engine) assemble() *model.UserInfo {
	media := make([]string, 0, len(e.mediaPaths))
	for _, p := range e.mediaPaths {
		media = append(media, p)
	}
	sort.Strings(media)
	return &model.UserInfo{
		Owner:          e.owner.Username,
		Following:      e.following,
		Followers:      e.followers,
		Tweets:         e.tweetList,
		DirectMessages: e.dmList,
		Groups:         e.groupList,
		MediaPaths:     media,
		FollowingCount: e.declFollowing,
		FollowerCount:  e.declFollowers,
		Warnings:       e.Warnings(),
	}
}

// Tweets returns the normalized tweets without requiring a prior full
// RetrieveInformation call.
func (e *Engine) Tweets(ctx context.Context) ([]model.Tweet, error) {
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}
	e.normalizeTweets()
	return e.tweetList, nil
}

// Following returns the normalized following list.
func (e *Engine) Following(ctx context.Context) ([]model.User, error) {
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}
	return e.following, nil
}

// Followers returns the normalized follower list.
func (e *Engine) Followers(ctx context.Context) ([]model.User, error) {
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}
	return e.followers, nil
}

// DirectMessages returns the normalized one-to-one messages.
func (e *Engine) DirectMessages(ctx context.Context) ([]model.DirectMessage, error) {
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}
	e.normalizeConversations()
	return e.dmList, nil
}

// GroupDirectMessages returns the normalized group conversations.
func (e *Engine) GroupDirectMessages(ctx context.Context) ([]model.GroupConversation, error) {
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}
	e.normalizeConversations()
	return e.groupList, nil
}

// Warnings returns the anomalies accumulated so far: pipeline-head warnings
// first, then tweet normalization, then conversation normalization.
func (e *Engine) Warnings() []model.Warning {
	e.warnMu.Lock()
	out := append([]model.Warning(nil), e.warnings...)
	e.warnMu.Unlock()
	out = append(out, e.tweetWarns...)
	return append(out, e.convoWarns...)
}
