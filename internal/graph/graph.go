package graph

import (
	"context"

	"plumage/internal/archive"
	"plumage/internal/handlecache"
	"plumage/internal/logging"
	"plumage/internal/lookup"
	"plumage/internal/model"
	"plumage/internal/refindex"
)

// Normalize converts the following/follower lists into user records and
// runs the bulk handle resolution pass. extraIDs carries ids harvested from
// other categories (DM participants) so a single resolution pass serves the
// whole run. Resolved handles are written back into ix and into the cache
// before the caller snapshots the index; that ordering is what lets the
// other normalizers see them.
//
// Resolution degrades, never fails: without a resolver, or after the
// resolver exhausts its retries, remaining ids keep placeholder handles.
func Normalize(ctx context.Context, rawFollowing, rawFollowers []archive.RawFollow, extraIDs []string,
	ix *refindex.Index, resolver lookup.Resolver, cache *handlecache.DB) ([]model.User, []model.User, []model.Warning) {

	var warnings []model.Warning

	ids := make([]string, 0, len(rawFollowing)+len(rawFollowers)+len(extraIDs))
	for _, f := range rawFollowing {
		ids = append(ids, f.AccountID)
	}
	for _, f := range rawFollowers {
		ids = append(ids, f.AccountID)
	}
	ids = append(ids, extraIDs...)

	unresolved := ix.UnresolvedIDs(ids)
	if cache != nil && len(unresolved) > 0 {
		if cached, err := cache.Get(ctx, unresolved); err == nil {
			for id, h := range cached {
				ix.SetHandle(id, h)
			}
			unresolved = ix.UnresolvedIDs(unresolved)
		}
	}
	if resolver != nil && len(unresolved) > 0 {
		resolved, err := resolver.ResolveHandles(ctx, unresolved)
		for id, h := range resolved {
			ix.SetHandle(id, h)
			if cache != nil {
				_ = cache.Put(ctx, id, h)
			}
		}
		if err != nil {
			warnings = append(warnings, model.Warnf(model.WarnLookupFailed, "users/lookup", "%v", err))
			logging.Error("handle_lookup_failed", map[string]any{"error": err.Error(), "unresolved": len(unresolved) - len(resolved)})
		}
	}

	following := toUsers(rawFollowing, ix, &warnings)
	followers := toUsers(rawFollowers, ix, &warnings)
	return following, followers, warnings
}

func toUsers(raw []archive.RawFollow, ix *refindex.Index, warnings *[]model.Warning) []model.User {
	out := make([]model.User, 0, len(raw))
	for _, f := range raw {
		u := model.User{ProfileURL: model.ProfileURL(f.AccountID)}
		if h, ok := ix.Handle(f.AccountID); ok {
			u.Handle = h
		} else {
			u.Handle = model.PlaceholderHandle(f.AccountID)
			*warnings = append(*warnings, model.Warnf(model.WarnUnresolvedHandle, f.AccountID, "no handle in export or lookup"))
		}
		out = append(out, u)
	}
	return out
}
