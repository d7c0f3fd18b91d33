package refindex

import (
	"regexp"
	"sort"
	"strings"

	"plumage/internal/archive"
	"plumage/internal/model"
)

// Shortlink expansion is iterated so a shortlink whose expansion is itself
// a shortlink still resolves; the cap keeps cycles from looping forever.
const maxExpandRounds = 5

var shortlinkPattern = regexp.MustCompile(`https?://t\.co/\w+`)

// Index holds the three lookup tables shared by all normalizers:
// shortlink -> expanded URL, media filename -> local path, user id -> handle.
// The handle map is the only mutable part; the social-graph resolution step
// appends to it through SetHandle before Snapshot is taken.
type Index struct {
	links   map[string]string
	media   map[string]string
	handles map[string]string
}

// Build seeds the index from the raw category files. Handles come from
// every record that carries both an id and a handle: the owner account,
// reply-to ids paired with screen names, and user-mention entities.
func Build(acct archive.RawAccount, tweets []archive.RawTweet, dms, groups []archive.RawConversation, mediaPaths map[string]string) *Index {
	ix := &Index{
		links:   make(map[string]string),
		media:   make(map[string]string, len(mediaPaths)),
		handles: make(map[string]string),
	}
	for name, path := range mediaPaths {
		ix.media[name] = path
	}
	if acct.AccountID != "" {
		ix.handles[acct.AccountID] = acct.Username
	}
	for _, t := range tweets {
		for _, u := range t.Entities.URLs {
			if u.URL != "" && u.Expanded != "" {
				ix.links[u.URL] = u.Expanded
			}
		}
		// Media shortlinks expand to the hosted media URL, which keeps a
		// usable textual reference in bodies whose local file is missing.
		ents := []archive.RawEntities{t.Entities}
		if t.ExtendedEntities != nil {
			ents = append(ents, *t.ExtendedEntities)
		}
		for _, e := range ents {
			for _, m := range e.Media {
				if m.URL != "" && m.MediaURL != "" {
					ix.links[m.URL] = m.MediaURL
				}
			}
		}
		// The export occasionally carries id -1 for deleted accounts.
		if t.InReplyToUserID != "" && !strings.HasPrefix(t.InReplyToUserID, "-") && t.InReplyToScreenName != "" {
			ix.handles[t.InReplyToUserID] = t.InReplyToScreenName
		}
		for _, m := range t.Entities.UserMentions {
			if m.ID != "" && !strings.HasPrefix(m.ID, "-") && m.ScreenName != "" {
				ix.handles[m.ID] = m.ScreenName
			}
		}
	}
	for _, convos := range [][]archive.RawConversation{dms, groups} {
		for _, c := range convos {
			for _, ev := range c.Messages {
				if ev.MessageCreate == nil {
					continue
				}
				for _, u := range ev.MessageCreate.URLs {
					if u.URL != "" && u.Expanded != "" {
						ix.links[u.URL] = u.Expanded
					}
				}
			}
		}
	}
	return ix
}

// Handle returns the handle for a user id, if known.
func (ix *Index) Handle(id string) (string, bool) {
	h, ok := ix.handles[id]
	return h, ok
}

// SetHandle records a resolved handle. Called only by the social-graph
// resolution step, before Snapshot.
func (ix *Index) SetHandle(id, handle string) {
	if id != "" && handle != "" {
		ix.handles[id] = handle
	}
}

// UnresolvedIDs filters ids down to those with no handle yet, preserving
// order and dropping duplicates.
func (ix *Index) UnresolvedIDs(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := ix.handles[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns an immutable view for the normalizers. Taking a copy
// makes the ordering contract explicit: nothing written to the Index after
// this point is visible to holders of the snapshot.
func (ix *Index) Snapshot() *Snapshot {
	s := &Snapshot{
		links:   make(map[string]string, len(ix.links)),
		media:   make(map[string]string, len(ix.media)),
		handles: make(map[string]string, len(ix.handles)),
	}
	for k, v := range ix.links {
		s.links[k] = v
	}
	for k, v := range ix.media {
		s.media[k] = v
	}
	for k, v := range ix.handles {
		s.handles[k] = v
	}
	s.linkKeys = make([]string, 0, len(s.links))
	for k := range s.links {
		s.linkKeys = append(s.linkKeys, k)
	}
	// Longest key first so lexically colliding shortlinks substitute safely.
	sort.Slice(s.linkKeys, func(i, j int) bool {
		if len(s.linkKeys[i]) != len(s.linkKeys[j]) {
			return len(s.linkKeys[i]) > len(s.linkKeys[j])
		}
		return s.linkKeys[i] < s.linkKeys[j]
	})
	return s
}

// Snapshot is a read-only Index view handed to the normalizers.
type Snapshot struct {
	links    map[string]string
	linkKeys []string
	media    map[string]string
	handles  map[string]string
}

// Handle returns the handle for a user id, if known.
func (s *Snapshot) Handle(id string) (string, bool) {
	h, ok := s.handles[id]
	return h, ok
}

// MediaPath returns the local path a media filename was materialized to.
func (s *Snapshot) MediaPath(name string) (string, bool) {
	p, ok := s.media[name]
	return p, ok
}

// MediaByPrefix returns all materialized paths whose archive filename
// starts with prefix, sorted. Used as a fallback when the exact filename
// derived from the media URL is absent (videos get renamed in exports).
func (s *Snapshot) MediaByPrefix(prefix string) []string {
	var out []string
	for name, path := range s.media {
		if strings.HasPrefix(name, prefix) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// ExpandLinks substitutes every known shortlink in body with its expansion.
// Expansion is re-applied up to maxExpandRounds so chained shortlinks
// resolve; a mapped shortlink still present after the cap (a cycle) and any
// shortlink with no mapping at all are reported as warnings, never errors.
// Expanded URLs are never map keys, so a second pass over already-expanded
// text is a no-op.
func (s *Snapshot) ExpandLinks(body string) (string, []model.Warning) {
	var warnings []model.Warning
	for round := 0; round < maxExpandRounds; round++ {
		changed := false
		for _, k := range s.linkKeys {
			if strings.Contains(body, k) {
				body = strings.ReplaceAll(body, k, s.links[k])
				changed = true
			}
		}
		if !changed {
			break
		}
		if round == maxExpandRounds-1 {
			for _, k := range s.linkKeys {
				if strings.Contains(body, k) {
					warnings = append(warnings, model.Warnf(model.WarnUnresolvedLink, k,
						"chained expansion still unresolved after %d rounds", maxExpandRounds))
				}
			}
		}
	}
	for _, link := range shortlinkPattern.FindAllString(body, -1) {
		if _, ok := s.links[link]; !ok {
			warnings = append(warnings, model.Warnf(model.WarnUnresolvedLink, link, "no matching url entity"))
		}
	}
	return body, warnings
}
