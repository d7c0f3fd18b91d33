package convo

import (
	"path"
	"sort"
	"strings"
	"time"

	"plumage/internal/archive"
	"plumage/internal/model"
	"plumage/internal/refindex"
	"plumage/internal/util"
)

// Normalize converts raw DM threads into one-to-one messages and group
// conversations. Routing follows the participant count, not the source
// file: a thread with exactly two distinct participants is one-to-one,
// everything else is a group.
func Normalize(oneToOne, group []archive.RawConversation, idx *refindex.Snapshot) ([]model.DirectMessage, []model.GroupConversation, []model.Warning) {
	var dms []model.DirectMessage
	var groups []model.GroupConversation
	var warnings []model.Warning
	for _, c := range append(append([]archive.RawConversation{}, oneToOne...), group...) {
		ids := ParticipantIDs(c)
		if len(ids) == 2 {
			msgs, w := convertDirect(c, idx)
			dms = append(dms, msgs...)
			warnings = append(warnings, w...)
			continue
		}
		g, w := convertGroup(c, ids, idx)
		groups = append(groups, g)
		warnings = append(warnings, w...)
	}
	return dms, groups, warnings
}

// ParticipantIDs collects the distinct user ids seen anywhere in a thread:
// the conversation id itself ("<id1>-<id2>" for one-to-one threads),
// message senders and recipients, and join events.
func ParticipantIDs(c archive.RawConversation) []string {
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" {
			seen[id] = true
		}
	}
	if parts := strings.Split(c.ID, "-"); len(parts) == 2 {
		add(parts[0])
		add(parts[1])
	}
	for _, ev := range c.Messages {
		switch {
		case ev.MessageCreate != nil:
			add(ev.MessageCreate.SenderID)
			add(ev.MessageCreate.RecipientID)
		case ev.JoinConversation != nil:
			add(ev.JoinConversation.InitiatingUserID)
			for _, id := range ev.JoinConversation.ParticipantsSnapshot {
				add(id)
			}
		case ev.ParticipantsJoin != nil:
			add(ev.ParticipantsJoin.InitiatingUserID)
			for _, id := range ev.ParticipantsJoin.UserIDs {
				add(id)
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func convertDirect(c archive.RawConversation, idx *refindex.Snapshot) ([]model.DirectMessage, []model.Warning) {
	var out []model.DirectMessage
	var warnings []model.Warning
	for _, ev := range c.Messages {
		m := ev.MessageCreate
		if m == nil || m.SenderID == "" || m.RecipientID == "" || m.CreatedAt == "" {
			continue
		}
		if m.SenderID == m.RecipientID {
			warnings = append(warnings, model.Warnf(model.WarnCategoryParse, archive.CategoryDMs,
				"conversation %s: message %s sent to self, dropped", c.ID, m.ID))
			continue
		}
		body, w := messageBody(m, idx)
		warnings = append(warnings, w...)
		ts, _ := parseMessageTime(c.ID, m, &warnings)
		out = append(out, model.DirectMessage{
			Sender:    resolveHandle(m.SenderID, idx, &warnings),
			Recipient: resolveHandle(m.RecipientID, idx, &warnings),
			Body:      body,
			CreatedAt: ts,
		})
	}
	// Timestamp-ascending, export order breaking ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, warnings
}

func convertGroup(c archive.RawConversation, ids []string, idx *refindex.Snapshot) (model.GroupConversation, []model.Warning) {
	var warnings []model.Warning
	g := model.GroupConversation{}
	for _, id := range ids {
		g.Participants = append(g.Participants, resolveHandle(id, idx, &warnings))
	}
	for _, ev := range c.Messages {
		if ev.ConversationNameUpdate != nil && ev.ConversationNameUpdate.Name != "" {
			g.Name = ev.ConversationNameUpdate.Name
			continue
		}
		m := ev.MessageCreate
		if m == nil || m.SenderID == "" || m.CreatedAt == "" {
			continue
		}
		body, w := messageBody(m, idx)
		warnings = append(warnings, w...)
		ts, _ := parseMessageTime(c.ID, m, &warnings)
		g.Messages = append(g.Messages, model.GroupMessage{
			Sender:    resolveHandle(m.SenderID, idx, &warnings),
			Body:      body,
			CreatedAt: ts,
		})
	}
	sort.SliceStable(g.Messages, func(i, j int) bool { return g.Messages[i].CreatedAt.Before(g.Messages[j].CreatedAt) })
	return g, warnings
}

// messageBody expands shortlinks and swaps a message's media URL for its
// materialized local path when the file made it into the archive.
func messageBody(m *archive.RawMessage, idx *refindex.Snapshot) (string, []model.Warning) {
	body, warnings := idx.ExpandLinks(util.NormalizeWhitespace(m.Text))
	if len(m.MediaURLs) == 1 && len(m.URLs) > 0 {
		expanded := m.URLs[0].Expanded
		name := m.ID + "-" + path.Base(m.MediaURLs[0])
		if p, ok := idx.MediaPath(name); ok {
			body = strings.ReplaceAll(body, expanded, p)
		} else if byPrefix := idx.MediaByPrefix(m.ID + "-"); len(byPrefix) > 0 {
			body = strings.ReplaceAll(body, expanded, byPrefix[0])
		} else {
			warnings = append(warnings, model.Warnf(model.WarnUnresolvedMedia, name,
				"media for message %s not in archive", m.ID))
		}
	}
	return body, warnings
}

// resolveHandle keeps unresolved participants under their placeholder
// rather than excluding them, so no conversation loses a sender.
func resolveHandle(id string, idx *refindex.Snapshot, warnings *[]model.Warning) string {
	if h, ok := idx.Handle(id); ok {
		return h
	}
	*warnings = append(*warnings, model.Warnf(model.WarnUnresolvedHandle, id, "participant has no handle"))
	return model.PlaceholderHandle(id)
}

func parseMessageTime(convID string, m *archive.RawMessage, warnings *[]model.Warning) (time.Time, bool) {
	// Example: 2022-01-27T15:58:52.744Z
	ts, err := time.Parse(time.RFC3339, m.CreatedAt)
	if err != nil {
		*warnings = append(*warnings, model.Warnf(model.WarnCategoryParse, archive.CategoryDMs,
			"conversation %s: bad createdAt %q", convID, m.CreatedAt))
		return time.Time{}, false
	}
	return ts, true
}
