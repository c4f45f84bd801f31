package oneaccount

import (
	"context"
	"encoding/json"

	"github.com/alexedwards/scs/v2"
)

// Flash severities. Messages are one-time: they survive exactly one
// redirect and are consumed on the next render.
const (
	FlashErrors  = "errors"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

// Flash stores one-time user-facing notifications in the session. Messages
// are kept JSON-encoded per severity so the session codec never needs to
// know about slices.
type Flash struct {
	Session *scs.SessionManager
}

func flashKey(severity string) string { return "flash." + severity }

// Add appends messages under a severity.
func (f *Flash) Add(ctx context.Context, severity string, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	existing := f.peek(ctx, severity)
	existing = append(existing, msgs...)
	encoded, err := json.Marshal(existing)
	if err != nil {
		return
	}
	f.Session.Put(ctx, flashKey(severity), string(encoded))
}

// Pop removes and returns the messages of one severity.
func (f *Flash) Pop(ctx context.Context, severity string) []string {
	encoded := f.Session.PopString(ctx, flashKey(severity))
	if encoded == "" {
		return nil
	}
	var msgs []string
	if err := json.Unmarshal([]byte(encoded), &msgs); err != nil {
		return nil
	}
	return msgs
}

// PopAll removes and returns every pending message keyed by severity.
func (f *Flash) PopAll(ctx context.Context) map[string][]string {
	out := map[string][]string{}
	for _, severity := range []string{FlashErrors, FlashSuccess, FlashInfo} {
		if msgs := f.Pop(ctx, severity); len(msgs) > 0 {
			out[severity] = msgs
		}
	}
	return out
}

func (f *Flash) peek(ctx context.Context, severity string) []string {
	encoded := f.Session.GetString(ctx, flashKey(severity))
	if encoded == "" {
		return nil
	}
	var msgs []string
	if err := json.Unmarshal([]byte(encoded), &msgs); err != nil {
		return nil
	}
	return msgs
}
