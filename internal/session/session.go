package session

import (
	"context"
	"strconv"

	"snapbox_console/internal/apperr"
)

// Session is the client-held proof of authentication plus the role flag.
// An empty Token means the visitor is not authenticated.
type Session struct {
	Token   string
	Email   string
	IsAdmin bool
}

// Authenticated reports whether a token is present
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Load reads the session for sid. Missing keys yield an unauthenticated session.
func Load(ctx context.Context, store Store, sid string) (Session, error) {
	var sess Session

	token, _, err := store.Get(ctx, sid, KeyAuthToken)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindStorage, "session.load", "failed to read session", err)
	}
	sess.Token = token

	email, _, err := store.Get(ctx, sid, KeyAuthEmail)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindStorage, "session.load", "failed to read session", err)
	}
	sess.Email = email

	isAdmin, _, err := store.Get(ctx, sid, KeyIsAdmin)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindStorage, "session.load", "failed to read session", err)
	}
	// Older sessions stored the flag as a JSON boolean; both parse the same way.
	sess.IsAdmin, _ = strconv.ParseBool(isAdmin)

	return sess, nil
}

// Save writes all session fields
func Save(ctx context.Context, store Store, sid string, sess Session) error {
	values := []struct{ key, value string }{
		{KeyAuthToken, sess.Token},
		{KeyAuthEmail, sess.Email},
		{KeyIsAdmin, strconv.FormatBool(sess.IsAdmin)},
	}
	for _, v := range values {
		if err := store.Set(ctx, sid, v.key, v.value); err != nil {
			return apperr.Wrap(apperr.KindStorage, "session.save", "failed to write session", err)
		}
	}
	return nil
}

// Clear removes every persisted key of the session, including the visit counter
func Clear(ctx context.Context, store Store, sid string) error {
	if err := store.Remove(ctx, sid, AllKeys...); err != nil {
		return apperr.Wrap(apperr.KindStorage, "session.clear", "failed to clear session", err)
	}
	return nil
}

// LoadVisits reads the path visit counter
func LoadVisits(ctx context.Context, store Store, sid string) (*VisitCounter, error) {
	raw, ok, err := store.Get(ctx, sid, KeyVisitedPaths)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "session.visits", "failed to read visits", err)
	}
	counter := NewVisitCounter()
	if !ok || raw == "" {
		return counter, nil
	}
	if err := counter.UnmarshalJSON([]byte(raw)); err != nil {
		// A corrupt counter only affects analytics; start over.
		return NewVisitCounter(), nil
	}
	return counter, nil
}

// SaveVisits writes the path visit counter
func SaveVisits(ctx context.Context, store Store, sid string, counter *VisitCounter) error {
	data, err := counter.MarshalJSON()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "session.visits", "failed to encode visits", err)
	}
	if err := store.Set(ctx, sid, KeyVisitedPaths, string(data)); err != nil {
		return apperr.Wrap(apperr.KindStorage, "session.visits", "failed to write visits", err)
	}
	return nil
}
