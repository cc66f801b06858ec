package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapbox_console/internal/session"
)

type reportCall struct {
	email, path string
	// session state observed at the time of the report
	tokenPresent bool
}

type fakeReporter struct {
	store session.Store
	calls []reportCall
	err   error
}

func (r *fakeReporter) ReportLogout(ctx context.Context, email, path string) error {
	_, ok, _ := r.store.Get(ctx, "sid", session.KeyAuthToken)
	r.calls = append(r.calls, reportCall{email: email, path: path, tokenPresent: ok})
	return r.err
}

type fakeRetrier struct {
	scheduled []string
}

func (r *fakeRetrier) ScheduleLogoutReport(_ context.Context, sid, email, path string) error {
	r.scheduled = append(r.scheduled, sid+" "+email+" "+path)
	return nil
}

func loggedIn(t *testing.T, store session.Store, visits ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, session.Save(ctx, store, "sid", session.Session{Token: "t", Email: "a@org.com"}))
	counter := session.NewVisitCounter()
	for _, v := range visits {
		counter.Increment(v)
	}
	require.NoError(t, session.SaveVisits(ctx, store, "sid", counter))
}

func TestLogoutReportsBeforeClearing(t *testing.T) {
	store := session.NewMemoryStore()
	loggedIn(t, store, "/A", "/A", "/A", "/B", "/B", "/B", "/B", "/B", "/C", "/C", "/C", "/C", "/C")
	reporter := &fakeReporter{store: store}
	recorder := &fakeRecorder{}

	target, err := NewLogout(store, reporter, WithLogoutRecorder(recorder)).Run(context.Background(), "sid")
	require.NoError(t, err)

	assert.Equal(t, "/", target)
	require.Len(t, reporter.calls, 1)
	assert.Equal(t, reportCall{email: "a@org.com", path: "/B", tokenPresent: true}, reporter.calls[0])
	assert.Equal(t, []string{"/B"}, recorder.logouts)

	sess, err := session.Load(context.Background(), store, "sid")
	require.NoError(t, err)
	assert.Equal(t, session.Session{}, sess)
	visits, _ := session.LoadVisits(context.Background(), store, "sid")
	assert.Equal(t, 0, visits.Len())
}

func TestLogoutEmptyCounterReportsRoot(t *testing.T) {
	store := session.NewMemoryStore()
	loggedIn(t, store)
	reporter := &fakeReporter{store: store}

	_, err := NewLogout(store, reporter).Run(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, "/", reporter.calls[0].path)
}

func TestLogoutReportFailureIsSwallowed(t *testing.T) {
	store := session.NewMemoryStore()
	loggedIn(t, store, "/Home")
	reporter := &fakeReporter{store: store, err: errors.New("network down")}
	retrier := &fakeRetrier{}

	target, err := NewLogout(store, reporter, WithReportRetrier(retrier)).Run(context.Background(), "sid")

	require.NoError(t, err)
	assert.Equal(t, "/", target)
	assert.Equal(t, []string{"sid a@org.com /Home"}, retrier.scheduled)
	sess, _ := session.Load(context.Background(), store, "sid")
	assert.False(t, sess.Authenticated())
}

func TestLogoutWithoutSessionSkipsReport(t *testing.T) {
	store := session.NewMemoryStore()
	reporter := &fakeReporter{store: store}

	target, err := NewLogout(store, reporter).Run(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, "/", target)
	assert.Empty(t, reporter.calls)
}
