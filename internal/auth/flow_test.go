package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/services"
	"snapbox_console/internal/session"
)

type fakeCodeAPI struct {
	sendCalls   []string
	verifyCalls [][2]string
	sendErr     error
	verifyRes   services.VerifyResult
	verifyErr   error
	onVerify    func()
}

func (f *fakeCodeAPI) SendVerificationCode(_ context.Context, email string) error {
	f.sendCalls = append(f.sendCalls, email)
	return f.sendErr
}

func (f *fakeCodeAPI) VerifyCode(_ context.Context, email, code string) (services.VerifyResult, error) {
	f.verifyCalls = append(f.verifyCalls, [2]string{email, code})
	if f.onVerify != nil {
		f.onVerify()
	}
	return f.verifyRes, f.verifyErr
}

type fakeRecorder struct {
	logins  []session.Session
	logouts []string
}

func (r *fakeRecorder) RecordLogin(_ context.Context, _ string, sess session.Session) error {
	r.logins = append(r.logins, sess)
	return nil
}

func (r *fakeRecorder) RecordLogout(_ context.Context, _ string, mostViewedPath string, _ bool) error {
	r.logouts = append(r.logouts, mostViewedPath)
	return nil
}

func newTestFlow(api *fakeCodeAPI, opts ...FlowOption) (*Flow, *session.MemoryStore) {
	store := session.NewMemoryStore()
	flow := NewFlow(store, api, opts...)
	n := 0
	flow.newNonce = func() string {
		n++
		return fmt.Sprintf("nonce-%d", n)
	}
	flow.newSessionID = func() string { return "rotated-sid" }
	return flow, store
}

func currentState(t *testing.T, flow *Flow, sid string) FlowState {
	t.Helper()
	st, err := flow.Current(context.Background(), sid)
	require.NoError(t, err)
	return st
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email  string
		domain string
		valid  bool
	}{
		{email: "", valid: false},
		{email: "not-an-email", valid: false},
		{email: "a@org.com", valid: true},
		{email: "a@org.com", domain: "org.com", valid: true},
		{email: "A@ORG.COM", domain: "org.com", valid: true},
		{email: "x@wrongdomain.com", domain: "org.com", valid: false},
		{email: "x@evilorg.com", domain: "org.com", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.email+"/"+tt.domain, func(t *testing.T) {
			err := ValidateEmail(tt.email, tt.domain)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			}
		})
	}
}

func TestWrongDomainNeverCallsRemote(t *testing.T) {
	api := &fakeCodeAPI{}
	flow, _ := newTestFlow(api, WithAllowedDomain("org.com"))

	err := flow.SubmitEmail(context.Background(), "sid", "x@wrongdomain.com")

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, api.sendCalls)
	assert.Equal(t, AwaitingEmail, currentState(t, flow, "sid").State)
}

func TestEmptyEmailAndCodeAreRejectedLocally(t *testing.T) {
	api := &fakeCodeAPI{}
	flow, _ := newTestFlow(api)
	ctx := context.Background()

	assert.True(t, apperr.IsKind(flow.SubmitEmail(ctx, "sid", "  "), apperr.KindValidation))
	require.NoError(t, flow.SubmitEmail(ctx, "sid", "a@org.com"))

	_, err := flow.SubmitCode(ctx, "sid", " ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, api.verifyCalls)
	assert.Equal(t, AwaitingCode, currentState(t, flow, "sid").State)
}

func TestSendFailureStaysAwaitingEmail(t *testing.T) {
	api := &fakeCodeAPI{sendErr: apperr.New(apperr.KindTransport, "send_code", "down")}
	flow, _ := newTestFlow(api)

	err := flow.SubmitEmail(context.Background(), "sid", "a@org.com")

	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
	assert.Equal(t, AwaitingEmail, currentState(t, flow, "sid").State)
}

func TestEndToEndLogin(t *testing.T) {
	api := &fakeCodeAPI{verifyRes: services.VerifyResult{Token: "t", IsAdmin: false}}
	recorder := &fakeRecorder{}
	flow, store := newTestFlow(api, WithAllowedDomain("org.com"), WithRecorder(recorder))
	ctx := context.Background()

	require.NoError(t, flow.SubmitEmail(ctx, "sid", "a@org.com"))
	assert.Equal(t, FlowState{State: AwaitingCode, Email: "a@org.com"}, currentState(t, flow, "sid"))

	login, err := flow.SubmitCode(ctx, "sid", "123456")
	require.NoError(t, err)
	assert.Equal(t, Login{SessionID: "rotated-sid", Target: "/Home"}, login)
	assert.Equal(t, [][2]string{{"a@org.com", "123456"}}, api.verifyCalls)

	sess, err := session.Load(ctx, store, "rotated-sid")
	require.NoError(t, err)
	assert.Equal(t, session.Session{Token: "t", Email: "a@org.com", IsAdmin: false}, sess)
	assert.Equal(t, []session.Session{sess}, recorder.logins)
}

func TestLoginMovesSessionToFreshID(t *testing.T) {
	api := &fakeCodeAPI{verifyRes: services.VerifyResult{Token: "t"}}
	flow, store := newTestFlow(api)
	flow.newSessionID = NewFlow(store, api).newSessionID
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sid", session.KeyLastPath, "/Home"))
	require.NoError(t, flow.SubmitEmail(ctx, "sid", "a@org.com"))
	login, err := flow.SubmitCode(ctx, "sid", "123456")
	require.NoError(t, err)
	assert.NotEqual(t, "sid", login.SessionID)
	assert.NotEmpty(t, login.SessionID)

	old, err := session.Load(ctx, store, "sid")
	require.NoError(t, err)
	assert.False(t, old.Authenticated())
	for _, key := range session.AllKeys {
		_, ok, err := store.Get(ctx, "sid", key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	sess, err := session.Load(ctx, store, login.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
}

func TestAdminLandsOnAdminHome(t *testing.T) {
	api := &fakeCodeAPI{verifyRes: services.VerifyResult{Token: "t", IsAdmin: true}}
	flow, _ := newTestFlow(api)
	ctx := context.Background()

	require.NoError(t, flow.SubmitEmail(ctx, "sid", "boss@org.com"))
	login, err := flow.SubmitCode(ctx, "sid", "1")
	require.NoError(t, err)
	assert.Equal(t, "/Admin", login.Target)
}

func TestVerifyFailureKeepsAwaitingCode(t *testing.T) {
	api := &fakeCodeAPI{verifyErr: apperr.New(apperr.KindRejection, "verify_code", "Invalid verification code.")}
	flow, store := newTestFlow(api)
	ctx := context.Background()

	require.NoError(t, flow.SubmitEmail(ctx, "sid", "a@org.com"))
	_, err := flow.SubmitCode(ctx, "sid", "999999")

	assert.True(t, apperr.IsKind(err, apperr.KindRejection))
	assert.Equal(t, AwaitingCode, currentState(t, flow, "sid").State)
	sess, _ := session.Load(ctx, store, "sid")
	assert.False(t, sess.Authenticated())
}

func TestStaleVerificationDoesNotLogIn(t *testing.T) {
	api := &fakeCodeAPI{verifyRes: services.VerifyResult{Token: "t"}}
	flow, store := newTestFlow(api)
	ctx := context.Background()

	require.NoError(t, flow.SubmitEmail(ctx, "sid", "a@org.com"))
	api.onVerify = func() {
		// the user navigates away while the request is in flight
		require.NoError(t, flow.Abandon(ctx, "sid"))
	}

	_, err := flow.SubmitCode(ctx, "sid", "123456")

	assert.True(t, apperr.IsKind(err, apperr.KindStale))
	sess, _ := session.Load(ctx, store, "sid")
	assert.False(t, sess.Authenticated())
	assert.Equal(t, AwaitingEmail, currentState(t, flow, "sid").State)
}

func TestCancelledRequestDoesNotLogIn(t *testing.T) {
	api := &fakeCodeAPI{verifyRes: services.VerifyResult{Token: "t"}}
	flow, store := newTestFlow(api)

	require.NoError(t, flow.SubmitEmail(context.Background(), "sid", "a@org.com"))

	ctx, cancel := context.WithCancel(context.Background())
	api.onVerify = cancel
	_, err := flow.SubmitCode(ctx, "sid", "123456")

	assert.True(t, apperr.IsKind(err, apperr.KindStale))
	sess, _ := session.Load(context.Background(), store, "sid")
	assert.False(t, sess.Authenticated())
}

func TestBackAndResend(t *testing.T) {
	api := &fakeCodeAPI{}
	flow, _ := newTestFlow(api)
	ctx := context.Background()

	assert.True(t, apperr.IsKind(flow.Resend(ctx, "sid"), apperr.KindValidation))

	require.NoError(t, flow.SubmitEmail(ctx, "sid", "a@org.com"))
	require.NoError(t, flow.Resend(ctx, "sid"))
	assert.Equal(t, []string{"a@org.com", "a@org.com"}, api.sendCalls)
	assert.Equal(t, AwaitingCode, currentState(t, flow, "sid").State)

	require.NoError(t, flow.Back(ctx, "sid"))
	assert.Equal(t, FlowState{State: AwaitingEmail, Email: "a@org.com"}, currentState(t, flow, "sid"))

	_, err := flow.SubmitCode(ctx, "sid", "123456")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, api.verifyCalls)
}

func TestAbandonWithoutPendingFlow(t *testing.T) {
	flow, store := newTestFlow(&fakeCodeAPI{})
	require.NoError(t, flow.Abandon(context.Background(), "sid"))
	_, ok, _ := store.Get(context.Background(), "sid", session.KeyLoginState)
	assert.False(t, ok)
}
