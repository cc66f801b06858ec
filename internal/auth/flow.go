package auth

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/services"
	"snapbox_console/internal/session"
)

// State is the position of the two-step login
type State string

const (
	AwaitingEmail State = "awaiting_email"
	AwaitingCode  State = "awaiting_code"
)

// FlowState is what the login page needs to render
type FlowState struct {
	State State
	Email string
}

// Login is the outcome of a successful verification. The session now lives
// under SessionID, never under the id the browser sent.
type Login struct {
	SessionID string
	Target    string
}

// CodeAPI is the part of the remote API used to log in
type CodeAPI interface {
	SendVerificationCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (services.VerifyResult, error)
}

// SessionRecorder keeps a local history of console sessions
type SessionRecorder interface {
	RecordLogin(ctx context.Context, sid string, sess session.Session) error
	RecordLogout(ctx context.Context, sid, mostViewedPath string, reported bool) error
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks the address locally. When allowedDomain is set the
// address must belong to it.
func ValidateEmail(email, allowedDomain string) error {
	if email == "" {
		return apperr.New(apperr.KindValidation, "validate_email", "Please enter your e-mail.")
	}
	if !emailPattern.MatchString(email) {
		return apperr.New(apperr.KindValidation, "validate_email", "Please enter a valid e-mail.")
	}
	if allowedDomain != "" && !strings.HasSuffix(strings.ToLower(email), "@"+allowedDomain) {
		return apperr.New(apperr.KindValidation, "validate_email", "Use your @"+allowedDomain+" e-mail.")
	}
	return nil
}

// Flow drives the e-mail then one-time-code login. Its state lives in the
// session store so it survives reloads.
type Flow struct {
	store         session.Store
	api           CodeAPI
	allowedDomain string
	recorder      SessionRecorder
	logger        *zap.Logger
	newNonce      func() string
	newSessionID  func() string
}

// FlowOption configures a Flow
type FlowOption func(*Flow)

// WithAllowedDomain restricts logins to one organizational e-mail domain
func WithAllowedDomain(domain string) FlowOption {
	return func(f *Flow) { f.allowedDomain = strings.ToLower(strings.TrimPrefix(domain, "@")) }
}

func WithRecorder(r SessionRecorder) FlowOption {
	return func(f *Flow) { f.recorder = r }
}

func WithLogger(l *zap.Logger) FlowOption {
	return func(f *Flow) { f.logger = l }
}

func NewFlow(store session.Store, api CodeAPI, opts ...FlowOption) *Flow {
	f := &Flow{
		store:        store,
		api:          api,
		logger:       zap.NewNop(),
		newNonce:     func() string { return uuid.New().String() },
		newSessionID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AllowedDomain returns the configured e-mail domain, or ""
func (f *Flow) AllowedDomain() string {
	return f.allowedDomain
}

func (f *Flow) get(ctx context.Context, sid, key string) (string, error) {
	value, _, err := f.store.Get(ctx, sid, key)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "login.state", "Your session could not be read.", err)
	}
	return value, nil
}

func (f *Flow) set(ctx context.Context, sid, key, value string) error {
	if err := f.store.Set(ctx, sid, key, value); err != nil {
		return apperr.Wrap(apperr.KindStorage, "login.state", "Your session could not be saved.", err)
	}
	return nil
}

// Current returns the flow state. A flow without an active nonce is always
// back at AwaitingEmail.
func (f *Flow) Current(ctx context.Context, sid string) (FlowState, error) {
	state, err := f.get(ctx, sid, session.KeyLoginState)
	if err != nil {
		return FlowState{}, err
	}
	email, err := f.get(ctx, sid, session.KeyLoginEmail)
	if err != nil {
		return FlowState{}, err
	}
	nonce, err := f.get(ctx, sid, session.KeyLoginFlow)
	if err != nil {
		return FlowState{}, err
	}

	if State(state) == AwaitingCode && nonce != "" && email != "" {
		return FlowState{State: AwaitingCode, Email: email}, nil
	}
	return FlowState{State: AwaitingEmail, Email: email}, nil
}

// SubmitEmail validates the address and asks the API for a code. On success
// the flow moves to AwaitingCode; on any failure it stays where it was.
func (f *Flow) SubmitEmail(ctx context.Context, sid, email string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email, f.allowedDomain); err != nil {
		return err
	}

	nonce := f.newNonce()
	if err := f.set(ctx, sid, session.KeyLoginFlow, nonce); err != nil {
		return err
	}
	if err := f.set(ctx, sid, session.KeyLoginState, string(AwaitingEmail)); err != nil {
		return err
	}

	if err := f.api.SendVerificationCode(ctx, email); err != nil {
		f.logger.Info("Verification code request failed", zap.String("email", email), zap.Error(err))
		return err
	}

	if err := f.ensureActive(ctx, sid, nonce, "login.send_code"); err != nil {
		return err
	}
	if err := f.set(ctx, sid, session.KeyLoginEmail, email); err != nil {
		return err
	}
	return f.set(ctx, sid, session.KeyLoginState, string(AwaitingCode))
}

// SubmitCode verifies the code for the pending e-mail. On success the session
// is written under a fresh id, everything stored under sid is dropped and the
// landing path is returned. A response that arrives after the flow was
// abandoned is discarded with a stale error.
func (f *Flow) SubmitCode(ctx context.Context, sid, code string) (Login, error) {
	st, err := f.Current(ctx, sid)
	if err != nil {
		return Login{}, err
	}
	if st.State != AwaitingCode {
		return Login{}, apperr.New(apperr.KindValidation, "login.verify", "Request a verification code first.")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Login{}, apperr.New(apperr.KindValidation, "login.verify", "Please enter the verification code.")
	}

	nonce, err := f.get(ctx, sid, session.KeyLoginFlow)
	if err != nil {
		return Login{}, err
	}

	res, err := f.api.VerifyCode(ctx, st.Email, code)
	if err != nil {
		f.logger.Info("Verification failed", zap.String("email", st.Email), zap.Error(err))
		return Login{}, err
	}

	if err := f.ensureActive(ctx, sid, nonce, "login.verify"); err != nil {
		f.logger.Warn("Discarding verification for abandoned login", zap.String("email", st.Email))
		return Login{}, err
	}

	newSID := f.newSessionID()
	sess := session.Session{Token: res.Token, Email: st.Email, IsAdmin: res.IsAdmin}
	if err := session.Save(ctx, f.store, newSID, sess); err != nil {
		return Login{}, err
	}
	if err := session.Clear(ctx, f.store, sid); err != nil {
		f.logger.Warn("Failed to clear pre-login session", zap.Error(err))
	}

	if f.recorder != nil {
		if err := f.recorder.RecordLogin(ctx, newSID, sess); err != nil {
			f.logger.Warn("Failed to record login", zap.String("email", sess.Email), zap.Error(err))
		}
	}

	f.logger.Info("User logged in", zap.String("email", sess.Email), zap.Bool("is_admin", sess.IsAdmin))
	return Login{SessionID: newSID, Target: routes.HomeFor(sess.IsAdmin)}, nil
}

// ensureActive fails when the request was cancelled or the flow nonce changed
// while a remote call was in flight.
func (f *Flow) ensureActive(ctx context.Context, sid, nonce, op string) error {
	if ctx.Err() != nil {
		return apperr.Wrap(apperr.KindStale, op, "The login request was cancelled.", ctx.Err())
	}
	current, err := f.get(ctx, sid, session.KeyLoginFlow)
	if err != nil {
		return err
	}
	if current != nonce {
		return apperr.New(apperr.KindStale, op, "This login attempt is no longer active.")
	}
	return nil
}

// Back returns to the e-mail step. The e-mail is kept to prefill the form.
func (f *Flow) Back(ctx context.Context, sid string) error {
	if err := f.set(ctx, sid, session.KeyLoginState, string(AwaitingEmail)); err != nil {
		return err
	}
	if err := f.store.Remove(ctx, sid, session.KeyLoginFlow); err != nil {
		return apperr.Wrap(apperr.KindStorage, "login.back", "Your session could not be saved.", err)
	}
	return nil
}

// Resend repeats the code request for the pending e-mail without changing state
func (f *Flow) Resend(ctx context.Context, sid string) error {
	st, err := f.Current(ctx, sid)
	if err != nil {
		return err
	}
	if st.State != AwaitingCode {
		return apperr.New(apperr.KindValidation, "login.resend", "Request a verification code first.")
	}
	return f.api.SendVerificationCode(ctx, st.Email)
}

// Abandon invalidates a pending flow so in-flight responses are discarded
func (f *Flow) Abandon(ctx context.Context, sid string) error {
	nonce, err := f.get(ctx, sid, session.KeyLoginFlow)
	if err != nil || nonce == "" {
		return err
	}
	if err := f.store.Remove(ctx, sid, session.KeyLoginFlow, session.KeyLoginState); err != nil {
		return apperr.Wrap(apperr.KindStorage, "login.abandon", "Your session could not be saved.", err)
	}
	return nil
}
