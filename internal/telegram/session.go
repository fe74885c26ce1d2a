package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tggate/pkg/gate"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// startTimeout bounds how long Start waits for the provider transport to
// come up before reporting a connection failure.
const startTimeout = 30 * time.Second

// authFlow is the slice of the provider auth client the session state
// machine drives. *auth.Client satisfies it.
type authFlow interface {
	Status(ctx context.Context) (*auth.Status, error)
	SendCode(ctx context.Context, phone string, options auth.SendCodeOptions) (tg.AuthSentCodeClass, error)
	SignIn(ctx context.Context, phone, code, codeHash string) (*tg.AuthAuthorization, error)
	Password(ctx context.Context, password string) (*tg.AuthAuthorization, error)
}

// selfLookup fetches the signed-in account profile. *telegram.Client
// satisfies it.
type selfLookup interface {
	Self(ctx context.Context) (*tg.User, error)
}

// SessionConfig carries the provider credentials and wiring for one session.
type SessionConfig struct {
	APIID      int
	APIHash    string
	Phone      string
	SessionDir string

	// UpdateHandler receives live updates while the session is connected.
	UpdateHandler telegram.UpdateHandler

	Logger *slog.Logger
}

// Session owns the provider client lifecycle and the authentication state
// machine on top of it.
//
// State transitions:
//
//	unauthenticated -> connecting        (Start, no stored session)
//	unauthenticated -> authorized        (Start, valid stored session)
//	connecting      -> code_requested    (RequestCode)
//	code_requested  -> awaiting_password (SubmitCode, second factor set)
//	code_requested  -> authorized        (SubmitCode)
//	awaiting_password -> authorized      (SubmitPassword)
//	any             -> unauthenticated   (Disconnect)
//
// Failed code or password submissions keep the current state so the caller
// can retry.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    gate.AuthState
	user     *gate.UserProfile
	codeHash string
	starting bool

	flow authFlow
	self selfLookup
	api  *tg.Client

	runCancel context.CancelFunc
	runDone   chan struct{}
}

// NewSession validates the configuration and returns an unauthenticated
// session. The provider connection is not opened until Start.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.APIID == 0 {
		return nil, fmt.Errorf("new session: api id is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("new session: api hash is required")
	}
	if cfg.Phone == "" {
		return nil, fmt.Errorf("new session: phone is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Session{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "session")),
		state:  gate.StateUnauthenticated,
	}, nil
}

// Start opens the provider connection and restores any stored session. It is
// a no-op when a connection is already running or another Start is still
// connecting, so at most one client run loop exists at a time.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.starting || s.runDone != nil {
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.state = gate.StateConnecting
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	storage, err := NewFileSessionStorage(s.cfg.SessionDir, s.cfg.Phone)
	if err != nil {
		s.reset()
		return fmt.Errorf("start session: %w", err)
	}

	waiter := floodwait.NewSimpleWaiter()
	client := telegram.NewClient(s.cfg.APIID, s.cfg.APIHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  s.cfg.UpdateHandler,
		Middlewares: []telegram.Middleware{
			waiter,
		},
	})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ready := make(chan error, 1)

	go func() {
		defer close(done)
		err := client.Run(runCtx, func(ctx context.Context) error {
			select {
			case ready <- nil:
			default:
			}
			<-ctx.Done()
			return ctx.Err()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("client run ended", slog.Any("error", err))
			select {
			case ready <- err:
			default:
			}
		}
		s.mu.Lock()
		s.resetStateLocked()
		s.mu.Unlock()
	}()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-done
			return fmt.Errorf("start session: %w: %v", gate.ErrConnection, err)
		}
	case <-time.After(startTimeout):
		cancel()
		<-done
		return fmt.Errorf("start session: %w: timed out", gate.ErrConnection)
	case <-ctx.Done():
		cancel()
		<-done
		return fmt.Errorf("start session: %w", ctx.Err())
	}

	s.mu.Lock()
	s.flow = client.Auth()
	s.self = client
	s.api = client.API()
	s.runCancel = cancel
	s.runDone = done
	s.mu.Unlock()

	return s.restore(ctx)
}

// restore probes the stored authorization and promotes the session straight
// to authorized when the provider still accepts it.
func (s *Session) restore(ctx context.Context) error {
	s.mu.Lock()
	flow := s.flow
	self := s.self
	s.mu.Unlock()

	status, err := flow.Status(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !status.Authorized {
		s.logger.Info("session connected, sign-in required")
		return nil
	}

	profile, err := fetchProfile(ctx, self)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	s.state = gate.StateAuthorized
	s.user = profile
	s.mu.Unlock()

	s.logger.Info("session restored", slog.Int64("user_id", profile.ID))
	return nil
}

// RequestCode asks the provider to send a login code to the account.
func (s *Session) RequestCode(ctx context.Context) error {
	s.mu.Lock()
	if s.state != gate.StateConnecting && s.state != gate.StateCodeRequested {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("request code in state %q: %w", state, gate.ErrNotConnected)
	}
	flow := s.flow
	s.mu.Unlock()

	sent, err := flow.SendCode(ctx, s.cfg.Phone, auth.SendCodeOptions{})
	if err != nil {
		return fmt.Errorf("request code: %w", err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return fmt.Errorf("request code: unexpected response %T", sent)
	}

	s.mu.Lock()
	s.codeHash = code.PhoneCodeHash
	s.state = gate.StateCodeRequested
	s.mu.Unlock()

	s.logger.Info("login code requested")
	return nil
}

// SubmitCode signs in with the received login code. When the account has a
// second factor password the session moves to awaiting_password and the
// returned status reflects that; this is a normal transition, not an error.
func (s *Session) SubmitCode(ctx context.Context, code string) (gate.AuthStatus, error) {
	s.mu.Lock()
	if s.state != gate.StateCodeRequested {
		state := s.state
		s.mu.Unlock()
		return s.Status(), fmt.Errorf("submit code in state %q: %w", state, gate.ErrCodeNotRequested)
	}
	flow := s.flow
	self := s.self
	codeHash := s.codeHash
	s.mu.Unlock()

	_, err := flow.SignIn(ctx, s.cfg.Phone, code, codeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		s.mu.Lock()
		s.state = gate.StateAwaitingPassword
		s.mu.Unlock()
		s.logger.Info("second factor password required")
		return s.Status(), nil
	}
	if err != nil {
		return s.Status(), fmt.Errorf("submit code: %w: %v", gate.ErrAuth, err)
	}

	if err := s.finishSignIn(ctx, self); err != nil {
		return s.Status(), err
	}
	return s.Status(), nil
}

// SubmitPassword completes sign-in for accounts with a second factor.
func (s *Session) SubmitPassword(ctx context.Context, password string) (gate.AuthStatus, error) {
	s.mu.Lock()
	if s.state != gate.StateAwaitingPassword {
		state := s.state
		s.mu.Unlock()
		return s.Status(), fmt.Errorf("submit password in state %q: %w", state, gate.ErrPasswordRequired)
	}
	flow := s.flow
	self := s.self
	s.mu.Unlock()

	if _, err := flow.Password(ctx, password); err != nil {
		return s.Status(), fmt.Errorf("submit password: %w: %v", gate.ErrAuth, err)
	}

	if err := s.finishSignIn(ctx, self); err != nil {
		return s.Status(), err
	}
	return s.Status(), nil
}

func (s *Session) finishSignIn(ctx context.Context, self selfLookup) error {
	profile, err := fetchProfile(ctx, self)
	if err != nil {
		return fmt.Errorf("finish sign-in: %w", err)
	}

	s.mu.Lock()
	s.state = gate.StateAuthorized
	s.user = profile
	s.codeHash = ""
	s.mu.Unlock()

	s.logger.Info("signed in", slog.Int64("user_id", profile.ID))
	return nil
}

// Disconnect tears the provider connection down and returns the session to
// the unauthenticated state. It is idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel := s.runCancel
	done := s.runDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.resetStateLocked()
	s.mu.Unlock()
	s.logger.Info("session disconnected")
}

// Status returns a point-in-time snapshot of the state machine.
func (s *Session) Status() gate.AuthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := gate.AuthStatus{State: s.state}
	if s.user != nil {
		user := *s.user
		status.User = &user
	}
	return status
}

// API returns the raw provider client, gated on the authorized state.
func (s *Session) API() (*tg.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != gate.StateAuthorized || s.api == nil {
		return nil, gate.ErrNotConnected
	}
	return s.api, nil
}

func (s *Session) reset() {
	s.mu.Lock()
	s.resetStateLocked()
	s.mu.Unlock()
}

func (s *Session) resetStateLocked() {
	s.state = gate.StateUnauthenticated
	s.user = nil
	s.codeHash = ""
	s.flow = nil
	s.self = nil
	s.api = nil
	s.runCancel = nil
	s.runDone = nil
}

func fetchProfile(ctx context.Context, self selfLookup) (*gate.UserProfile, error) {
	me, err := self.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	username, _ := me.GetUsername()
	firstName, _ := me.GetFirstName()
	lastName, _ := me.GetLastName()
	phone, _ := me.GetPhone()

	return &gate.UserProfile{
		ID:        me.ID,
		FirstName: firstName,
		LastName:  lastName,
		Username:  username,
		Phone:     phone,
	}, nil
}
