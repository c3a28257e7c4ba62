package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/remote"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
	"github.com/ecclesia-hub/admin-client/pkg/tracing"
)

const tracerName = "github.com/ecclesia-hub/admin-client/internal/session"

// Logout reasons, used as metric labels and event payload.
const (
	ReasonUser           = "user"
	ReasonExpired        = "expired"
	ReasonCredentialLost = "credential_lost"
)

const remoteLogoutTimeout = 5 * time.Second

// API is the remote church-management API as the session sees it.
type API interface {
	Login(ctx context.Context, in domain.LoginInput) (*remote.AuthResult, error)
	Register(ctx context.Context, in domain.RegisterInput) (*remote.AuthResult, error)
	CompleteProfile(ctx context.Context, token string, in domain.CompleteProfileInput) (*domain.User, error)
	CurrentTenant(ctx context.Context, token string) (*domain.TenantAssociation, error)
	UpdatePersonalData(ctx context.Context, token string, patch domain.UserPatch) (*domain.User, error)
	UpdateTenantData(ctx context.Context, token string, patch domain.ChurchPatch) (*domain.TenantAssociation, error)
	Logout(ctx context.Context, token string) error
}

// Credentials is the persisted credential. *credential.Store satisfies it.
type Credentials interface {
	Write(ctx context.Context, token string, user *domain.User)
	UpdateSnapshot(ctx context.Context, user *domain.User)
	ReadToken(ctx context.Context) (string, bool)
	ReadUserSnapshot(ctx context.Context) *domain.User
	IsLive(ctx context.Context) bool
	Clear(ctx context.Context)
}

// EventPublisher emits session lifecycle events.
type EventPublisher interface {
	PublishLoggedIn(ctx context.Context, user *domain.User) error
	PublishRegistered(ctx context.Context, user *domain.User) error
	PublishProfileCompleted(ctx context.Context, user *domain.User) error
	PublishLoggedOut(ctx context.Context, user *domain.User, reason string) error
}

// Container is the single session of the process. Create it once at the
// application root and hand it to every consumer.
//
// Storage writes that accompany a state change happen while mu is held, so
// the persisted credential and the in-memory session never diverge.
type Container struct {
	api    API
	creds  Credentials
	events EventPublisher
	logger *slog.Logger
	tracer trace.Tracer

	mu           sync.RWMutex
	user         *domain.User
	tenant       *domain.TenantAssociation
	initializing bool
	inflight     int
	lastError    string
	gen          uint64 // bumped whenever the signed-in principal changes
	closed       bool

	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[uint64]func(State)
	nextSub  uint64

	restoreOnce sync.Once
	ready       chan struct{}
	bg          sync.WaitGroup
}

// NewContainer creates a session in the initializing state. Call Restore
// exactly once to leave it.
func NewContainer(api API, creds Credentials, events EventPublisher, logger *slog.Logger) *Container {
	return &Container{
		api:          api,
		creds:        creds,
		events:       events,
		logger:       logger,
		tracer:       tracing.Tracer(tracerName),
		initializing: true,
		subs:         make(map[uint64]func(State)),
		ready:        make(chan struct{}),
	}
}

// State returns a snapshot that callers may keep and inspect freely.
func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		User:         c.user.Clone(),
		Tenant:       c.tenant.Clone(),
		Initializing: c.initializing,
		Busy:         c.inflight > 0,
		LastError:    c.lastError,
	}
}

// LiveState is State preceded by the lazy expiry check: a signed-in session
// whose credential is no longer live is expired before the snapshot is
// taken. Navigation decisions read through here.
func (c *Container) LiveState(ctx context.Context) State {
	c.mu.RLock()
	check := c.user != nil && !c.initializing && !c.closed
	c.mu.RUnlock()

	if check && !c.creds.IsLive(ctx) {
		c.logout(ctx, ReasonExpired)
	}
	return c.State()
}

// Ready is closed once restoration has finished.
func (c *Container) Ready() <-chan struct{} {
	return c.ready
}

// Identity returns the user and church ids for request logging.
func (c *Container) Identity(context.Context) (userID, churchID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user != nil {
		userID = c.user.IDString()
	}
	if c.tenant != nil && c.tenant.Church.ID != 0 {
		churchID = strconv.FormatInt(c.tenant.Church.ID, 10)
	}
	return userID, churchID
}

// Subscribe registers fn for every state change and calls it once with the
// current state. Deliveries are serialized and never go back in time. fn
// runs synchronously and must not call Container operations itself; it may
// start a goroutine that does. The returned function unsubscribes.
func (c *Container) Subscribe(fn func(State)) (unsubscribe func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.subsMu.Lock()
	if c.subs == nil {
		c.subsMu.Unlock()
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	fn(c.State())

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

func (c *Container) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	st := c.State()
	c.subsMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Restore loads a live credential into the session and then clears the
// initializing flag. Only the first call does anything; later calls return
// immediately, possibly before restoration has finished. Use Ready to wait.
func (c *Container) Restore(ctx context.Context) {
	c.restoreOnce.Do(func() { c.restore(ctx) })
}

func (c *Container) restore(ctx context.Context) {
	ctx, span := c.tracer.Start(ctx, "session.restore")
	outcome := "anonymous"
	defer func() {
		c.mu.Lock()
		c.initializing = false
		c.mu.Unlock()
		close(c.ready)

		Restores.WithLabelValues(outcome).Inc()
		span.SetAttributes(attribute.String("session.restore_outcome", outcome))
		span.End()
		c.logger.InfoContext(ctx, "session initialization finished", slog.String("outcome", outcome))
		c.notify()
	}()

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	var user *domain.User
	if c.creds.IsLive(ctx) {
		user = c.creds.ReadUserSnapshot(ctx)
		if user == nil {
			outcome = "partial"
		}
	}

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		outcome = "superseded"
		return
	}
	if user == nil {
		c.creds.Clear(ctx)
		c.mu.Unlock()
		return
	}
	c.user = user
	c.gen++
	gen = c.gen
	c.mu.Unlock()

	outcome = "restored"
	c.logger.InfoContext(ctx, "session restored from credential",
		slog.Int64("user_id", user.ID),
		slog.Bool("profile_complete", user.ProfileComplete),
	)
	c.notify()

	if user.ProfileComplete {
		c.loadTenant(ctx, gen)
	}
}

// Login signs in with email and password. On failure the user-facing
// message is stored as the last error and the original error is returned.
func (c *Container) Login(ctx context.Context, in domain.LoginInput) (err error) {
	ctx, o, err := c.begin(ctx, "login")
	if err != nil {
		return err
	}
	defer func() { c.finish(ctx, o, err) }()

	res, err := c.api.Login(ctx, in)
	if err != nil {
		return err
	}
	return c.establish(ctx, res, "signed in", c.events.PublishLoggedIn)
}

// Register creates an account and signs in as the new, profile-incomplete user.
func (c *Container) Register(ctx context.Context, in domain.RegisterInput) (err error) {
	ctx, o, err := c.begin(ctx, "register")
	if err != nil {
		return err
	}
	defer func() { c.finish(ctx, o, err) }()

	res, err := c.api.Register(ctx, in)
	if err != nil {
		return err
	}
	return c.establish(ctx, res, "registered", c.events.PublishRegistered)
}

func (c *Container) establish(ctx context.Context, res *remote.AuthResult, msg string, publish func(context.Context, *domain.User) error) error {
	user := res.User.Clone()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrSessionClosed
	}
	c.creds.Write(ctx, res.Token, user)
	if token, ok := c.creds.ReadToken(ctx); !ok || token != res.Token {
		c.creds.Clear(ctx)
		c.mu.Unlock()
		c.logger.ErrorContext(ctx, "credential could not be persisted, sign-in abandoned",
			slog.Int64("user_id", user.ID),
		)
		return apperrors.CredentialsUnavailable()
	}
	c.user = user
	c.tenant = nil
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.logger.InfoContext(ctx, msg,
		slog.Int64("user_id", user.ID),
		slog.Bool("profile_complete", user.ProfileComplete),
	)
	c.publish(ctx, "session."+msg, func(ctx context.Context) error { return publish(ctx, user) })

	if user.ProfileComplete {
		c.background(ctx, func(ctx context.Context) { c.loadTenant(ctx, gen) })
	}
	return nil
}

// CompleteProfile submits onboarding data. The resulting user is marked
// profile-complete locally whatever the server echoed back.
func (c *Container) CompleteProfile(ctx context.Context, in domain.CompleteProfileInput) (err error) {
	ctx, o, err := c.begin(ctx, "complete_profile")
	if err != nil {
		return err
	}
	defer func() { c.finish(ctx, o, err) }()

	token, err := c.token(ctx, false)
	if err != nil {
		return err
	}

	user, err := c.api.CompleteProfile(ctx, token, in)
	if err != nil {
		return err
	}
	user = user.Clone()
	user.ProfileComplete = true

	err = c.commit(o, func() {
		c.user = user
		c.tenant = nil
		c.creds.UpdateSnapshot(ctx, user)
	})
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "profile completed", slog.Int64("user_id", user.ID))
	c.publish(ctx, "session.profile_completed", func(ctx context.Context) error {
		return c.events.PublishProfileCompleted(ctx, user)
	})
	c.background(ctx, func(ctx context.Context) { c.loadTenant(ctx, o.gen) })
	return nil
}

// RefreshTenantAssociation reloads the user's church. A failure is
// reported but leaves the user signed in.
func (c *Container) RefreshTenantAssociation(ctx context.Context) (err error) {
	ctx, o, err := c.begin(ctx, "refresh_tenant")
	if err != nil {
		return err
	}
	defer func() { c.finish(ctx, o, err) }()

	token, err := c.token(ctx, true)
	if err != nil {
		return err
	}

	tenant, err := c.api.CurrentTenant(ctx, token)
	if err != nil {
		return err
	}
	return c.commit(o, func() { c.tenant = tenant.Clone() })
}

// UpdatePersonalData patches the user and replaces it with the server's copy.
func (c *Container) UpdatePersonalData(ctx context.Context, patch domain.UserPatch) (err error) {
	ctx, o, err := c.begin(ctx, "update_personal_data")
	if err != nil {
		return err
	}
	defer func() { c.finish(ctx, o, err) }()

	token, err := c.token(ctx, true)
	if err != nil {
		return err
	}

	user, err := c.api.UpdatePersonalData(ctx, token, patch)
	if err != nil {
		return err
	}
	user = user.Clone()

	return c.commit(o, func() {
		c.user = user
		if !user.ProfileComplete {
			c.tenant = nil
		}
		c.creds.UpdateSnapshot(ctx, user)
	})
}

// UpdateTenantData patches the church and replaces the association with
// the server's copy.
func (c *Container) UpdateTenantData(ctx context.Context, patch domain.ChurchPatch) (err error) {
	ctx, o, err := c.begin(ctx, "update_tenant_data")
	if err != nil {
		return err
	}
	defer func() { c.finish(ctx, o, err) }()

	token, err := c.token(ctx, true)
	if err != nil {
		return err
	}

	tenant, err := c.api.UpdateTenantData(ctx, token, patch)
	if err != nil {
		return err
	}
	return c.commit(o, func() { c.tenant = tenant.Clone() })
}

// ClearError drops the last error.
func (c *Container) ClearError() {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
	c.notify()
}

// Logout signs out. It always succeeds and is idempotent; the server-side
// token invalidation runs in the background and its failure is only logged.
func (c *Container) Logout(ctx context.Context) error {
	c.logout(ctx, ReasonUser)
	return nil
}

// Expire signs out because the credential outlived the inactivity ceiling.
func (c *Container) Expire(ctx context.Context) error {
	c.logout(ctx, ReasonExpired)
	return nil
}

func (c *Container) logout(ctx context.Context, reason string) {
	c.mu.Lock()
	token, hasToken := c.creds.ReadToken(ctx)
	c.creds.Clear(ctx)
	user := c.user
	c.user = nil
	c.tenant = nil
	c.lastError = ""
	if user != nil {
		c.gen++
	}
	c.mu.Unlock()

	if user == nil {
		c.logger.DebugContext(ctx, "logout without a signed-in user", slog.String("reason", reason))
		c.notify()
		return
	}

	Logouts.WithLabelValues(reason).Inc()
	c.logger.InfoContext(ctx, "signed out",
		slog.Int64("user_id", user.ID),
		slog.String("reason", reason),
	)
	c.notify()

	c.publish(ctx, "session.logged_out", func(ctx context.Context) error {
		return c.events.PublishLoggedOut(ctx, user, reason)
	})

	if hasToken {
		c.background(ctx, func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, remoteLogoutTimeout)
			defer cancel()
			if err := c.api.Logout(ctx, token); err != nil {
				c.logger.WarnContext(ctx, "remote token invalidation failed",
					slog.Int64("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}

// Close stops accepting operations and waits for background work. State
// updates from operations still in flight are discarded.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.subsMu.Lock()
	c.subs = nil
	c.subsMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// op tracks one mutating operation.
type op struct {
	name string
	span trace.Span
	gen  uint64
}

func (c *Container) begin(ctx context.Context, name string) (context.Context, *op, error) {
	ctx, span := c.tracer.Start(ctx, "session."+name)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		tracing.End(span, apperrors.ErrSessionClosed)
		return ctx, nil, apperrors.ErrSessionClosed
	}
	c.inflight++
	c.lastError = ""
	gen := c.gen
	c.mu.Unlock()

	c.notify()
	return ctx, &op{name: name, span: span, gen: gen}, nil
}

func (c *Container) finish(ctx context.Context, o *op, err error) {
	c.mu.Lock()
	c.inflight--
	if err != nil && !c.closed && c.gen == o.gen {
		c.lastError = remote.UserMessage(err)
	}
	c.mu.Unlock()

	result := "success"
	if err != nil {
		result = "error"
		c.logger.WarnContext(ctx, "session operation failed",
			slog.String("operation", o.name),
			slog.String("kind", string(remote.Classify(err))),
			slog.String("error", err.Error()),
		)
	}
	Operations.WithLabelValues(o.name, result).Inc()
	tracing.End(o.span, err, attribute.String("session.operation", o.name))
	c.notify()
}

// commit applies fn unless the container closed or the principal changed
// since the operation began.
func (c *Container) commit(o *op, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.ErrSessionClosed
	}
	if c.gen != o.gen || c.user == nil {
		return apperrors.NotAuthenticated()
	}
	fn()
	return nil
}

// token checks the phase precondition and returns the stored token. A
// signed-in user without a stored token means the credential was cleared
// underneath the session, so the session follows it.
func (c *Container) token(ctx context.Context, wantComplete bool) (string, error) {
	c.mu.RLock()
	user := c.user
	c.mu.RUnlock()

	switch {
	case user == nil:
		return "", apperrors.NotAuthenticated()
	case wantComplete && !user.ProfileComplete:
		return "", apperrors.ProfileIncomplete()
	case !wantComplete && user.ProfileComplete:
		return "", apperrors.ProfileAlreadyComplete()
	}

	token, ok := c.creds.ReadToken(ctx)
	if !ok {
		c.logout(ctx, ReasonCredentialLost)
		return "", apperrors.NotAuthenticated()
	}
	return token, nil
}

// loadTenant fetches the church association for generation gen. Failures
// are logged only: the profile stays complete and the tenant stays empty.
func (c *Container) loadTenant(ctx context.Context, gen uint64) {
	token, ok := c.creds.ReadToken(ctx)
	if !ok {
		return
	}

	tenant, err := c.api.CurrentTenant(ctx, token)
	if err != nil {
		c.logger.WarnContext(ctx, "tenant association fetch failed",
			slog.String("kind", string(remote.Classify(err))),
			slog.String("error", err.Error()),
		)
		return
	}

	c.mu.Lock()
	applied := !c.closed && c.gen == gen && c.user != nil && c.user.ProfileComplete
	if applied {
		c.tenant = tenant.Clone()
	}
	c.mu.Unlock()

	if applied {
		c.notify()
	}
}

// background runs fn detached from ctx's cancellation, tracked for Close.
func (c *Container) background(ctx context.Context, fn func(context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.bg.Add(1)
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer c.bg.Done()
		fn(ctx)
	}()
}

func (c *Container) publish(ctx context.Context, event string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish session event",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
