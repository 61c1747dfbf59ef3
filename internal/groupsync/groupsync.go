// Package groupsync keeps a client-side cache of the user's active group and
// reconciles it with the service on a fixed interval.
package groupsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/remote"
)

// DefaultPollInterval is how often the roster is refreshed while a group is active.
const DefaultPollInterval = 15 * time.Second

var (
	// ErrInvalidCode means the join code is not exactly six digits after
	// stripping everything else.
	ErrInvalidCode = errors.New("group code must be 6 digits")

	// ErrGroupNotFound means the service has no group with the given code.
	ErrGroupNotFound = errors.New("group not found")

	// ErrNoGroup means the operation needs an active group.
	ErrNoGroup = errors.New("not in a group")

	// ErrSuperseded means the active group changed while a refresh was in
	// flight and its result was dropped.
	ErrSuperseded = errors.New("group changed during refresh")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("group sync closed")
)

// GroupService is the remote side of group management.
type GroupService interface {
	CreateGroup(ctx context.Context, userID, name string) (models.GroupSummary, error)
	JoinGroup(ctx context.Context, code, userID string) (string, error)
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)
	ListGroups(ctx context.Context) ([]models.GroupSummary, error)
}

// NormalizeCode strips every non-digit from raw and returns the result when it
// is exactly six digits.
func NormalizeCode(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) != models.GroupCodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, raw)
	}
	return code, nil
}

// Syncer owns the active group and its cached roster.
// It is safe for concurrent use.
type Syncer struct {
	svc      GroupService
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	roster *models.GroupRoster
	loaded bool
	gen    uint64
	poll   clockwork.Timer
	closed bool
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock overrides the clock that arms the poll timer.
func WithClock(c clockwork.Clock) Option {
	return func(g *Syncer) { g.clock = c }
}

// WithPollInterval overrides DefaultPollInterval. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(g *Syncer) { g.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Syncer) { g.logger = l }
}

// New creates a Syncer with no active group.
func New(svc GroupService, opts ...Option) *Syncer {
	g := &Syncer{
		svc:      svc,
		clock:    clockwork.NewRealClock(),
		interval: DefaultPollInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateGroup asks the service for a new group owned by userID and makes it
// the active group.
func (g *Syncer) CreateGroup(ctx context.Context, userID, name string) (models.GroupRoster, error) {
	if err := g.checkOpen(); err != nil {
		return models.GroupRoster{}, err
	}

	summary, err := g.svc.CreateGroup(ctx, userID, name)
	if err != nil {
		return models.GroupRoster{}, describe(err, "could not create group")
	}

	g.logger.Info("Group created", "group_id", summary.GroupID, "code", summary.Code)
	g.activate(summary.GroupID, summary.Code)
	return g.refreshAfterActivate(ctx)
}

// JoinGroup validates code locally, joins it remotely and makes it the active
// group. An invalid code never reaches the network.
func (g *Syncer) JoinGroup(ctx context.Context, rawCode, userID string) (models.GroupRoster, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return models.GroupRoster{}, err
	}
	if err := g.checkOpen(); err != nil {
		return models.GroupRoster{}, err
	}

	groupID, err := g.svc.JoinGroup(ctx, code, userID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return models.GroupRoster{}, fmt.Errorf("%w: %s", ErrGroupNotFound, code)
		}
		return models.GroupRoster{}, describe(err, "could not join group")
	}

	g.logger.Info("Joined group", "group_id", groupID, "code", code)
	g.activate(groupID, code)
	return g.refreshAfterActivate(ctx)
}

// LeaveGroup forgets the active group and stops polling. The service is not told.
func (g *Syncer) LeaveGroup() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roster = nil
	g.loaded = false
	g.gen++
	g.stopPolling()
}

// Roster returns a copy of the cached roster, or false when no group is active.
func (g *Syncer) Roster() (models.GroupRoster, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roster == nil {
		return models.GroupRoster{}, false
	}
	return copyRoster(g.roster), true
}

// Active reports whether a group is active.
func (g *Syncer) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roster != nil
}

// RefreshMembers fetches the roster of the active group. On failure the last
// successfully fetched roster is kept; before any success the roster stays
// empty. A result for a group that is no longer active is dropped with
// ErrSuperseded.
func (g *Syncer) RefreshMembers(ctx context.Context) ([]models.Member, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	if g.roster == nil {
		g.mu.Unlock()
		return nil, ErrNoGroup
	}
	gen := g.gen
	groupID := g.roster.GroupID
	g.mu.Unlock()

	members, err := g.svc.ListMembers(ctx, groupID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen || g.roster == nil {
		g.logger.Debug("Discarding roster for previous group", "group_id", groupID)
		return nil, ErrSuperseded
	}
	if err != nil {
		if !g.loaded {
			g.roster.Members = []models.Member{}
		}
		g.logger.Warn("Failed to refresh members", "group_id", groupID, "error", err)
		return copyMembers(g.roster.Members), describe(err, "could not refresh members")
	}

	g.roster.Members = copyMembers(members)
	g.loaded = true
	return copyMembers(members), nil
}

// ListGroups returns every group the service knows about.
func (g *Syncer) ListGroups(ctx context.Context) ([]models.GroupSummary, error) {
	groups, err := g.svc.ListGroups(ctx)
	if err != nil {
		return nil, describe(err, "could not list groups")
	}
	return groups, nil
}

// Close stops polling. The Syncer rejects further group operations.
func (g *Syncer) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.gen++
	g.stopPolling()
}

func (g *Syncer) checkOpen() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	return nil
}

func (g *Syncer) activate(groupID, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roster = &models.GroupRoster{GroupID: groupID, Code: code, Members: []models.Member{}}
	g.loaded = false
	g.gen++
	g.stopPolling()
	g.schedule(g.gen)
}

// refreshAfterActivate loads the first roster. A failed first load is not an
// error for the create/join that triggered it.
func (g *Syncer) refreshAfterActivate(ctx context.Context) (models.GroupRoster, error) {
	if _, err := g.RefreshMembers(ctx); err != nil {
		g.logger.Debug("Initial roster load failed", "error", err)
	}
	roster, ok := g.Roster()
	if !ok {
		return models.GroupRoster{}, ErrSuperseded
	}
	return roster, nil
}

// schedule arms the next poll. Callers hold g.mu.
func (g *Syncer) schedule(gen uint64) {
	if g.interval <= 0 || g.closed {
		return
	}
	g.poll = g.clock.AfterFunc(g.interval, func() { g.tick(gen) })
}

func (g *Syncer) tick(gen uint64) {
	g.mu.Lock()
	if g.gen != gen || g.closed || g.roster == nil {
		g.mu.Unlock()
		return
	}
	g.poll = nil
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), g.interval)
	_, err := g.RefreshMembers(ctx)
	cancel()
	if err != nil && !errors.Is(err, ErrSuperseded) {
		g.logger.Debug("Roster poll failed", "error", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen == gen && g.poll == nil {
		g.schedule(gen)
	}
}

// stopPolling cancels the pending poll. Callers hold g.mu.
func (g *Syncer) stopPolling() {
	if g.poll != nil {
		g.poll.Stop()
		g.poll = nil
	}
}

// describe wraps err with the server's message when there is one, or with a
// generic failure otherwise.
func describe(err error, generic string) error {
	if detail, ok := remote.Detail(err); ok {
		return fmt.Errorf("%s: %w", detail, err)
	}
	return fmt.Errorf("%s: %w", generic, err)
}

func copyRoster(r *models.GroupRoster) models.GroupRoster {
	return models.GroupRoster{GroupID: r.GroupID, Code: r.Code, Members: copyMembers(r.Members)}
}

func copyMembers(m []models.Member) []models.Member {
	out := make([]models.Member, len(m))
	copy(out, m)
	return out
}
