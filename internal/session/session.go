// Package session wires the drink ledger, BAC estimator, reaction timer,
// group sync and notification dispatcher for one signed-in user.
//
// A Session is constructed explicitly and passed to whatever drives it (the
// CLI, tests). It owns every timer the components arm and tears them down on
// Close.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mmynk/saferound/internal/estimator"
	"github.com/mmynk/saferound/internal/groupsync"
	"github.com/mmynk/saferound/internal/ledger"
	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/notify"
	"github.com/mmynk/saferound/internal/reaction"
	"github.com/mmynk/saferound/internal/tagscan"
	"github.com/mmynk/saferound/pkg/api"
)

var (
	// ErrSuperseded means the ledger changed while an estimate was being
	// computed. The previous reading is kept.
	ErrSuperseded = errors.New("drinks changed during estimate")

	// ErrOffline is returned by group operations when no service is configured.
	ErrOffline = errors.New("no group service configured")

	// ErrUnknownMember means the alert target is not on the cached roster.
	ErrUnknownMember = errors.New("member not in group")
)

// ReadingMaxAge is how long a reading may be pushed to the group before BAC
// is estimated again.
const ReadingMaxAge = time.Minute

// Session is the state of one user's night out.
type Session struct {
	userID string
	clock  clockwork.Clock
	logger *slog.Logger

	ledger     *ledger.Ledger
	estimator  *estimator.Estimator
	reaction   *reaction.Timer
	groups     *groupsync.Syncer
	dispatcher *notify.Dispatcher

	mu   sync.Mutex
	bio  models.UserBiometrics
	last *estimator.Result
}

type config struct {
	bio             models.UserBiometrics
	clock           clockwork.Clock
	logger          *slog.Logger
	oracle          estimator.Oracle
	groups          groupsync.GroupService
	notifier        notify.Notifier
	pollInterval    time.Duration
	guidanceTimeout time.Duration
	reactionOpts    []reaction.Option
}

// Option configures a Session.
type Option func(*config)

// WithBiometrics sets the initial weight and sex.
func WithBiometrics(bio models.UserBiometrics) Option {
	return func(c *config) { c.bio = bio }
}

// WithClock drives every component from c.
func WithClock(c clockwork.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithLogger sets the logger shared by the components.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithOracle sets the source of BAC guidance.
func WithOracle(o estimator.Oracle) Option {
	return func(c *config) { c.oracle = o }
}

// WithGroupService sets the remote group service.
func WithGroupService(s groupsync.GroupService) Option {
	return func(c *config) { c.groups = s }
}

// WithNotifier sets the push channel.
func WithNotifier(n notify.Notifier) Option {
	return func(c *config) { c.notifier = n }
}

// Remote is a client that serves every remote capability.
type Remote interface {
	estimator.Oracle
	groupsync.GroupService
	notify.Notifier
}

// WithRemote uses r for guidance, groups and notifications.
func WithRemote(r Remote) Option {
	return func(c *config) {
		c.oracle = r
		c.groups = r
		c.notifier = r
	}
}

// WithPollInterval overrides the roster poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) { c.pollInterval = d }
}

// WithGuidanceTimeout overrides the oracle timeout.
func WithGuidanceTimeout(d time.Duration) Option {
	return func(c *config) { c.guidanceTimeout = d }
}

// WithReactionOptions passes extra options to the reaction timer.
func WithReactionOptions(opts ...reaction.Option) Option {
	return func(c *config) { c.reactionOpts = append(c.reactionOpts, opts...) }
}

// New creates a session for userID.
func New(userID string, opts ...Option) *Session {
	cfg := config{
		clock:        clockwork.NewRealClock(),
		logger:       slog.Default(),
		oracle:       estimator.NoOracle{},
		pollInterval: groupsync.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.groups == nil {
		cfg.groups = offline{}
	}
	if cfg.notifier == nil {
		cfg.notifier = offline{}
	}

	estOpts := []estimator.Option{estimator.WithClock(cfg.clock), estimator.WithLogger(cfg.logger)}
	if cfg.guidanceTimeout > 0 {
		estOpts = append(estOpts, estimator.WithTimeout(cfg.guidanceTimeout))
	}

	return &Session{
		userID:    userID,
		clock:     cfg.clock,
		logger:    cfg.logger.With("user_id", userID),
		bio:       cfg.bio,
		ledger:    ledger.New(cfg.clock),
		estimator: estimator.New(cfg.oracle, estOpts...),
		reaction:  reaction.New(append([]reaction.Option{reaction.WithClock(cfg.clock)}, cfg.reactionOpts...)...),
		groups: groupsync.New(cfg.groups,
			groupsync.WithClock(cfg.clock),
			groupsync.WithPollInterval(cfg.pollInterval),
			groupsync.WithLogger(cfg.logger),
		),
		dispatcher: notify.New(cfg.notifier, notify.WithClock(cfg.clock), notify.WithLogger(cfg.logger)),
	}
}

// UserID returns the session owner.
func (s *Session) UserID() string { return s.userID }

// Ledger returns the drink ledger.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Reaction returns the reaction timer.
func (s *Session) Reaction() *reaction.Timer { return s.reaction }

// Groups returns the group syncer.
func (s *Session) Groups() *groupsync.Syncer { return s.groups }

// AddDrink logs a drink of massGrams of pure alcohol.
func (s *Session) AddDrink(massGrams float64) (models.DrinkEvent, error) {
	event, err := s.ledger.AddDrink(massGrams)
	if err != nil {
		return models.DrinkEvent{}, err
	}
	s.logger.Info("Drink added", "grams", event.MassGrams, "total_grams", s.ledger.TotalMass())
	return event, nil
}

// AddStandardDrink logs a 14 g drink.
func (s *Session) AddStandardDrink() models.DrinkEvent {
	event := s.ledger.AddStandardDrink()
	s.logger.Info("Drink added", "grams", event.MassGrams, "total_grams", s.ledger.TotalMass())
	return event
}

// Scan logs the drink described by a tag payload. Unusable payloads log a
// standard drink.
func (s *Session) Scan(payload []byte) (models.DrinkEvent, error) {
	event, err := s.ledger.AddCandidate(tagscan.Parse(payload))
	if err != nil {
		return models.DrinkEvent{}, fmt.Errorf("failed to add scanned drink: %w", err)
	}
	s.logger.Info("Drink scanned", "grams", event.MassGrams, "source", event.Source)
	return event, nil
}

// Listen logs every drink src produces until ctx ends or src is exhausted.
func (s *Session) Listen(ctx context.Context, src tagscan.Source) error {
	return tagscan.Listen(ctx, src, func(c models.DrinkCandidate) {
		if _, err := s.ledger.AddCandidate(c); err != nil {
			s.logger.Warn("Dropping scanned drink", "error", err)
		}
	})
}

// UndoDrink removes the most recent drink.
func (s *Session) UndoDrink() (models.DrinkEvent, bool) {
	event, ok := s.ledger.RemoveLast()
	if ok {
		s.logger.Info("Drink removed", "grams", event.MassGrams)
	}
	return event, ok
}

// SetBiometrics replaces the weight and sex used for estimates.
func (s *Session) SetBiometrics(bio models.UserBiometrics) error {
	if !bio.Valid() {
		return estimator.ErrBiometricsRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bio = bio
	return nil
}

// Biometrics returns the current weight and sex.
func (s *Session) Biometrics() models.UserBiometrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bio
}

// Estimate computes a new BAC reading. If drinks were added or removed while
// guidance was being fetched, the result is dropped, the previous reading is
// returned and the error is ErrSuperseded.
func (s *Session) Estimate(ctx context.Context) (estimator.Result, error) {
	bio := s.Biometrics()

	var reactionMs *float64
	if avg, ok := s.reaction.Average(); ok {
		reactionMs = &avg
	}

	result, err := s.estimator.Estimate(ctx, bio, s.ledger, reactionMs)
	if err != nil {
		return estimator.Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if result.LedgerVersion != s.ledger.Version() {
		s.logger.Debug("Discarding stale estimate", "bac", result.Reading.Value)
		if s.last != nil {
			return *s.last, ErrSuperseded
		}
		return estimator.Result{}, ErrSuperseded
	}
	s.last = &result
	return result, nil
}

// LastReading returns the most recent accepted estimate.
func (s *Session) LastReading() (estimator.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return estimator.Result{}, false
	}
	return *s.last, true
}

// NotifyGroup pushes the current BAC to the active group. Without an active
// group it returns a failure toast and sends nothing.
func (s *Session) NotifyGroup(ctx context.Context) (notify.Toast, error) {
	roster, ok := s.groups.Roster()
	if !ok {
		// An empty group id only produces the failure toast.
		return s.dispatcher.NotifyGroup(ctx, s.userID, "", 0), nil
	}
	bac, err := s.currentBAC(ctx)
	if err != nil {
		return notify.Toast{}, err
	}
	return s.dispatcher.NotifyGroup(ctx, s.userID, roster.GroupID, bac), nil
}

// AlertMember pushes the latest BAC to one member of the active group.
func (s *Session) AlertMember(ctx context.Context, memberID string) (notify.Toast, error) {
	roster, ok := s.groups.Roster()
	if !ok {
		return notify.Toast{}, groupsync.ErrNoGroup
	}
	var target *models.Member
	for i := range roster.Members {
		if roster.Members[i].UserID == memberID {
			target = &roster.Members[i]
			break
		}
	}
	if target == nil {
		return notify.Toast{}, fmt.Errorf("%w: %s", ErrUnknownMember, memberID)
	}

	bac, err := s.currentBAC(ctx)
	if err != nil {
		return notify.Toast{}, err
	}
	return s.dispatcher.Alert(ctx, s.userID, roster.GroupID, *target, bac), nil
}

// currentBAC reuses the last reading while the ledger is unchanged and the
// reading is younger than ReadingMaxAge, and estimates again otherwise.
func (s *Session) currentBAC(ctx context.Context) (float64, error) {
	if last, ok := s.LastReading(); ok && last.LedgerVersion == s.ledger.Version() &&
		s.clock.Since(last.Reading.ComputedAt) < ReadingMaxAge {
		return last.Reading.Value, nil
	}
	result, err := s.Estimate(ctx)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		return 0, err
	}
	return result.Reading.Value, nil
}

// Close stops the reaction timer and roster polling.
func (s *Session) Close() {
	s.reaction.Stop()
	s.groups.Close()
}

// offline stands in for the service when none is configured.
type offline struct{}

func (offline) CreateGroup(context.Context, string, string) (models.GroupSummary, error) {
	return models.GroupSummary{}, ErrOffline
}

func (offline) JoinGroup(context.Context, string, string) (string, error) {
	return "", ErrOffline
}

func (offline) ListMembers(context.Context, string) ([]models.Member, error) {
	return nil, ErrOffline
}

func (offline) ListGroups(context.Context) ([]models.GroupSummary, error) {
	return nil, ErrOffline
}

func (offline) Notify(context.Context, api.NotifyRequest) (api.NotifyResponse, error) {
	return api.NotifyResponse{}, ErrOffline
}
