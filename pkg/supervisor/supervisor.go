// Package supervisor implements the actor registry and health-sweep
// loop of spec.md §4.F: bookkeeping for every live actor pair, at-
// most-once disconnect logging, and the periodic sweep that flags
// empty backends for external shutdown.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.emberproxy.dev/ember/pkg/config"
)

// HealthCheckInterval is the periodic sweep period (spec.md §4.F).
const HealthCheckInterval = 60 * time.Second

// Actor is the subset of a proxy actor pair the supervisor needs to
// track and shut down; pkg/proxy's ActorPair implements it.
type Actor interface {
	ID() string
	ConfigID() string
	Shutdown()
	Done() <-chan struct{}
}

// EmptyServerChecker reports whether a config_id currently has zero
// active player sessions, and is asked to arrange backend shutdown
// when one has stayed empty past its configured grace period. It is
// implemented by the external process controller collaborator, never
// by the core itself (spec.md §1, §4.F: the core only does bookkeeping).
type EmptyServerChecker interface {
	PlayerCount(configID string) int
	RequestShutdown(configID string)
}

type registeredActor struct {
	actor        Actor
	disconnected atomic.Bool
}

// Supervisor owns the live actor and background-task registries.
type Supervisor struct {
	mu     sync.RWMutex
	actors map[string]*registeredActor

	tasksMu sync.Mutex
	tasks   map[string]context.CancelFunc

	players atomic.Int64

	checker        EmptyServerChecker
	lastEmptySince sync.Map // config_id -> time.Time
}

// New returns an empty Supervisor. checker may be nil, in which case
// CheckAndMarkEmptyServers is a no-op (no external controller wired).
func New(checker EmptyServerChecker) *Supervisor {
	return &Supervisor{
		actors:  make(map[string]*registeredActor),
		tasks:   make(map[string]context.CancelFunc),
		checker: checker,
	}
}

// CreatePair registers a new actor pair under its own id, logging
// creation once (spec.md §4.F).
func (s *Supervisor) CreatePair(a Actor) {
	s.mu.Lock()
	s.actors[a.ID()] = &registeredActor{actor: a}
	s.mu.Unlock()
	s.players.Add(1)
	zap.S().Infow("actor pair created", "session_id", a.ID(), "config_id", a.ConfigID())
}

// LogPlayerDisconnect logs a session's disconnect exactly once, even
// if both the client and server side of the pair independently detect
// the closure (spec.md §8 property 8), and removes it from the
// registry so ActiveCount/PlayerCount stop counting it (spec.md §4.F).
func (s *Supervisor) LogPlayerDisconnect(sessionID string) {
	s.mu.Lock()
	ra, ok := s.actors[sessionID]
	if ok {
		delete(s.actors, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if ra.disconnected.CompareAndSwap(false, true) {
		zap.S().Infow("player disconnected", "session_id", sessionID, "config_id", ra.actor.ConfigID())
		s.players.Add(-1)
	}
}

// ShutdownActor shuts down and deregisters a single actor pair by id.
func (s *Supervisor) ShutdownActor(sessionID string) {
	s.mu.Lock()
	ra, ok := s.actors[sessionID]
	if ok {
		delete(s.actors, sessionID)
	}
	s.mu.Unlock()
	if ok {
		ra.actor.Shutdown()
	}
}

// ShutdownAllActors shuts down and deregisters every live actor pair,
// used on proxy shutdown.
func (s *Supervisor) ShutdownAllActors() {
	s.mu.Lock()
	all := make([]*registeredActor, 0, len(s.actors))
	for id, ra := range s.actors {
		all = append(all, ra)
		delete(s.actors, id)
	}
	s.mu.Unlock()
	for _, ra := range all {
		ra.actor.Shutdown()
	}
}

// ActiveCount returns the number of registered actor pairs for a
// config_id.
func (s *Supervisor) ActiveCount(configID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ra := range s.actors {
		if ra.actor.ConfigID() == configID {
			n++
		}
	}
	return n
}

// PlayerCount returns the total number of players across every
// registered actor pair.
func (s *Supervisor) PlayerCount() int64 {
	return s.players.Load()
}

// RegisterTask tracks a background goroutine's cancel func under
// name, so CancelTask can cancel it. The console's "tasks" command
// neither lists nor cancels registered tasks.
func (s *Supervisor) RegisterTask(name string, cancel context.CancelFunc) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	s.tasks[name] = cancel
}

// CancelTask cancels and forgets a named background task.
func (s *Supervisor) CancelTask(name string) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	if cancel, ok := s.tasks[name]; ok {
		cancel()
		delete(s.tasks, name)
	}
}

// RunHealthCheck blocks, sweeping every HealthCheckInterval until ctx
// is canceled (spec.md §4.F).
func (s *Supervisor) RunHealthCheck(ctx context.Context, servers func() []*config.ServerConfig) {
	ticker := time.NewTicker(HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.HealthCheck()
			s.CheckAndMarkEmptyServers(servers())
		}
	}
}

// HealthCheck reaps any actor pair whose Done channel has already
// closed (its Shutdown ran without going through LogPlayerDisconnect,
// e.g. a directly-kicked pair) and logs a snapshot of what remains
// (spec.md §4.F).
func (s *Supervisor) HealthCheck() {
	s.mu.Lock()
	for id, ra := range s.actors {
		select {
		case <-ra.actor.Done():
			delete(s.actors, id)
		default:
		}
	}
	n := len(s.actors)
	s.mu.Unlock()
	zap.S().Debugw("supervisor health check", "active_actor_pairs", n, "players", s.players.Load())
}

// CheckAndMarkEmptyServers asks the wired EmptyServerChecker to shut
// down any backend that has had zero players for longer than its
// configured empty_shutdown_time (spec.md §4.F, §3 server_manager).
func (s *Supervisor) CheckAndMarkEmptyServers(servers []*config.ServerConfig) {
	if s.checker == nil {
		return
	}
	now := time.Now()
	for _, cfg := range servers {
		if cfg.ServerManager == nil {
			continue
		}
		count := s.checker.PlayerCount(cfg.ConfigID)
		if count > 0 {
			s.lastEmptySince.Delete(cfg.ConfigID)
			continue
		}
		since, existed := s.lastEmptySince.LoadOrStore(cfg.ConfigID, now)
		if !existed {
			continue
		}
		if now.Sub(since.(time.Time)) >= cfg.ServerManager.EmptyShutdownTime {
			zap.S().Infow("backend empty past grace period, requesting shutdown", "config_id", cfg.ConfigID)
			s.checker.RequestShutdown(cfg.ConfigID)
			s.lastEmptySince.Delete(cfg.ConfigID)
		}
	}
}
