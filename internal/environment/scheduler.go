package environment

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-env-sync/internal/metrics"
)

// Op is a command issued against a handle.
type Op string

const (
	OpActivate   Op = "activate"
	OpDeactivate Op = "deactivate"
)

// Command records one activate/deactivate call and its outcome.
type Command struct {
	Op  Op    `json:"op"`
	Env ID    `json:"env"`
	Err error `json:"-"`
}

// Result describes what a single Apply did.
type Result struct {
	Target   TargetState `json:"target"`
	Commands []Command   `json:"commands"`
	Skipped  []string    `json:"skipped,omitempty"`
	Errors   []error     `json:"-"`
}

// Err joins every failure seen during the apply, or nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Snapshot is the registry truth for every known environment.
type Snapshot struct {
	Groups  map[string][]ID `json:"groups"`
	Effects map[ID]bool     `json:"effects"`
	Missing []ID            `json:"missing,omitempty"`
}

// Scheduler converges the registry to a TargetState with the minimum number
// of commands. It holds no state that influences decisions: every Apply reads
// the registry afresh. Apply calls are serialized.
type Scheduler struct {
	registry Registry
	now      func() time.Time

	mu sync.Mutex // serializes Apply

	overridesMu sync.RWMutex
	overrides   map[ID]struct{}

	memoMu  sync.RWMutex
	last    TargetState
	lastAt  time.Time
	hasLast bool
}

// NewScheduler creates a Scheduler issuing commands through registry.
func NewScheduler(registry Registry) *Scheduler {
	return &Scheduler{
		registry:  registry,
		now:       time.Now,
		overrides: make(map[ID]struct{}),
	}
}

// Apply converges the registry to target. Groups are handled in order
// (base time before precipitation), standalone effects last. Inside a group
// deactivations always precede the activation. A failing command never stops
// the remaining steps.
func (s *Scheduler) Apply(target TargetState) Result {
	res := Result{Target: target}
	if err := target.Validate(); err != nil {
		log.Warn().Err(err).Str("target", target.String()).Msg("Rejected target state")
		res.Errors = append(res.Errors, err)
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logSnapshot("Environment state before apply", target)
	for _, g := range Groups {
		s.converge(g, target.Want(g), &res)
	}
	s.applyEffects(target.Effects, &res)
	if len(res.Commands) > 0 {
		s.logSnapshot("Environment state after apply", target)
	}

	s.memoMu.Lock()
	s.last = target
	s.lastAt = s.now()
	s.hasLast = true
	s.memoMu.Unlock()

	metrics.Count("apply.commands", int64(len(res.Commands)))
	if len(res.Errors) > 0 {
		metrics.Incr("apply.errors")
	}

	if len(res.Commands) == 0 && len(res.Errors) == 0 {
		log.Debug().Str("target", target.String()).Msg("Environment already at target")
	}
	return res
}

func (s *Scheduler) logSnapshot(msg string, target TargetState) {
	if e := log.Debug(); e.Enabled() {
		e.Str("target", target.String()).Interface("state", s.Snapshot()).Msg(msg)
	}
}

type member struct {
	id ID
	h  Handle
}

func (s *Scheduler) activeMembers(g MutexGroup) []member {
	var active []member
	for _, id := range g.Members {
		h, ok := s.registry.Lookup(id)
		if !ok {
			continue
		}
		if h.IsActive() {
			active = append(active, member{id: id, h: h})
		}
	}
	return active
}

func (s *Scheduler) converge(g MutexGroup, want ID, res *Result) {
	if overridden := s.overriddenIn(g); overridden != None {
		log.Info().
			Str("group", g.Name).
			Str("env", overridden.String()).
			Msg("Group under user control, skipping")
		res.Skipped = append(res.Skipped, g.Name)
		return
	}

	active := s.activeMembers(g)
	if (g.Policy == ExactlyOne && len(active) != 1) || len(active) > 1 {
		ids := make([]string, 0, len(active))
		for _, m := range active {
			ids = append(ids, m.id.String())
		}
		log.Warn().
			Str("group", g.Name).
			Str("policy", g.Policy.String()).
			Strs("active", ids).
			Msg("Group invariant violated, correcting")
	}

	if want == None {
		for _, m := range active {
			s.command(OpDeactivate, m, res)
		}
		return
	}

	wantHandle, ok := s.registry.Lookup(want)
	if !ok {
		err := fmt.Errorf("%s %s: %w", g.Name, want, ErrMissingHandle)
		res.Errors = append(res.Errors, err)
		log.Warn().Str("group", g.Name).Str("env", want.String()).Msg("Target environment not registered yet")
		if g.Policy == ExactlyOne {
			// Keep whatever is on rather than leaving the group empty.
			return
		}
	}

	var displaced, stuck []member
	alreadyActive := false
	for _, m := range active {
		if m.id == want {
			alreadyActive = true
			continue
		}
		if s.command(OpDeactivate, m, res) {
			displaced = append(displaced, m)
		} else {
			stuck = append(stuck, m)
		}
	}
	if alreadyActive || !ok {
		return
	}
	if len(stuck) > 0 {
		res.Errors = append(res.Errors, fmt.Errorf("%s %s: %s still active: %w", g.Name, want, stuck[0].id, ErrGroupBlocked))
		log.Warn().
			Str("group", g.Name).
			Str("env", want.String()).
			Str("stuck", stuck[0].id.String()).
			Msg("Not activating while another group member is still active")
		return
	}

	if !s.command(OpActivate, member{id: want, h: wantHandle}, res) && g.Policy == ExactlyOne && len(displaced) > 0 {
		log.Warn().
			Str("group", g.Name).
			Str("env", displaced[0].id.String()).
			Msg("Restoring previous environment after failed activation")
		s.command(OpActivate, displaced[0], res)
	}
}

func (s *Scheduler) applyEffects(effects map[ID]bool, res *Result) {
	ids := make([]ID, 0, len(effects))
	for id := range effects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if s.IsOverridden(id) {
			res.Skipped = append(res.Skipped, id.String())
			continue
		}
		h, ok := s.registry.Lookup(id)
		if !ok {
			res.Errors = append(res.Errors, fmt.Errorf("effect %s: %w", id, ErrMissingHandle))
			log.Warn().Str("env", id.String()).Msg("Effect not registered yet")
			continue
		}
		want := effects[id]
		if h.IsActive() == want {
			continue
		}
		op := OpDeactivate
		if want {
			op = OpActivate
		}
		s.command(op, member{id: id, h: h}, res)
	}
}

// command issues one call and records it. It reports success.
func (s *Scheduler) command(op Op, m member, res *Result) bool {
	var err error
	if op == OpActivate {
		err = m.h.Activate()
	} else {
		err = m.h.Deactivate()
	}
	res.Commands = append(res.Commands, Command{Op: op, Env: m.id, Err: err})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("%s %s: %w", op, m.id, err))
		log.Error().Err(err).Str("op", string(op)).Str("env", m.id.String()).Msg("Environment command failed")
		return false
	}
	log.Info().Str("op", string(op)).Str("env", m.id.String()).Msg("Environment command issued")
	return true
}

// Override takes id out of automatic management until cleared. While any
// member of a group is overridden the whole group is left alone.
func (s *Scheduler) Override(id ID) {
	s.overridesMu.Lock()
	defer s.overridesMu.Unlock()
	if _, ok := s.overrides[id]; !ok {
		log.Info().Str("env", id.String()).Msg("User took over environment, stopping auto-management")
	}
	s.overrides[id] = struct{}{}
}

// ClearOverride hands id back to automatic management.
func (s *Scheduler) ClearOverride(id ID) {
	s.overridesMu.Lock()
	defer s.overridesMu.Unlock()
	delete(s.overrides, id)
}

// ClearOverrides hands every environment back to automatic management.
func (s *Scheduler) ClearOverrides() {
	s.overridesMu.Lock()
	defer s.overridesMu.Unlock()
	s.overrides = make(map[ID]struct{})
}

// IsOverridden reports whether the user currently controls id.
func (s *Scheduler) IsOverridden(id ID) bool {
	s.overridesMu.RLock()
	defer s.overridesMu.RUnlock()
	_, ok := s.overrides[id]
	return ok
}

// Overrides lists overridden environments, sorted.
func (s *Scheduler) Overrides() []ID {
	s.overridesMu.RLock()
	defer s.overridesMu.RUnlock()
	ids := make([]ID, 0, len(s.overrides))
	for id := range s.overrides {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Scheduler) overriddenIn(g MutexGroup) ID {
	s.overridesMu.RLock()
	defer s.overridesMu.RUnlock()
	for _, id := range g.Members {
		if _, ok := s.overrides[id]; ok {
			return id
		}
	}
	return None
}

// LastTarget returns the most recently applied target. Diagnostics only.
func (s *Scheduler) LastTarget() (TargetState, time.Time, bool) {
	s.memoMu.RLock()
	defer s.memoMu.RUnlock()
	return s.last, s.lastAt, s.hasLast
}

// Snapshot reads the current state of every known environment.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Groups:  make(map[string][]ID, len(Groups)),
		Effects: make(map[ID]bool),
	}
	for _, id := range All {
		h, ok := s.registry.Lookup(id)
		if !ok {
			snap.Missing = append(snap.Missing, id)
			continue
		}
		g, grouped := GroupOf(id)
		if !grouped {
			snap.Effects[id] = h.IsActive()
			continue
		}
		if _, seen := snap.Groups[g.Name]; !seen {
			snap.Groups[g.Name] = []ID{}
		}
		if h.IsActive() {
			snap.Groups[g.Name] = append(snap.Groups[g.Name], id)
		}
	}
	return snap
}
