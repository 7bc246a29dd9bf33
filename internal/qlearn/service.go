// Package qlearn implements the per-instance learning façade: action
// selection under an epsilon-greedy policy, the Bellman update
// against the shared store, exploration decay and local statistics.
// Instances of one agent type share nothing in-process; everything
// they learn flows through the store.
package qlearn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawinfra/qbank/internal/agenttype"
	"github.com/clawinfra/qbank/internal/qstore"
	"github.com/clawinfra/qbank/internal/reward"
	"github.com/clawinfra/qbank/internal/state"
)

var (
	// ErrActionSpaceNotConfigured is returned by SelectAction before
	// an action space has been set.
	ErrActionSpaceNotConfigured = errors.New("qlearn: action space not configured")

	// ErrNoPendingAction is returned by Update when no SelectAction
	// preceded it.
	ErrNoPendingAction = errors.New("qlearn: no pending action")

	// ErrUpdatePending is returned by SelectAction when a previous
	// selection has not been resolved by Update yet.
	ErrUpdatePending = errors.New("qlearn: update pending for previous action")

	// ErrUnknownAction is returned by Update for an action hash that
	// is not in the configured space.
	ErrUnknownAction = errors.New("qlearn: unknown action")
)

// Config holds the per-instance exploration parameters.
type Config struct {
	LearningRate    float64 `json:"learningRate"`    // alpha, (0,1]
	DiscountFactor  float64 `json:"discountFactor"`  // gamma, (0,1]
	ExplorationRate float64 `json:"explorationRate"` // initial epsilon, [0,1]
	EpsilonDecay    float64 `json:"epsilonDecay"`    // per-episode multiplier, (0,1]
	MinEpsilon      float64 `json:"minEpsilon"`      // exploration floor, [0,1]

	// RandSeed seeds the exploration RNG; zero means time-seeded.
	RandSeed int64 `json:"randSeed,omitempty"`
}

// DefaultConfig returns the standard exploration schedule.
func DefaultConfig() Config {
	return Config{
		LearningRate:    0.1,
		DiscountFactor:  0.9,
		ExplorationRate: 0.3,
		EpsilonDecay:    0.995,
		MinEpsilon:      0.05,
	}
}

// Validate checks every parameter's allowed range.
func (c Config) Validate() error {
	check := func(name string, v, lo, hi float64, loOpen bool) error {
		if v > hi || v < lo || (loOpen && v == lo) {
			return fmt.Errorf("qlearn: %s = %v out of range", name, v)
		}
		return nil
	}
	if err := check("learningRate", c.LearningRate, 0, 1, true); err != nil {
		return err
	}
	if err := check("discountFactor", c.DiscountFactor, 0, 1, true); err != nil {
		return err
	}
	if err := check("explorationRate", c.ExplorationRate, 0, 1, false); err != nil {
		return err
	}
	if err := check("epsilonDecay", c.EpsilonDecay, 0, 1, true); err != nil {
		return err
	}
	return check("minEpsilon", c.MinEpsilon, 0, 1, false)
}

// Statistics is a snapshot of one instance's local counters. None of
// this is shared state; the shared learning lives in the store.
type Statistics struct {
	InstanceID  string              `json:"instance_id"`
	AgentType   agenttype.AgentType `json:"agent_type"`
	Episodes    uint64              `json:"episodes"`
	Epsilon     float64             `json:"epsilon"`
	RewardCount uint64              `json:"reward_count"`
	TotalReward float64             `json:"total_reward"`
	AvgReward   float64             `json:"avg_reward"`
	MinReward   float64             `json:"min_reward"`
	MaxReward   float64             `json:"max_reward"`
	LastReward  float64             `json:"last_reward"`
}

type pendingAction struct {
	stateHash string
	action    Action
}

// Store is the slice of the persistence layer the learning service
// needs. *qstore.Store satisfies it; tests may substitute their own.
type Store interface {
	StateValues(ctx context.Context, at agenttype.AgentType, stateHash string) (map[string]qstore.Entry, error)
	ApplyBellman(ctx context.Context, key qstore.Key, rewardValue float64, nextStateHash string, done bool, alpha, gamma float64) (qstore.Entry, error)
}

// Service is one learning instance. Sibling instances of the same
// agent type hold their own Service; they interact only through the
// shared store. Safe for concurrent use, though the select/update
// protocol is inherently sequential per instance.
type Service struct {
	id        string
	agentType agenttype.AgentType
	store     Store
	encoder   *state.Encoder
	calc      *reward.Calculator
	cfg       Config
	logger    *slog.Logger

	mu      sync.Mutex
	space   *ActionSpace
	epsilon float64
	pending *pendingAction
	rng     *rand.Rand

	episodes    uint64
	rewardCount uint64
	totalReward float64
	minReward   float64
	maxReward   float64
	lastReward  float64
}

// New constructs a learning service for one agent type. The agent
// type is validated here; the config must pass Validate.
func New(at agenttype.AgentType, store Store, cfg Config, logger *slog.Logger) (*Service, error) {
	enc, err := state.NewEncoder(at)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("qlearn: store required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Service{
		id:        uuid.NewString(),
		agentType: at,
		store:     store,
		encoder:   enc,
		calc:      reward.NewCalculator(reward.Weights{}),
		cfg:       cfg,
		logger:    logger.With("component", "qlearn", "agentType", at),
		epsilon:   cfg.ExplorationRate,
		rng:       rand.New(rand.NewSource(seed)),
		minReward: math.Inf(1),
		maxReward: math.Inf(-1),
	}
	return s, nil
}

// InstanceID returns this instance's UUID.
func (s *Service) InstanceID() string { return s.id }

// AgentType returns the agent type this instance learns for.
func (s *Service) AgentType() agenttype.AgentType { return s.agentType }

// SetRewardWeights replaces the reward calculator's weights.
func (s *Service) SetRewardWeights(w reward.Weights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calc = reward.NewCalculator(w)
}

// SetActionSpace installs the action space. Must be called before
// SelectAction; the space's agent type must match the service's.
func (s *Service) SetActionSpace(sp *ActionSpace) error {
	if sp == nil || sp.Len() == 0 {
		return ErrEmptyActionSpace
	}
	if sp.AgentType() != s.agentType {
		return fmt.Errorf("qlearn: action space for %s installed on %s service", sp.AgentType(), s.agentType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.space = sp
	return nil
}

// UseDefaultActionSpace installs the built-in space for the
// service's agent type.
func (s *Service) UseDefaultActionSpace() error {
	sp, err := DefaultActionSpace(s.agentType)
	if err != nil {
		return err
	}
	return s.SetActionSpace(sp)
}

// EncodeState hashes a task context into a state key. Pure; delegates
// to the state encoder.
func (s *Service) EncodeState(ctx map[string]any) (string, state.Features) {
	return s.encoder.Encode(ctx)
}

// CalculateReward scores a task result. Pure; delegates to the reward
// calculator.
func (s *Service) CalculateReward(result map[string]any) float64 {
	s.mu.Lock()
	calc := s.calc
	s.mu.Unlock()
	return calc.Calculate(result)
}

// SelectAction picks an action for a state under the epsilon-greedy
// policy: explore uniformly with probability epsilon, otherwise
// exploit the highest stored Q-value with first-registered tie-break.
// The chosen (state, action) pair is recorded as pending; Update must
// resolve it before the next selection.
func (s *Service) SelectAction(ctx context.Context, stateHash string) (Action, error) {
	s.mu.Lock()
	if s.space == nil {
		s.mu.Unlock()
		return Action{}, ErrActionSpaceNotConfigured
	}
	if s.pending != nil {
		s.mu.Unlock()
		return Action{}, fmt.Errorf("%w: %s", ErrUpdatePending, s.pending.action.Name)
	}
	space := s.space
	explore := s.rng.Float64() < s.epsilon
	var exploreIdx int
	if explore {
		exploreIdx = s.rng.Intn(space.Len())
	}
	s.mu.Unlock()

	var chosen Action
	if explore {
		chosen = space.actions[exploreIdx]
	} else {
		values, err := s.store.StateValues(ctx, s.agentType, stateHash)
		if err != nil {
			return Action{}, fmt.Errorf("qlearn: select action: %w", err)
		}
		// Registration order plus strict inequality gives the
		// first-registered action the tie.
		chosen = space.actions[0]
		best := values[chosen.Hash].Value
		for _, a := range space.actions[1:] {
			if v := values[a.Hash].Value; v > best {
				chosen, best = a, v
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return Action{}, fmt.Errorf("%w: %s", ErrUpdatePending, s.pending.action.Name)
	}
	s.pending = &pendingAction{stateHash: stateHash, action: chosen}

	s.logger.Debug("action selected",
		"state", stateHash,
		"action", chosen.Name,
		"explore", explore,
		"epsilon", s.epsilon)
	return chosen, nil
}

// Update applies the Bellman rule for the pending action and clears
// it. The read-modify-write against the store is a single atomic
// unit, so concurrent sibling instances never lose each other's
// updates.
func (s *Service) Update(ctx context.Context, stateHash, actionHash string, rewardValue float64, nextStateHash string, done bool) (qstore.Entry, error) {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return qstore.Entry{}, ErrNoPendingAction
	}
	space := s.space
	if _, ok := space.ByHash(actionHash); !ok {
		s.mu.Unlock()
		return qstore.Entry{}, fmt.Errorf("%w: %s", ErrUnknownAction, actionHash)
	}
	if s.pending.stateHash != stateHash || s.pending.action.Hash != actionHash {
		s.logger.Debug("update does not match pending selection",
			"pendingState", s.pending.stateHash,
			"updateState", stateHash)
	}
	s.mu.Unlock()

	key := qstore.Key{AgentType: s.agentType, StateHash: stateHash, ActionHash: actionHash}
	entry, err := s.store.ApplyBellman(ctx, key, rewardValue, nextStateHash, done, s.cfg.LearningRate, s.cfg.DiscountFactor)
	if err != nil {
		// Learning for this step is skipped, not silently dropped:
		// the pending action stays set so the caller can retry or
		// abandon explicitly.
		return qstore.Entry{}, fmt.Errorf("qlearn: update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.rewardCount++
	s.totalReward += rewardValue
	s.lastReward = rewardValue
	if rewardValue < s.minReward {
		s.minReward = rewardValue
	}
	if rewardValue > s.maxReward {
		s.maxReward = rewardValue
	}

	s.logger.Debug("q-value updated",
		"state", stateHash,
		"reward", rewardValue,
		"value", entry.Value,
		"visits", entry.VisitCount,
		"done", done)
	return entry, nil
}

// AbandonPending drops the pending selection without an update. For
// callers whose task never produced an outcome.
func (s *Service) AbandonPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// DecayEpsilon multiplies the exploration rate by the decay factor,
// floored at MinEpsilon, and counts a completed episode.
func (s *Service) DecayEpsilon() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epsilon *= s.cfg.EpsilonDecay
	if s.epsilon < s.cfg.MinEpsilon {
		s.epsilon = s.cfg.MinEpsilon
	}
	s.episodes++
	return s.epsilon
}

// Epsilon returns the current exploration rate.
func (s *Service) Epsilon() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epsilon
}

// Statistics snapshots the instance-local counters.
func (s *Service) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Statistics{
		InstanceID:  s.id,
		AgentType:   s.agentType,
		Episodes:    s.episodes,
		Epsilon:     s.epsilon,
		RewardCount: s.rewardCount,
		TotalReward: s.totalReward,
		LastReward:  s.lastReward,
	}
	if s.rewardCount > 0 {
		st.AvgReward = s.totalReward / float64(s.rewardCount)
		st.MinReward = s.minReward
		st.MaxReward = s.maxReward
	}
	return st
}
