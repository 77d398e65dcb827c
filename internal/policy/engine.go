package policy

import (
	"fmt"
	"time"
)

const rateWindow = 10 * time.Second

// Action is the class of domain operation being scored.
type Action int

const (
	ActionLogin Action = iota
	ActionRoomJoin
	ActionMessageSend
	ActionInvite
	ActionBan
)

func (a Action) String() string {
	switch a {
	case ActionLogin:
		return "login"
	case ActionRoomJoin:
		return "room-join"
	case ActionMessageSend:
		return "message-send"
	case ActionInvite:
		return "invite"
	case ActionBan:
		return "ban"
	}
	return "unknown"
}

// Event is one observed domain operation.
type Event struct {
	Action       Action
	ActorID      uint32
	ActorAddress string
	Target       string
	PayloadSize  int
	ActorExists  bool
	TargetExists bool
}

type DecisionType int

const (
	Allow DecisionType = iota
	SoftWarn
	Throttle
	Block
)

func (t DecisionType) String() string {
	switch t {
	case SoftWarn:
		return "soft-warn"
	case Throttle:
		return "throttle"
	case Block:
		return "block"
	}
	return "allow"
}

type Decision struct {
	Type      DecisionType
	RiskScore int
	Reason    string
}

// Config holds the engine's thresholds. In shadow mode decisions are
// published but never enforced.
type Config struct {
	Enabled           bool
	ShadowMode        bool
	SoftWarnThreshold int
	ThrottleThreshold int
	BlockThreshold    int
}

// Engine scores events with additive heuristics plus a sliding-window rate
// per (actor, address, action). It is not safe for concurrent use; callers
// serialize access.
type Engine struct {
	config Config
	now    func() time.Time

	recentActions map[string][]time.Time
}

func NewEngine(config Config) *Engine {
	return &Engine{
		config:        config,
		now:           time.Now,
		recentActions: make(map[string][]time.Time),
	}
}

func (e *Engine) Config() Config { return e.config }

func (e *Engine) Evaluate(event Event) Decision {
	if !e.config.Enabled {
		return Decision{Reason: "policy disabled"}
	}

	decision := Decision{RiskScore: e.riskScore(event)}

	switch {
	case decision.RiskScore >= e.config.BlockThreshold:
		decision.Type = Block
		decision.Reason = "risk exceeded block threshold"
	case decision.RiskScore >= e.config.ThrottleThreshold:
		decision.Type = Throttle
		decision.Reason = "risk exceeded throttle threshold"
	case decision.RiskScore >= e.config.SoftWarnThreshold:
		decision.Type = SoftWarn
		decision.Reason = "risk exceeded soft-warn threshold"
	default:
		decision.Type = Allow
		decision.Reason = "risk below thresholds"
	}

	return decision
}

func (e *Engine) riskScore(event Event) int {
	score := 0

	switch event.Action {
	case ActionLogin:
		score += 5
	case ActionRoomJoin:
		score += 10
	case ActionMessageSend:
		score += 15
	case ActionInvite:
		score += 20
	case ActionBan:
		score += 25
	}

	if !event.ActorExists {
		score += 30
	}
	if !event.TargetExists {
		score += 20
	}

	if event.PayloadSize > 500 {
		score += 20
	} else if event.PayloadSize > 200 {
		score += 10
	}

	if event.Target == "" {
		score += 10
	}

	recent := e.recentActionCount(event, e.now())
	if recent > 20 {
		score += 35
	} else if recent > 10 {
		score += 20
	} else if recent > 5 {
		score += 10
	}

	return score
}

func (e *Engine) recentActionCount(event Event, now time.Time) int {
	key := rateKey(event)
	queue := append(e.recentActions[key], now)

	cutoff := now.Add(-rateWindow)
	for len(queue) > 0 && queue[0].Before(cutoff) {
		queue = queue[1:]
	}

	e.recentActions[key] = queue
	return len(queue)
}

func rateKey(event Event) string {
	return fmt.Sprintf("%d|%s|%d", event.ActorID, event.ActorAddress, int(event.Action))
}
