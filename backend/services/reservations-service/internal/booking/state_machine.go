package booking

import (
	"fmt"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// Actor is the role requesting a transition.
type Actor string

const (
	ActorOwner    Actor = "owner"
	ActorOperator Actor = "operator"
)

// StatusNone is the pseudo status of a reservation that does not exist yet.
const StatusNone models.Status = ""

// Rule describes one permitted transition.
type Rule struct {
	From   models.Status
	To     models.Status
	Actors []Actor
	// Cutoff marks transitions that require the change cutoff to hold.
	Cutoff bool
}

func (r Rule) allows(actor Actor) bool {
	for _, a := range r.Actors {
		if a == actor {
			return true
		}
	}
	return false
}

type edge struct {
	from models.Status
	to   models.Status
}

// StateMachine holds the legal reservation status transitions.
type StateMachine struct {
	rules map[edge]Rule
}

// DefaultRules is the reservation lifecycle.
func DefaultRules() []Rule {
	return []Rule{
		{From: StatusNone, To: models.StatusPending, Actors: []Actor{ActorOwner}},
		{From: models.StatusPending, To: models.StatusActive, Actors: []Actor{ActorOperator}},
		{From: models.StatusActive, To: models.StatusCompleted, Actors: []Actor{ActorOperator}},
		{From: models.StatusPending, To: models.StatusCancelled, Actors: []Actor{ActorOwner, ActorOperator}, Cutoff: true},
		{From: models.StatusActive, To: models.StatusCancelled, Actors: []Actor{ActorOwner, ActorOperator}, Cutoff: true},
	}
}

// NewStateMachine builds a state machine from rules; with no rules it uses DefaultRules.
func NewStateMachine(rules ...Rule) *StateMachine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	m := &StateMachine{rules: make(map[edge]Rule, len(rules))}
	for _, r := range rules {
		m.rules[edge{from: r.From, to: r.To}] = r
	}
	return m
}

// Check returns the rule for from -> to when actor may trigger it, or an
// ErrInvalidTransition describing why not.
func (m *StateMachine) Check(from, to models.Status, actor Actor) (Rule, error) {
	if from.Terminal() {
		return Rule{}, fmt.Errorf("%w: reservation is already %s", ErrInvalidTransition, from)
	}
	rule, ok := m.rules[edge{from: from, to: to}]
	if !ok {
		return Rule{}, fmt.Errorf("%w: cannot move reservation from %s to %s", ErrInvalidTransition, describe(from), to)
	}
	if !rule.allows(actor) {
		return Rule{}, fmt.Errorf("%w: %s may not move reservation from %s to %s", ErrInvalidTransition, actor, describe(from), to)
	}
	return rule, nil
}

// Can reports whether actor may move a reservation from -> to.
func (m *StateMachine) Can(from, to models.Status, actor Actor) bool {
	_, err := m.Check(from, to, actor)
	return err == nil
}

func describe(s models.Status) string {
	if s == StatusNone {
		return "new"
	}
	return string(s)
}
