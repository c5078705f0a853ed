package puzzle

import (
	"strconv"
	"strings"

	"puzzlechain/core/events"
	"puzzlechain/core/types"
)

const (
	// EventTypeInstantiated is emitted once when the contract is initialised.
	EventTypeInstantiated = "puzzle.instantiated"
	// EventTypeKeyphrasesAdded is emitted when admins add or overwrite puzzles.
	EventTypeKeyphrasesAdded = "puzzle.keyphrases.added"
	// EventTypeKeyphrasesRemoved is emitted when admins remove puzzles.
	EventTypeKeyphrasesRemoved = "puzzle.keyphrases.removed"
	// EventTypeSolved is emitted when a puzzle receives its winner. The winner
	// is deliberately absent; it is only visible through the winners query.
	EventTypeSolved = "puzzle.solved"
	// EventTypeAdminsUpdated is emitted after add_admins or remove_admins.
	EventTypeAdminsUpdated = "puzzle.admins.updated"
	// EventTypeViewingKeySet is emitted when an address sets or creates a key.
	EventTypeViewingKeySet = "puzzle.viewing_key.set"
	// EventTypePermitRevoked is emitted when an owner revokes a permit.
	EventTypePermitRevoked = "puzzle.permit.revoked"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// InstantiatedEvent reports contract creation.
func InstantiatedEvent(chainID string, admins int, puzzles int) *types.Event {
	return &types.Event{
		Type: EventTypeInstantiated,
		Attributes: map[string]string{
			"chainId": chainID,
			"admins":  strconv.Itoa(admins),
			"puzzles": strconv.Itoa(puzzles),
		},
	}
}

// KeyphrasesAddedEvent lists the ids that were written.
func KeyphrasesAddedEvent(ids []string) *types.Event {
	return &types.Event{
		Type: EventTypeKeyphrasesAdded,
		Attributes: map[string]string{
			"puzzles": strings.Join(ids, ","),
		},
	}
}

// KeyphrasesRemovedEvent lists the ids that were deleted.
func KeyphrasesRemovedEvent(ids []string) *types.Event {
	return &types.Event{
		Type: EventTypeKeyphrasesRemoved,
		Attributes: map[string]string{
			"puzzles": strings.Join(ids, ","),
		},
	}
}

// SolvedEvent announces that puzzle has been solved.
func SolvedEvent(puzzle string) *types.Event {
	return &types.Event{
		Type: EventTypeSolved,
		Attributes: map[string]string{
			"puzzle": puzzle,
		},
	}
}

// AdminsUpdatedEvent reports the size of the admin set after a change.
func AdminsUpdatedEvent(count int) *types.Event {
	return &types.Event{
		Type: EventTypeAdminsUpdated,
		Attributes: map[string]string{
			"count": strconv.Itoa(count),
		},
	}
}

// ViewingKeySetEvent records that owner replaced its viewing key.
func ViewingKeySetEvent(owner string) *types.Event {
	return &types.Event{
		Type: EventTypeViewingKeySet,
		Attributes: map[string]string{
			"owner": owner,
		},
	}
}

// PermitRevokedEvent records a revocation by owner.
func PermitRevokedEvent(owner string) *types.Event {
	return &types.Event{
		Type: EventTypePermitRevoked,
		Attributes: map[string]string{
			"owner": owner,
		},
	}
}
