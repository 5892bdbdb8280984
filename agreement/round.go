// Copyright (C) 2022 Poolswarm, Inc.
// This file is part of go-poolswarm
//
// go-poolswarm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-poolswarm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-poolswarm.  If not, see <https://www.gnu.org/licenses/>.

package agreement

import (
	"fmt"

	"github.com/poolswarm/go-poolswarm/protocol"
)

// RoundID names a round type in the application catalog.
type RoundID string

// Shape selects one of the four end-of-round behaviors. The application
// catalog is data: a round type is a descriptor picking a shape, not a
// subtype.
type Shape uint8

const (
	// CollectSameUntilThreshold expects all participants to submit the same
	// logical value; the round succeeds once one value clears the threshold.
	CollectSameUntilThreshold Shape = iota

	// CollectDifferentUntilThreshold retains each participant's individual
	// value; the round succeeds once enough distinct submitters contributed.
	CollectDifferentUntilThreshold

	// OnlyKeeperSends expects a single submission from the designated
	// keeper; anyone else is rejected at collection time.
	OnlyKeeperSends

	// Voting collects bool votes; positive votes clearing the threshold
	// succeed, enough negative votes to preclude success exit.
	Voting
)

func (s Shape) String() string {
	switch s {
	case CollectSameUntilThreshold:
		return "collect_same"
	case CollectDifferentUntilThreshold:
		return "collect_different"
	case OnlyKeeperSends:
		return "only_keeper_sends"
	case Voting:
		return "voting"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// A FinishFunc customizes how a successful collect-same round derives its
// new state and success event. It receives the round's input state, the
// agreed payload and the full submission map, and returns the updated state
// plus the event to emit. Rounds without a FinishFunc get the default
// derivation: record the submission map under CollectionKey, the agreed
// value under AgreedKey, and emit Done.
type FinishFunc func(state *PeriodState, agreed Payload, collection map[string]Payload) (*PeriodState, Event, error)

// A RoundDescriptor declares one round type. The catalog of an application
// is a set of descriptors plus a transition table; the four shapes above are
// the only behavioral variants.
type RoundDescriptor struct {
	ID    RoundID
	Tag   protocol.PayloadTag
	Shape Shape

	// CollectionKey, when named, receives the raw per-participant
	// submissions on success, for audit.
	CollectionKey StateKey

	// AgreedKey, when named, receives the agreed value of a collect-same
	// round.
	AgreedKey StateKey

	// KeeperKey names the state attribute holding the designated keeper of
	// an OnlyKeeperSends round.
	KeeperKey StateKey

	// ResultKey receives the keeper's submitted value on success of an
	// OnlyKeeperSends round.
	ResultKey StateKey

	// TimeoutEvent is the timeout this round is bounded by; zero means
	// RoundTimeout.
	TimeoutEvent Event

	// ExitEvent is emitted by a Voting round when negative votes preclude
	// success; zero means Exit.
	ExitEvent Event

	// Finish optionally overrides the default success derivation of a
	// collect-same round.
	Finish FinishFunc
}

// DeclaredTimeoutEvent returns the timeout event bounding this round.
func (d RoundDescriptor) DeclaredTimeoutEvent() Event {
	if d.TimeoutEvent == eventNone {
		return RoundTimeout
	}
	return d.TimeoutEvent
}

func (d RoundDescriptor) exitEvent() Event {
	if d.ExitEvent == eventNone {
		return Exit
	}
	return d.ExitEvent
}

// A Round is one live phase of the state machine: a descriptor bound to the
// shared-state snapshot it was entered with, plus a collector for this
// phase's submissions. Rounds are transient; the driver discards them on
// transition.
type Round struct {
	desc      RoundDescriptor
	state     *PeriodState
	threshold Fraction
	collector *Collector
	keeper    string
}

// MakeRound instantiates a round over the given snapshot. For an
// OnlyKeeperSends round the keeper is resolved from the snapshot and becomes
// the only eligible submitter.
func MakeRound(desc RoundDescriptor, state *PeriodState, threshold Fraction) (*Round, error) {
	r := &Round{
		desc:      desc,
		state:     state,
		threshold: threshold,
	}
	if desc.Shape == OnlyKeeperSends {
		keeper, err := state.String(desc.KeeperKey)
		if err != nil {
			return nil, fmt.Errorf("round %s: resolving keeper: %w", desc.ID, err)
		}
		r.keeper = keeper
		r.collector = MakeCollector(desc.ID, []string{keeper}, ModeSame, threshold)
		return r, nil
	}
	mode := ModeSame
	if desc.Shape == CollectDifferentUntilThreshold {
		mode = ModeDifferent
	}
	r.collector = MakeCollector(desc.ID, state.Participants(), mode, threshold)
	return r, nil
}

// ID returns the round type identifier.
func (r *Round) ID() RoundID {
	return r.desc.ID
}

// Descriptor returns the round's declaration.
func (r *Round) Descriptor() RoundDescriptor {
	return r.desc
}

// State returns the snapshot the round was entered with.
func (r *Round) State() *PeriodState {
	return r.state
}

// Keeper returns the designated keeper of an OnlyKeeperSends round.
func (r *Round) Keeper() string {
	return r.keeper
}

// Submissions returns a copy of the submissions recorded so far.
func (r *Round) Submissions() map[string]Payload {
	return r.collector.Submissions()
}

// AddSubmission validates a submission against the round's expected payload
// kind and records it. Recoverable rejections (unauthorized, duplicate,
// malformed) come back as typed errors; the round state is unaffected by a
// rejection.
func (r *Round) AddSubmission(p Payload) error {
	if p.Tag != r.desc.Tag {
		return &MalformedPayloadError{Round: r.desc.ID, Got: p.Tag, Want: r.desc.Tag}
	}
	if r.desc.Shape == Voting {
		if _, ok := p.Value.(bool); !ok {
			return &MalformedPayloadError{
				Round:  r.desc.ID,
				Got:    p.Tag,
				Want:   r.desc.Tag,
				Reason: fmt.Sprintf("vote must be a bool, got %T", p.Value),
			}
		}
	}
	return r.collector.Add(p)
}

// EndBlock evaluates the end-of-round logic once per synchronization
// checkpoint. It is a pure function of the submissions recorded so far: no
// I/O, no new inputs. It returns (new state, event, true) once the round has
// decided, and (nil, eventNone, false) while more submissions or a timeout
// are needed. The returned error covers derivation failures only (a
// malformed agreed payload, a state update violating a key's kind) and is
// fatal for the period.
func (r *Round) EndBlock() (*PeriodState, Event, bool, error) {
	n := r.state.NbParticipants()
	switch r.desc.Shape {
	case CollectSameUntilThreshold:
		if r.collector.ThresholdReached(n) {
			agreed, _ := r.collector.MostCommonValue()
			return r.finishCollectSame(agreed)
		}
		if !r.collector.MajorityPossible(n) {
			return r.state, NoMajority, true, nil
		}
		return nil, eventNone, false, nil

	case CollectDifferentUntilThreshold:
		if r.collector.CollectionThresholdReached(n) {
			st, err := r.state.Update(Field(r.desc.CollectionKey, r.collector.Submissions()))
			if err != nil {
				return nil, eventNone, false, err
			}
			return st, Done, true, nil
		}
		if !r.collector.MajorityPossible(n) {
			return r.state, NoMajority, true, nil
		}
		return nil, eventNone, false, nil

	case OnlyKeeperSends:
		// A single expected submitter: no threshold arithmetic and no
		// no-majority short-circuit apply here.
		subs := r.collector.Submissions()
		sent, ok := subs[r.keeper]
		if !ok {
			return nil, eventNone, false, nil
		}
		st, err := r.state.Update(Field(r.desc.ResultKey, sent.Value))
		if err != nil {
			return nil, eventNone, false, err
		}
		return st, Done, true, nil

	case Voting:
		positive, negative := r.collector.VoteCounts()
		if r.threshold.Exceeded(positive, uint64(n)) {
			st, err := r.state.Update(Field(r.desc.CollectionKey, r.collector.Submissions()))
			if err != nil {
				return nil, eventNone, false, err
			}
			return st, Done, true, nil
		}
		// Negative votes clearing the threshold rule out positive success
		// outright; anything short of that falls through to the generic
		// no-majority check below.
		if r.threshold.Exceeded(negative, uint64(n)) {
			st, err := r.state.Update()
			if err != nil {
				return nil, eventNone, false, err
			}
			return st, r.desc.exitEvent(), true, nil
		}
		if !r.collector.MajorityPossible(n) {
			return r.state, NoMajority, true, nil
		}
		return nil, eventNone, false, nil
	}
	return nil, eventNone, false, fmt.Errorf("round %s: unknown shape %s", r.desc.ID, r.desc.Shape)
}

func (r *Round) finishCollectSame(agreed Payload) (*PeriodState, Event, bool, error) {
	if r.desc.Finish != nil {
		st, ev, err := r.desc.Finish(r.state, agreed, r.collector.Submissions())
		if err != nil {
			return nil, eventNone, false, err
		}
		return st, ev, true, nil
	}
	var fields []StateField
	if r.desc.CollectionKey.Name != "" {
		fields = append(fields, Field(r.desc.CollectionKey, r.collector.Submissions()))
	}
	if r.desc.AgreedKey.Name != "" {
		fields = append(fields, Field(r.desc.AgreedKey, agreed.Value))
	}
	st, err := r.state.Update(fields...)
	if err != nil {
		return nil, eventNone, false, err
	}
	return st, Done, true, nil
}
