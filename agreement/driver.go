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
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/poolswarm/go-poolswarm/logging"
)

// A Transition declares one edge of the state machine: round From moves to
// round To when event On is processed.
type Transition struct {
	From RoundID
	On   Event
	To   RoundID
}

// A TransitionTable is the static mapping (round, event) -> next round.
type TransitionTable map[RoundID]map[Event]RoundID

// MakeTransitionTable builds a table from edge declarations. Declaring two
// edges for the same (round, event) pair is rejected: the source-of-truth
// for this machine is replicated on every participant, and a silently
// overwritten edge would be a configuration bug no replica could detect at
// runtime.
func MakeTransitionTable(decls []Transition) (TransitionTable, error) {
	table := make(TransitionTable)
	for _, d := range decls {
		if _, ok := table[d.From][d.On]; ok {
			return nil, fmt.Errorf("transition table: duplicate edge for round %s on event %s", d.From, d.On)
		}
		if table[d.From] == nil {
			table[d.From] = make(map[Event]RoundID)
		}
		table[d.From][d.On] = d.To
	}
	return table, nil
}

// An AppSpec is the static declaration of one application: its round
// catalog, its transition table, the initial round, and the per-event
// timeout durations.
type AppSpec struct {
	InitialRound RoundID
	Rounds       map[RoundID]RoundDescriptor
	Table        TransitionTable
	Timeouts     map[Event]time.Duration
}

// Validate checks the spec is well formed: every edge endpoint is declared
// in the catalog, and every round reachable from the initial round has edges
// for its declared timeout event and for NoMajority, so the machine can
// always make progress out of any round. It runs at driver construction;
// a failure here is a configuration error, not a runtime condition.
func (s AppSpec) Validate() error {
	if _, ok := s.Rounds[s.InitialRound]; !ok {
		return fmt.Errorf("app spec: initial round %s is not in the catalog", s.InitialRound)
	}
	for from, edges := range s.Table {
		if _, ok := s.Rounds[from]; !ok {
			return fmt.Errorf("app spec: transition source %s is not in the catalog", from)
		}
		for ev, to := range edges {
			if _, ok := s.Rounds[to]; !ok {
				return fmt.Errorf("app spec: transition %s --%s--> %s targets an undeclared round", from, ev, to)
			}
		}
	}
	for _, id := range s.reachable() {
		desc := s.Rounds[id]
		timeoutEv := desc.DeclaredTimeoutEvent()
		if _, ok := s.Table[id][timeoutEv]; !ok {
			return fmt.Errorf("app spec: reachable round %s has no edge for its timeout event %s", id, timeoutEv)
		}
		if _, ok := s.Table[id][NoMajority]; !ok {
			return fmt.Errorf("app spec: reachable round %s has no edge for %s", id, NoMajority)
		}
		if _, ok := s.Timeouts[timeoutEv]; !ok {
			return fmt.Errorf("app spec: no timeout duration configured for event %s of round %s", timeoutEv, id)
		}
	}
	return nil
}

// reachable returns the rounds reachable from the initial round, in a
// deterministic order.
func (s AppSpec) reachable() []RoundID {
	seen := map[RoundID]bool{s.InitialRound: true}
	queue := []RoundID{s.InitialRound}
	var out []RoundID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		// Walk edges in event order to keep traversal deterministic.
		for ev := Done; ev <= Wait; ev++ {
			if to, ok := s.Table[id][ev]; ok && !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return out
}

// The Driver owns the active round and performs round replacement. It is
// the only component that processes events: end-of-round decisions from the
// synchronization checkpoint and timeouts injected by an external watcher
// both funnel into processEvent under the same lock, which serializes them
// against submission ingestion and guarantees exactly one terminal event per
// round.
type Driver struct {
	mu   deadlock.Mutex
	spec AppSpec

	threshold Fraction
	log       logging.Logger

	current *Round
	seq     uint64 // bumps on every transition; stale seq marks a superseded round
}

// MakeDriver validates the spec and enters the initial round over the seed
// state.
func MakeDriver(spec AppSpec, threshold Fraction, seed *PeriodState, log logging.Logger) (*Driver, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if threshold.Denominator == 0 || threshold.Numerator >= threshold.Denominator {
		return nil, fmt.Errorf("driver: threshold %d/%d is not a proper fraction", threshold.Numerator, threshold.Denominator)
	}
	initial, err := MakeRound(spec.Rounds[spec.InitialRound], seed, threshold)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		spec:      spec,
		threshold: threshold,
		log:       log,
		current:   initial,
		seq:       1,
	}
	d.log.Infof("agreement: entering initial round %s", initial.ID())
	return d, nil
}

// CurrentRound returns the active round.
func (d *Driver) CurrentRound() *Round {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Seq returns the sequence number of the active round. Delivery handlers and
// the timeout watcher capture it so that their work can be discarded once
// the round is superseded.
func (d *Driver) Seq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Deliver routes one inbound submission to the round identified by seq.
// A submission for a superseded round is ignored, not an error: the machine
// moved on. Recoverable rejections (unauthorized, duplicate, malformed) are
// returned to the caller and leave the round unaffected.
func (d *Driver) Deliver(seq uint64, p Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		d.log.Debugf("agreement: ignoring late submission from %s for superseded round seq %d", p.Submitter, seq)
		return nil
	}
	return d.current.AddSubmission(p)
}

// EndBlock is the synchronization checkpoint: it asks the active round for
// an end-of-round decision and, if one is produced, processes the resulting
// event. It returns the event processed, or (eventNone, false) when the
// round has not decided yet.
func (d *Driver) EndBlock() (Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ev, decided, err := d.current.EndBlock()
	if err != nil {
		return eventNone, false, err
	}
	if !decided {
		return eventNone, false, nil
	}
	if err := d.processEventLocked(ev, st); err != nil {
		return eventNone, false, err
	}
	return ev, true, nil
}

// ProcessEvent processes an externally produced event with the given state.
// An injected timeout is treated identically to any other event: one table
// lookup.
func (d *Driver) ProcessEvent(ev Event, state *PeriodState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processEventLocked(ev, state)
}

// ExpireRound injects the timeout event for the round identified by seq,
// keeping its state unchanged. If the round was already concluded by a
// success event, the expiry is stale and dropped: a round sees at most one
// terminal event.
func (d *Driver) ExpireRound(seq uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		d.log.Debugf("agreement: dropping stale expiry for round seq %d", seq)
		return nil
	}
	return d.processEventLocked(d.current.Descriptor().DeclaredTimeoutEvent(), d.current.State())
}

// TimeoutDuration returns the configured duration for a timeout event.
func (d *Driver) TimeoutDuration(ev Event) (time.Duration, bool) {
	dur, ok := d.spec.Timeouts[ev]
	return dur, ok
}

func (d *Driver) processEventLocked(ev Event, state *PeriodState) error {
	from := d.current.ID()
	to, ok := d.spec.Table[from][ev]
	if !ok {
		return &UnknownTransitionError{Round: from, Event: ev}
	}
	next, err := MakeRound(d.spec.Rounds[to], state, d.threshold)
	if err != nil {
		return err
	}
	d.current = next
	d.seq++
	d.log.WithFields(logging.Fields{
		"from":  string(from),
		"event": ev.String(),
		"to":    string(to),
		"state": state.Version(),
	}).Info("agreement: round transition")
	return nil
}
