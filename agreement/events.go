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

import "fmt"

// An Event is the outcome tag of a round's end-of-round evaluation, or of an
// externally injected timeout. The driver resolves the next round by looking
// up (current round, event) in the transition table.
type Event uint8

const (
	// eventNone is the zero Event; it never appears in a transition table.
	eventNone Event = iota

	// Done indicates the round reached its success condition.
	Done

	// Exit indicates a voting round accumulated enough negative votes to
	// make success impossible.
	Exit

	// RoundTimeout is injected by the timeout watcher when a round produced
	// no decision within its configured duration.
	RoundTimeout

	// NoMajority indicates agreement became mathematically unreachable given
	// the remaining potential submitters.
	NoMajority

	// ResetTimeout bounds the pause taken by the reset-and-pause round.
	ResetTimeout

	// Wait indicates the agreed strategy was to hold off rather than act.
	Wait
)

func (e Event) String() string {
	switch e {
	case eventNone:
		return "none"
	case Done:
		return "done"
	case Exit:
		return "exit"
	case RoundTimeout:
		return "round_timeout"
	case NoMajority:
		return "no_majority"
	case ResetTimeout:
		return "reset_timeout"
	case Wait:
		return "wait"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}
