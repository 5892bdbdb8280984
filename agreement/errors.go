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

// UnauthorizedSubmitterError is returned when a submission arrives from an
// identity outside the round's participant set (or, for a keeper round, from
// anyone but the designated keeper). The submission is dropped; the round is
// unaffected.
type UnauthorizedSubmitterError struct {
	Round     RoundID
	Submitter string
}

func (e *UnauthorizedSubmitterError) Error() string {
	return fmt.Sprintf("round %s: submitter %s is not eligible", e.Round, e.Submitter)
}

// DuplicateSubmissionError is returned when an identity resubmits a
// conflicting value under collect-same semantics. The first submission is
// kept; the new one is dropped.
type DuplicateSubmissionError struct {
	Round     RoundID
	Submitter string
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("round %s: submitter %s already submitted a different value", e.Round, e.Submitter)
}

// MalformedPayloadError is returned when a submission does not carry the
// round's expected payload kind or shape.
type MalformedPayloadError struct {
	Round  RoundID
	Got    protocol.PayloadTag
	Want   protocol.PayloadTag
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("round %s: malformed %s payload: %s", e.Round, e.Got, e.Reason)
	}
	return fmt.Sprintf("round %s: payload kind %s does not match expected %s", e.Round, e.Got, e.Want)
}

// UnknownTransitionError indicates a missing transition-table entry. A
// well-formed table never produces it at runtime: table validation runs when
// the driver is constructed and fails fast instead.
type UnknownTransitionError struct {
	Round RoundID
	Event Event
}

func (e *UnknownTransitionError) Error() string {
	return fmt.Sprintf("no transition declared for round %s on event %s", e.Round, e.Event)
}

// MissingStateKeyError is returned by the strict state accessors when the
// named attribute was never written to the snapshot. This is distinct from an
// attribute set to an empty value, which reads back normally.
type MissingStateKeyError struct {
	Key StateKey
}

func (e *MissingStateKeyError) Error() string {
	return fmt.Sprintf("period state has no attribute %s", e.Key.Name)
}

// WrongStateKindError is returned when a value read from or written to the
// period state does not match the semantic type its key is registered with.
type WrongStateKindError struct {
	Key  StateKey
	Have string
}

func (e *WrongStateKindError) Error() string {
	return fmt.Sprintf("period state attribute %s holds %s, want %s", e.Key.Name, e.Have, e.Key.Kind)
}
