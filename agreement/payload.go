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
	"github.com/poolswarm/go-poolswarm/protocol"
)

// A Payload is one participant's contribution to the current round: who
// submitted it, which payload kind it carries, and the value itself. The
// delivery mechanism authenticates the submitter before it reaches us; the
// Submitter field is trusted here.
type Payload struct {
	Submitter string
	Tag       protocol.PayloadTag

	// Value is the kind-dependent content: a hash string, a signature, a
	// bool vote, a JSON document. It must be encodable by the canonical
	// codec, since its encoding keys the collector tallies.
	Value interface{}
}

// digest returns the canonical encoding of the payload value, used to
// compare values for equality across submitters. Insertion order of digests
// breaks ties deterministically, so replicas that process submissions in the
// same order agree on the most common value.
func (p Payload) digest() string {
	return string(protocol.EncodeReflect(p.Value))
}
