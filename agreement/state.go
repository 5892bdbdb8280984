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
	"crypto/sha512"
	"fmt"
	"sort"

	"github.com/poolswarm/go-poolswarm/protocol"
)

// StateKind pins the dynamic type a state attribute may hold.
type StateKind uint8

// The semantic types an attribute may be registered with.
const (
	KindString StateKind = iota
	KindUint64
	KindBool
	KindBytes
	KindStringSlice
	KindJSONMap
	KindSubmissionMap
)

func (k StateKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindUint64:
		return "uint64"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindStringSlice:
		return "[]string"
	case KindJSONMap:
		return "map[string]interface{}"
	case KindSubmissionMap:
		return "map[string]Payload"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// A StateKey names one attribute of the period state and pins its semantic
// type. Keys are declared once, as package-level values in the application
// catalog; ad-hoc string lookups are not part of the API.
type StateKey struct {
	Name string
	Kind StateKind
}

// A StateField pairs a key with the value to write under it.
type StateField struct {
	Key   StateKey
	Value interface{}
}

// Field builds a StateField.
func Field(key StateKey, value interface{}) StateField {
	return StateField{Key: key, Value: value}
}

func checkKind(key StateKey, value interface{}) error {
	ok := false
	switch key.Kind {
	case KindString:
		_, ok = value.(string)
	case KindUint64:
		_, ok = value.(uint64)
	case KindBool:
		_, ok = value.(bool)
	case KindBytes:
		_, ok = value.([]byte)
	case KindStringSlice:
		_, ok = value.([]string)
	case KindJSONMap:
		_, ok = value.(map[string]interface{})
	case KindSubmissionMap:
		_, ok = value.(map[string]Payload)
	}
	if !ok {
		return &WrongStateKindError{Key: key, Have: fmt.Sprintf("%T", value)}
	}
	return nil
}

// A PeriodState is one immutable snapshot of the attributes the participants
// have agreed on so far. Updates never mutate a snapshot in place: they
// produce a new snapshot holding a copy of the previous attributes with the
// named fields overlaid, chained to its parent for replay and audit.
type PeriodState struct {
	version      uint64
	parent       *PeriodState
	participants []string
	attrs        map[string]interface{}
	kinds        map[string]StateKind
}

// MakePeriodState creates the seed snapshot for a period. The participant
// set is deduplicated and sorted so that every replica derives the same
// ordering.
func MakePeriodState(participants []string, seed ...StateField) (*PeriodState, error) {
	seen := make(map[string]bool, len(participants))
	sorted := make([]string, 0, len(participants))
	for _, p := range participants {
		if !seen[p] {
			seen[p] = true
			sorted = append(sorted, p)
		}
	}
	sort.Strings(sorted)

	s := &PeriodState{
		version:      0,
		participants: sorted,
		attrs:        make(map[string]interface{}, len(seed)),
		kinds:        make(map[string]StateKind, len(seed)),
	}
	for _, f := range seed {
		if err := checkKind(f.Key, f.Value); err != nil {
			return nil, err
		}
		s.attrs[f.Key.Name] = f.Value
		s.kinds[f.Key.Name] = f.Key.Kind
	}
	return s, nil
}

// Update derives a new snapshot from s with the given fields overlaid.
// s itself is left untouched.
func (s *PeriodState) Update(fields ...StateField) (*PeriodState, error) {
	next := &PeriodState{
		version:      s.version + 1,
		parent:       s,
		participants: s.participants,
		attrs:        make(map[string]interface{}, len(s.attrs)+len(fields)),
		kinds:        make(map[string]StateKind, len(s.kinds)+len(fields)),
	}
	for name, v := range s.attrs {
		next.attrs[name] = v
		next.kinds[name] = s.kinds[name]
	}
	for _, f := range fields {
		if err := checkKind(f.Key, f.Value); err != nil {
			return nil, err
		}
		next.attrs[f.Key.Name] = f.Value
		next.kinds[f.Key.Name] = f.Key.Kind
	}
	return next, nil
}

// Version returns the snapshot's position in the chain, starting at 0 for
// the seed snapshot.
func (s *PeriodState) Version() uint64 {
	return s.version
}

// Parent returns the snapshot this one was derived from, or nil for the seed.
func (s *PeriodState) Parent() *PeriodState {
	return s.parent
}

// Participants returns the sorted participant set.
func (s *PeriodState) Participants() []string {
	out := make([]string, len(s.participants))
	copy(out, s.participants)
	return out
}

// NbParticipants returns the participant count.
func (s *PeriodState) NbParticipants() int {
	return len(s.participants)
}

// Has reports whether the attribute was ever written.
func (s *PeriodState) Has(key StateKey) bool {
	_, ok := s.attrs[key.Name]
	return ok
}

// Get is the strict accessor: it fails with MissingStateKeyError if the
// attribute was never written, and with WrongStateKindError if it was
// written under a different semantic type.
func (s *PeriodState) Get(key StateKey) (interface{}, error) {
	v, ok := s.attrs[key.Name]
	if !ok {
		return nil, &MissingStateKeyError{Key: key}
	}
	if s.kinds[key.Name] != key.Kind {
		return nil, &WrongStateKindError{Key: key, Have: s.kinds[key.Name].String()}
	}
	return v, nil
}

// String reads a KindString attribute.
func (s *PeriodState) String(key StateKey) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Uint64 reads a KindUint64 attribute.
func (s *PeriodState) Uint64(key StateKey) (uint64, error) {
	v, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// Bool reads a KindBool attribute.
func (s *PeriodState) Bool(key StateKey) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// JSONMap reads a KindJSONMap attribute.
func (s *PeriodState) JSONMap(key StateKey) (map[string]interface{}, error) {
	v, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	return v.(map[string]interface{}), nil
}

// Submissions reads a KindSubmissionMap attribute: the raw per-participant
// submissions a round recorded for audit.
func (s *PeriodState) Submissions(key StateKey) (map[string]Payload, error) {
	v, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	return v.(map[string]Payload), nil
}

// Digest returns a canonical digest of the snapshot. Two replicas holding
// the same agreed attributes compute the same digest, which makes divergence
// cheap to detect.
func (s *PeriodState) Digest() [sha512.Size256]byte {
	enc := protocol.EncodeReflect(struct {
		Version      uint64
		Participants []string
		Attrs        map[string]interface{}
	}{s.version, s.participants, s.attrs})
	return sha512.Sum512_256(enc)
}
