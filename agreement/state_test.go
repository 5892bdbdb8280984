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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/poolswarm/go-poolswarm/testpartitioning"
)

var keyAgreedHash = StateKey{Name: "agreed_hash", Kind: KindString}
var keyPeriod = StateKey{Name: "period_count", Kind: KindUint64}

func TestPeriodStateStrictGet(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st, err := MakePeriodState([]string{"agent_0", "agent_1"})
	require.NoError(t, err)

	_, err = st.String(keyAgreedHash)
	var missing *MissingStateKeyError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, keyAgreedHash, missing.Key)

	// An attribute set to its empty value reads back normally; only a never-
	// written attribute fails.
	st2, err := st.Update(Field(keyAgreedHash, ""))
	require.NoError(t, err)
	v, err := st2.String(keyAgreedHash)
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestPeriodStateKindMismatch(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st, err := MakePeriodState([]string{"agent_0"}, Field(keyPeriod, uint64(3)))
	require.NoError(t, err)

	// Writing a value of the wrong dynamic type fails fast.
	_, err = st.Update(Field(keyPeriod, "three"))
	var wrong *WrongStateKindError
	require.ErrorAs(t, err, &wrong)

	// Reading under a key registered with a different kind fails too.
	_, err = st.String(StateKey{Name: "period_count", Kind: KindString})
	require.ErrorAs(t, err, &wrong)
}

func TestPeriodStateParticipants(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st, err := MakePeriodState([]string{"b", "a", "c", "a"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, st.Participants())
	require.Equal(t, 3, st.NbParticipants())
}

func TestPeriodStateAppendOnly(t *testing.T) {
	testpartitioning.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		st, err := MakePeriodState([]string{"agent_0", "agent_1"})
		if err != nil {
			t.Fatal(err)
		}

		written := map[string]string{}
		steps := rapid.IntRange(1, 8).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			name := rapid.SampledFrom([]string{"k0", "k1", "k2", "k3"}).Draw(t, fmt.Sprintf("name%d", i))
			value := rapid.StringN(0, 8, -1).Draw(t, fmt.Sprintf("value%d", i))
			key := StateKey{Name: name, Kind: KindString}

			prev := st
			st, err = st.Update(Field(key, value))
			if err != nil {
				t.Fatal(err)
			}
			written[name] = value

			// Everything readable on the parent stays readable with the same
			// value on the child, unless this update overwrote it.
			for n, want := range written {
				got, err := st.String(StateKey{Name: n, Kind: KindString})
				if err != nil {
					t.Fatalf("key %s vanished: %v", n, err)
				}
				if got != want {
					t.Fatalf("key %s: got %q want %q", n, got, want)
				}
			}
			if st.Parent() != prev || st.Version() != prev.Version()+1 {
				t.Fatalf("snapshot chain broken at version %d", st.Version())
			}
		}
	})
}

func TestPeriodStateDigestStable(t *testing.T) {
	testpartitioning.PartitionTest(t)

	a, err := MakePeriodState([]string{"x", "y"},
		Field(keyAgreedHash, "0xabc"), Field(keyPeriod, uint64(1)))
	require.NoError(t, err)
	b, err := MakePeriodState([]string{"y", "x"},
		Field(keyPeriod, uint64(1)), Field(keyAgreedHash, "0xabc"))
	require.NoError(t, err)
	require.Equal(t, a.Digest(), b.Digest())

	c, err := a.Update(Field(keyAgreedHash, "0xdef"))
	require.NoError(t, err)
	require.NotEqual(t, a.Digest(), c.Digest())
}

func TestPeriodStateErrorTypes(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st, err := MakePeriodState([]string{"agent_0"})
	require.NoError(t, err)
	_, err = st.Uint64(keyPeriod)
	require.True(t, errors.As(err, new(*MissingStateKeyError)))
}
