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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/poolswarm/go-poolswarm/protocol"
	"github.com/poolswarm/go-poolswarm/testpartitioning"
)

var (
	keyParticipantToHash = StateKey{Name: "participant_to_tx_hash", Kind: KindSubmissionMap}
	keyMostVotedHash     = StateKey{Name: "most_voted_tx_hash", Kind: KindString}
	keyParticipantToSig  = StateKey{Name: "participant_to_signature", Kind: KindSubmissionMap}
	keyParticipantToVote = StateKey{Name: "participant_to_votes", Kind: KindSubmissionMap}
	keyKeeper            = StateKey{Name: "most_voted_keeper_address", Kind: KindString}
	keyFinalHash         = StateKey{Name: "final_tx_hash", Kind: KindString}
)

var hashRoundDesc = RoundDescriptor{
	ID:            "tx_hash",
	Tag:           protocol.TxHashTag,
	Shape:         CollectSameUntilThreshold,
	CollectionKey: keyParticipantToHash,
	AgreedKey:     keyMostVotedHash,
}

func fourAgentState(t *testing.T, seed ...StateField) *PeriodState {
	st, err := MakePeriodState(agents(4), seed...)
	require.NoError(t, err)
	return st
}

func TestCollectSameRoundDone(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st := fourAgentState(t)
	r, err := MakeRound(hashRoundDesc, st, twoThirds)
	require.NoError(t, err)

	require.NoError(t, r.AddSubmission(hashPayload("agent_0", "0xabc")))
	require.NoError(t, r.AddSubmission(hashPayload("agent_3", "0xdef")))
	require.NoError(t, r.AddSubmission(hashPayload("agent_1", "0xabc")))

	_, _, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.False(t, decided)

	require.NoError(t, r.AddSubmission(hashPayload("agent_2", "0xabc")))
	next, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, Done, ev)

	agreed, err := next.String(keyMostVotedHash)
	require.NoError(t, err)
	require.Equal(t, "0xabc", agreed)

	// All four raw submissions are retained for audit, the disagreeing one
	// included.
	collection, err := next.Submissions(keyParticipantToHash)
	require.NoError(t, err)
	want := map[string]Payload{
		"agent_0": hashPayload("agent_0", "0xabc"),
		"agent_1": hashPayload("agent_1", "0xabc"),
		"agent_2": hashPayload("agent_2", "0xabc"),
		"agent_3": hashPayload("agent_3", "0xdef"),
	}
	require.Empty(t, cmp.Diff(want, collection))
}

func TestCollectSameRoundNoMajority(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st := fourAgentState(t)
	r, err := MakeRound(hashRoundDesc, st, twoThirds)
	require.NoError(t, err)

	require.NoError(t, r.AddSubmission(hashPayload("agent_0", "0x0")))
	require.NoError(t, r.AddSubmission(hashPayload("agent_1", "0x1")))
	require.NoError(t, r.AddSubmission(hashPayload("agent_2", "0x2")))

	// Leader at 1 with one slot left cannot reach 3 of 4: no point waiting
	// for the timeout.
	got, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, NoMajority, ev)
	require.Same(t, st, got)
}

func TestCollectDifferentRound(t *testing.T) {
	testpartitioning.PartitionTest(t)

	desc := RoundDescriptor{
		ID:            "signature",
		Tag:           protocol.SignatureTag,
		Shape:         CollectDifferentUntilThreshold,
		CollectionKey: keyParticipantToSig,
	}
	st := fourAgentState(t)
	r, err := MakeRound(desc, st, twoThirds)
	require.NoError(t, err)

	sig := func(who, s string) Payload {
		return Payload{Submitter: who, Tag: protocol.SignatureTag, Value: s}
	}
	require.NoError(t, r.AddSubmission(sig("agent_0", "sig-0")))
	require.NoError(t, r.AddSubmission(sig("agent_1", "sig-1")))
	_, _, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.False(t, decided)

	require.NoError(t, r.AddSubmission(sig("agent_2", "sig-2")))
	next, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, Done, ev)

	collection, err := next.Submissions(keyParticipantToSig)
	require.NoError(t, err)
	require.Len(t, collection, 3)
	require.Equal(t, "sig-1", collection["agent_1"].Value)
}

func TestOnlyKeeperSendsRound(t *testing.T) {
	testpartitioning.PartitionTest(t)

	desc := RoundDescriptor{
		ID:        "finalization",
		Tag:       protocol.FinalizationTag,
		Shape:     OnlyKeeperSends,
		KeeperKey: keyKeeper,
		ResultKey: keyFinalHash,
	}
	st := fourAgentState(t, Field(keyKeeper, "agent_2"))
	r, err := MakeRound(desc, st, twoThirds)
	require.NoError(t, err)
	require.Equal(t, "agent_2", r.Keeper())

	// Non-keeper submissions are rejected at collection time.
	err = r.AddSubmission(Payload{Submitter: "agent_1", Tag: protocol.FinalizationTag, Value: "0xfff"})
	var unauthorized *UnauthorizedSubmitterError
	require.ErrorAs(t, err, &unauthorized)

	_, _, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.False(t, decided)

	require.NoError(t, r.AddSubmission(Payload{Submitter: "agent_2", Tag: protocol.FinalizationTag, Value: "0xfinal"}))
	next, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, Done, ev)
	final, err := next.String(keyFinalHash)
	require.NoError(t, err)
	require.Equal(t, "0xfinal", final)
}

func TestOnlyKeeperSendsNeedsKeeperInState(t *testing.T) {
	testpartitioning.PartitionTest(t)

	desc := RoundDescriptor{
		ID:        "finalization",
		Tag:       protocol.FinalizationTag,
		Shape:     OnlyKeeperSends,
		KeeperKey: keyKeeper,
		ResultKey: keyFinalHash,
	}
	_, err := MakeRound(desc, fourAgentState(t), twoThirds)
	require.Error(t, err)
}

func votingDesc() RoundDescriptor {
	return RoundDescriptor{
		ID:            "transaction_valid_round",
		Tag:           protocol.ValidateTag,
		Shape:         Voting,
		CollectionKey: keyParticipantToVote,
	}
}

func votePayload(who string, v bool) Payload {
	return Payload{Submitter: who, Tag: protocol.ValidateTag, Value: v}
}

func TestVotingRoundPositive(t *testing.T) {
	testpartitioning.PartitionTest(t)

	r, err := MakeRound(votingDesc(), fourAgentState(t), twoThirds)
	require.NoError(t, err)
	require.NoError(t, r.AddSubmission(votePayload("agent_0", true)))
	require.NoError(t, r.AddSubmission(votePayload("agent_1", true)))
	require.NoError(t, r.AddSubmission(votePayload("agent_2", true)))

	next, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, Done, ev)
	collection, err := next.Submissions(keyParticipantToVote)
	require.NoError(t, err)
	require.Len(t, collection, 3)
}

func TestVotingRoundNegativeExit(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st := fourAgentState(t)
	r, err := MakeRound(votingDesc(), st, twoThirds)
	require.NoError(t, err)
	require.NoError(t, r.AddSubmission(votePayload("agent_0", false)))
	require.NoError(t, r.AddSubmission(votePayload("agent_1", false)))
	require.NoError(t, r.AddSubmission(votePayload("agent_2", false)))

	next, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, Exit, ev)
	// The exit path still produces a fresh snapshot, with nothing overlaid.
	require.Equal(t, st.Version()+1, next.Version())
}

func TestVotingRoundSplitNoMajority(t *testing.T) {
	testpartitioning.PartitionTest(t)

	st := fourAgentState(t)
	r, err := MakeRound(votingDesc(), st, twoThirds)
	require.NoError(t, err)
	require.NoError(t, r.AddSubmission(votePayload("agent_0", true)))
	require.NoError(t, r.AddSubmission(votePayload("agent_1", true)))
	require.NoError(t, r.AddSubmission(votePayload("agent_2", false)))
	require.NoError(t, r.AddSubmission(votePayload("agent_3", false)))

	got, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, NoMajority, ev)
	require.Same(t, st, got)
}

func TestVotingRoundRejectsNonBool(t *testing.T) {
	testpartitioning.PartitionTest(t)

	r, err := MakeRound(votingDesc(), fourAgentState(t), twoThirds)
	require.NoError(t, err)
	err = r.AddSubmission(Payload{Submitter: "agent_0", Tag: protocol.ValidateTag, Value: "yes"})
	var malformed *MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
}

func TestRoundRejectsWrongTag(t *testing.T) {
	testpartitioning.PartitionTest(t)

	r, err := MakeRound(hashRoundDesc, fourAgentState(t), twoThirds)
	require.NoError(t, err)
	err = r.AddSubmission(Payload{Submitter: "agent_0", Tag: protocol.SignatureTag, Value: "sig"})
	var malformed *MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, protocol.TxHashTag, malformed.Want)
}

func TestCollectSameFinishHook(t *testing.T) {
	testpartitioning.PartitionTest(t)

	custom := StateKey{Name: "custom", Kind: KindString}
	desc := hashRoundDesc
	desc.Finish = func(state *PeriodState, agreed Payload, collection map[string]Payload) (*PeriodState, Event, error) {
		st, err := state.Update(Field(custom, "finished:"+agreed.Value.(string)))
		if err != nil {
			return nil, eventNone, err
		}
		return st, Wait, nil
	}

	r, err := MakeRound(desc, fourAgentState(t), twoThirds)
	require.NoError(t, err)
	for _, id := range agents(3) {
		require.NoError(t, r.AddSubmission(hashPayload(id, "0xabc")))
	}
	next, ev, decided, err := r.EndBlock()
	require.NoError(t, err)
	require.True(t, decided)
	require.Equal(t, Wait, ev)
	v, err := next.String(custom)
	require.NoError(t, err)
	require.Equal(t, "finished:0xabc", v)
}
