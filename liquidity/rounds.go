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

// Package liquidity declares the round catalog of the liquidity provision
// service: an indefinitely repeating cycle that evaluates a strategy, then
// runs the enter-pool, exit-pool and swap-back legs of it. Each leg agrees
// on a transaction hash, collects signatures, has a keeper send the
// transaction, and validates the result on chain. The catalog is data; the
// behavior lives in the agreement package.
package liquidity

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/poolswarm/go-poolswarm/agreement"
	"github.com/poolswarm/go-poolswarm/config"
	"github.com/poolswarm/go-poolswarm/logging"
	"github.com/poolswarm/go-poolswarm/protocol"
)

// The round types of the application.
const (
	ResetRoundID              agreement.RoundID = "reset"
	ResetAndPauseRoundID      agreement.RoundID = "reset_and_pause"
	StrategyEvaluationRoundID agreement.RoundID = "strategy_evaluation"

	EnterPoolTxHashRoundID       agreement.RoundID = "enter_pool_tx_hash"
	EnterPoolTxSignatureRoundID  agreement.RoundID = "enter_pool_tx_signature"
	EnterPoolTxSendRoundID       agreement.RoundID = "enter_pool_tx_send"
	EnterPoolTxValidationRoundID agreement.RoundID = "enter_pool_tx_validation"
	EnterPoolRandomnessRoundID   agreement.RoundID = "enter_pool_randomness"
	EnterPoolSelectKeeperRoundID agreement.RoundID = "enter_pool_select_keeper"

	ExitPoolTxHashRoundID       agreement.RoundID = "exit_pool_tx_hash"
	ExitPoolTxSignatureRoundID  agreement.RoundID = "exit_pool_tx_signature"
	ExitPoolTxSendRoundID       agreement.RoundID = "exit_pool_tx_send"
	ExitPoolTxValidationRoundID agreement.RoundID = "exit_pool_tx_validation"
	ExitPoolRandomnessRoundID   agreement.RoundID = "exit_pool_randomness"
	ExitPoolSelectKeeperRoundID agreement.RoundID = "exit_pool_select_keeper"

	SwapBackTxHashRoundID       agreement.RoundID = "swap_back_tx_hash"
	SwapBackTxSignatureRoundID  agreement.RoundID = "swap_back_tx_signature"
	SwapBackTxSendRoundID       agreement.RoundID = "swap_back_tx_send"
	SwapBackTxValidationRoundID agreement.RoundID = "swap_back_tx_validation"
	SwapBackRandomnessRoundID   agreement.RoundID = "swap_back_randomness"
	SwapBackSelectKeeperRoundID agreement.RoundID = "swap_back_select_keeper"
)

// finishTxHash splits the agreed {tx_hash, tx_data} document into its two
// state attributes, alongside the raw submission map.
func finishTxHash(state *agreement.PeriodState, agreed agreement.Payload, collection map[string]agreement.Payload) (*agreement.PeriodState, agreement.Event, error) {
	enc, ok := agreed.Value.(string)
	if !ok {
		return nil, 0, fmt.Errorf("tx hash round: agreed value is %T, want string", agreed.Value)
	}
	doc, err := DecodeTxHashDocument(enc)
	if err != nil {
		return nil, 0, err
	}
	st, err := state.Update(
		agreement.Field(KeyParticipantToTxHash, collection),
		agreement.Field(KeyMostVotedTxHash, doc.TxHash),
		agreement.Field(KeyMostVotedTxData, doc.TxData),
	)
	if err != nil {
		return nil, 0, err
	}
	return st, agreement.Done, nil
}

// finishStrategy records the agreed strategy and decides whether the period
// proceeds to the enter-pool leg or waits this one out.
func finishStrategy(state *agreement.PeriodState, agreed agreement.Payload, collection map[string]agreement.Payload) (*agreement.PeriodState, agreement.Event, error) {
	enc, ok := agreed.Value.(string)
	if !ok {
		return nil, 0, fmt.Errorf("strategy round: agreed value is %T, want string", agreed.Value)
	}
	strategy, err := DecodeStrategy(enc)
	if err != nil {
		return nil, 0, err
	}
	st, err := state.Update(
		agreement.Field(KeyParticipantToStrategy, collection),
		agreement.Field(KeyMostVotedStrategy, enc),
	)
	if err != nil {
		return nil, 0, err
	}
	if strategy.Action == StrategyGo {
		return st, agreement.Done, nil
	}
	return st, agreement.Wait, nil
}

func txHashRound(id agreement.RoundID) agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:            id,
		Tag:           protocol.TxHashTag,
		Shape:         agreement.CollectSameUntilThreshold,
		CollectionKey: KeyParticipantToTxHash,
		Finish:        finishTxHash,
	}
}

func signatureRound(id agreement.RoundID) agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:            id,
		Tag:           protocol.SignatureTag,
		Shape:         agreement.CollectDifferentUntilThreshold,
		CollectionKey: KeyParticipantToSignature,
	}
}

func sendRound(id agreement.RoundID) agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:        id,
		Tag:       protocol.FinalizationTag,
		Shape:     agreement.OnlyKeeperSends,
		KeeperKey: KeyMostVotedKeeperAddress,
		ResultKey: KeyFinalTxHash,
	}
}

func validationRound(id agreement.RoundID) agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:            id,
		Tag:           protocol.ValidateTag,
		Shape:         agreement.Voting,
		CollectionKey: KeyParticipantToVotes,
		ExitEvent:     agreement.Exit,
	}
}

func randomnessRound(id agreement.RoundID) agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:            id,
		Tag:           protocol.RandomnessTag,
		Shape:         agreement.CollectSameUntilThreshold,
		CollectionKey: KeyParticipantToRandomness,
		AgreedKey:     KeyMostVotedRandomness,
	}
}

func selectKeeperRound(id agreement.RoundID) agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:            id,
		Tag:           protocol.SelectKeeperTag,
		Shape:         agreement.CollectSameUntilThreshold,
		CollectionKey: KeyParticipantToSelection,
		AgreedKey:     KeyMostVotedKeeperAddress,
	}
}

func resetRound(id agreement.RoundID, timeoutEvent agreement.Event) agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:           id,
		Tag:          protocol.ResetTag,
		Shape:        agreement.CollectSameUntilThreshold,
		AgreedKey:    KeyPeriodCount,
		TimeoutEvent: timeoutEvent,
	}
}

func strategyRound() agreement.RoundDescriptor {
	return agreement.RoundDescriptor{
		ID:            StrategyEvaluationRoundID,
		Tag:           protocol.StrategyTag,
		Shape:         agreement.CollectSameUntilThreshold,
		CollectionKey: KeyParticipantToStrategy,
		Finish:        finishStrategy,
	}
}

// Rounds returns the round catalog.
func Rounds() map[agreement.RoundID]agreement.RoundDescriptor {
	catalog := []agreement.RoundDescriptor{
		resetRound(ResetRoundID, agreement.RoundTimeout),
		resetRound(ResetAndPauseRoundID, agreement.ResetTimeout),
		strategyRound(),

		txHashRound(EnterPoolTxHashRoundID),
		signatureRound(EnterPoolTxSignatureRoundID),
		sendRound(EnterPoolTxSendRoundID),
		validationRound(EnterPoolTxValidationRoundID),
		randomnessRound(EnterPoolRandomnessRoundID),
		selectKeeperRound(EnterPoolSelectKeeperRoundID),

		txHashRound(ExitPoolTxHashRoundID),
		signatureRound(ExitPoolTxSignatureRoundID),
		sendRound(ExitPoolTxSendRoundID),
		validationRound(ExitPoolTxValidationRoundID),
		randomnessRound(ExitPoolRandomnessRoundID),
		selectKeeperRound(ExitPoolSelectKeeperRoundID),

		txHashRound(SwapBackTxHashRoundID),
		signatureRound(SwapBackTxSignatureRoundID),
		sendRound(SwapBackTxSendRoundID),
		validationRound(SwapBackTxValidationRoundID),
		randomnessRound(SwapBackRandomnessRoundID),
		selectKeeperRound(SwapBackSelectKeeperRoundID),
	}
	out := make(map[agreement.RoundID]agreement.RoundDescriptor, len(catalog))
	for _, desc := range catalog {
		out[desc.ID] = desc
	}
	return out
}

// Transitions returns the edges of the application's cyclic state machine.
// Every round falls back to the reset round on no-majority; a validation
// round that times out re-randomizes the keeper instead, and one that votes
// the transaction down exits back to reset.
func Transitions() []agreement.Transition {
	edges := []agreement.Transition{
		{From: ResetRoundID, On: agreement.Done, To: StrategyEvaluationRoundID},
		{From: ResetRoundID, On: agreement.RoundTimeout, To: ResetRoundID},
		{From: ResetRoundID, On: agreement.NoMajority, To: ResetRoundID},

		{From: StrategyEvaluationRoundID, On: agreement.Done, To: EnterPoolTxHashRoundID},
		{From: StrategyEvaluationRoundID, On: agreement.Wait, To: ResetAndPauseRoundID},
		{From: StrategyEvaluationRoundID, On: agreement.RoundTimeout, To: ResetRoundID},
		{From: StrategyEvaluationRoundID, On: agreement.NoMajority, To: ResetRoundID},

		{From: EnterPoolTxValidationRoundID, On: agreement.Done, To: ResetAndPauseRoundID},
		{From: EnterPoolTxValidationRoundID, On: agreement.Exit, To: ResetRoundID},
		{From: EnterPoolTxValidationRoundID, On: agreement.RoundTimeout, To: EnterPoolRandomnessRoundID},
		{From: EnterPoolTxValidationRoundID, On: agreement.NoMajority, To: ResetRoundID},

		{From: EnterPoolSelectKeeperRoundID, On: agreement.Done, To: ExitPoolTxHashRoundID},

		{From: ExitPoolTxValidationRoundID, On: agreement.Done, To: SwapBackTxHashRoundID},
		{From: ExitPoolTxValidationRoundID, On: agreement.Exit, To: ResetRoundID},
		{From: ExitPoolTxValidationRoundID, On: agreement.RoundTimeout, To: ExitPoolRandomnessRoundID},
		{From: ExitPoolTxValidationRoundID, On: agreement.NoMajority, To: ResetRoundID},

		{From: ExitPoolSelectKeeperRoundID, On: agreement.Done, To: ExitPoolTxHashRoundID},

		{From: SwapBackTxValidationRoundID, On: agreement.Done, To: ResetAndPauseRoundID},
		{From: SwapBackTxValidationRoundID, On: agreement.Exit, To: ResetRoundID},
		{From: SwapBackTxValidationRoundID, On: agreement.RoundTimeout, To: SwapBackRandomnessRoundID},
		{From: SwapBackTxValidationRoundID, On: agreement.NoMajority, To: ResetRoundID},

		{From: ResetAndPauseRoundID, On: agreement.Done, To: StrategyEvaluationRoundID},
		{From: ResetAndPauseRoundID, On: agreement.ResetTimeout, To: ResetRoundID},
		{From: ResetAndPauseRoundID, On: agreement.NoMajority, To: ResetRoundID},
	}

	// The three transaction legs share their inner wiring.
	chain := func(from, to agreement.RoundID) {
		edges = append(edges,
			agreement.Transition{From: from, On: agreement.Done, To: to},
			agreement.Transition{From: from, On: agreement.RoundTimeout, To: ResetRoundID},
			agreement.Transition{From: from, On: agreement.NoMajority, To: ResetRoundID},
		)
	}
	chain(EnterPoolTxHashRoundID, EnterPoolTxSignatureRoundID)
	chain(EnterPoolTxSignatureRoundID, EnterPoolTxSendRoundID)
	chain(EnterPoolTxSendRoundID, EnterPoolTxValidationRoundID)
	chain(EnterPoolRandomnessRoundID, EnterPoolSelectKeeperRoundID)
	chain(ExitPoolTxHashRoundID, ExitPoolTxSignatureRoundID)
	chain(ExitPoolTxSignatureRoundID, ExitPoolTxSendRoundID)
	chain(ExitPoolTxSendRoundID, ExitPoolTxValidationRoundID)
	chain(ExitPoolRandomnessRoundID, ExitPoolSelectKeeperRoundID)
	chain(SwapBackTxHashRoundID, SwapBackTxSignatureRoundID)
	chain(SwapBackTxSignatureRoundID, SwapBackTxSendRoundID)
	chain(SwapBackTxSendRoundID, SwapBackTxValidationRoundID)
	chain(SwapBackRandomnessRoundID, SwapBackSelectKeeperRoundID)

	edges = append(edges,
		agreement.Transition{From: EnterPoolSelectKeeperRoundID, On: agreement.RoundTimeout, To: ResetRoundID},
		agreement.Transition{From: EnterPoolSelectKeeperRoundID, On: agreement.NoMajority, To: ResetRoundID},
		agreement.Transition{From: ExitPoolSelectKeeperRoundID, On: agreement.RoundTimeout, To: ResetRoundID},
		agreement.Transition{From: ExitPoolSelectKeeperRoundID, On: agreement.NoMajority, To: ResetRoundID},
		agreement.Transition{From: SwapBackSelectKeeperRoundID, On: agreement.Done, To: SwapBackTxHashRoundID},
		agreement.Transition{From: SwapBackSelectKeeperRoundID, On: agreement.RoundTimeout, To: ResetRoundID},
		agreement.Transition{From: SwapBackSelectKeeperRoundID, On: agreement.NoMajority, To: ResetRoundID},
	)
	return edges
}

// NewAppSpec assembles the validated application spec from the catalog, the
// transition table and the configured timeouts.
func NewAppSpec(cfg config.Local) (agreement.AppSpec, error) {
	table, err := agreement.MakeTransitionTable(Transitions())
	if err != nil {
		return agreement.AppSpec{}, err
	}
	spec := agreement.AppSpec{
		InitialRound: ResetRoundID,
		Rounds:       Rounds(),
		Table:        table,
		Timeouts: map[agreement.Event]time.Duration{
			agreement.RoundTimeout: cfg.RoundTimeout(),
			agreement.Exit:         cfg.ExitTimeout(),
			agreement.ResetTimeout: cfg.ResetTimeout(),
		},
	}
	if err := spec.Validate(); err != nil {
		return agreement.AppSpec{}, err
	}
	return spec, nil
}

// NewApp builds the driver for one service instance: seed state at period
// zero, the participant set, and the configured threshold.
func NewApp(cfg config.Local, participants []string, log logging.Logger, seed ...agreement.StateField) (*agreement.Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec, err := NewAppSpec(cfg)
	if err != nil {
		return nil, err
	}
	fields := append([]agreement.StateField{agreement.Field(KeyPeriodCount, uint64(0))}, seed...)
	state, err := agreement.MakePeriodState(participants, fields...)
	if err != nil {
		return nil, err
	}
	threshold := agreement.Fraction{Numerator: cfg.ThresholdNumerator, Denominator: cfg.ThresholdDenominator}
	return agreement.MakeDriver(spec, threshold, state, log)
}

// SelectKeeper deterministically derives the keeper from agreed randomness:
// every replica computes the same index into the sorted participant set.
func SelectKeeper(randomness string, participants []string) string {
	if len(participants) == 0 {
		return ""
	}
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)
	digest := sha512.Sum512_256([]byte(randomness))
	idx := binary.BigEndian.Uint64(digest[:8]) % uint64(len(sorted))
	return sorted[idx]
}
