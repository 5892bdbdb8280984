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

package liquidity

import (
	"fmt"

	"github.com/poolswarm/go-poolswarm/agreement"
	"github.com/poolswarm/go-poolswarm/protocol"
)

// StrategyAction says whether the agreed strategy is to act this period or
// to sit it out.
type StrategyAction string

// The strategy actions participants may propose.
const (
	StrategyGo   StrategyAction = "go"
	StrategyWait StrategyAction = "wait"
)

// A Strategy describes the financial action the service evaluates each
// period: which pool to enter, on which chain, and with how much.
type Strategy struct {
	Action StrategyAction `codec:"action"`
	Chain  string         `codec:"chain"`
	TokenA string         `codec:"token_a"`
	TokenB string         `codec:"token_b"`
	Amount uint64         `codec:"amount"`
}

// Encode returns the canonical JSON encoding of the strategy. Participants
// proposing the same strategy produce byte-identical encodings, which is
// what the collect-same round tallies.
func (s Strategy) Encode() string {
	return string(protocol.EncodeJSON(s))
}

// DecodeStrategy parses a strategy from its canonical JSON encoding.
func DecodeStrategy(enc string) (Strategy, error) {
	var s Strategy
	if err := protocol.DecodeJSON([]byte(enc), &s); err != nil {
		return Strategy{}, fmt.Errorf("decoding strategy: %w", err)
	}
	return s, nil
}

// A TxHashDocument pairs the hash of the multisend transaction each
// participant built locally with the data needed to finalize it.
type TxHashDocument struct {
	TxHash string `codec:"tx_hash"`
	TxData string `codec:"tx_data"`
}

// Encode returns the canonical JSON encoding of the document.
func (d TxHashDocument) Encode() string {
	return string(protocol.EncodeJSON(d))
}

// DecodeTxHashDocument parses a tx-hash document from its canonical JSON
// encoding.
func DecodeTxHashDocument(enc string) (TxHashDocument, error) {
	var d TxHashDocument
	if err := protocol.DecodeJSON([]byte(enc), &d); err != nil {
		return TxHashDocument{}, fmt.Errorf("decoding tx hash document: %w", err)
	}
	return d, nil
}

// NewStrategyPayload builds a strategy-evaluation submission.
func NewStrategyPayload(submitter string, s Strategy) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.StrategyTag, Value: s.Encode()}
}

// NewTxHashPayload builds a tx-hash submission.
func NewTxHashPayload(submitter string, d TxHashDocument) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.TxHashTag, Value: d.Encode()}
}

// NewSignaturePayload builds a signature submission.
func NewSignaturePayload(submitter, signature string) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.SignatureTag, Value: signature}
}

// NewFinalizationPayload builds the keeper's finalization submission
// carrying the hash of the transaction it sent.
func NewFinalizationPayload(submitter, finalTxHash string) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.FinalizationTag, Value: finalTxHash}
}

// NewValidatePayload builds a validation vote.
func NewValidatePayload(submitter string, vote bool) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.ValidateTag, Value: vote}
}

// NewRandomnessPayload builds a randomness submission.
func NewRandomnessPayload(submitter, randomness string) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.RandomnessTag, Value: randomness}
}

// NewSelectKeeperPayload builds a keeper-selection submission.
func NewSelectKeeperPayload(submitter, keeper string) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.SelectKeeperTag, Value: keeper}
}

// NewResetPayload builds a reset submission carrying the period count the
// participant expects the next period to start from.
func NewResetPayload(submitter string, periodCount uint64) agreement.Payload {
	return agreement.Payload{Submitter: submitter, Tag: protocol.ResetTag, Value: periodCount}
}
