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
	"github.com/poolswarm/go-poolswarm/agreement"
)

// The period-state attributes of the liquidity provision application. Every
// attribute the rounds read or write is declared here; there are no ad-hoc
// state lookups.
var (
	KeyPeriodCount = agreement.StateKey{Name: "period_count", Kind: agreement.KindUint64}

	KeyParticipantToStrategy = agreement.StateKey{Name: "participant_to_strategy", Kind: agreement.KindSubmissionMap}
	KeyMostVotedStrategy     = agreement.StateKey{Name: "most_voted_strategy", Kind: agreement.KindString}

	KeyParticipantToTxHash = agreement.StateKey{Name: "participant_to_tx_hash", Kind: agreement.KindSubmissionMap}
	KeyMostVotedTxHash     = agreement.StateKey{Name: "most_voted_tx_hash", Kind: agreement.KindString}
	KeyMostVotedTxData     = agreement.StateKey{Name: "most_voted_tx_data", Kind: agreement.KindString}

	KeyParticipantToSignature = agreement.StateKey{Name: "participant_to_signature", Kind: agreement.KindSubmissionMap}

	KeyFinalTxHash = agreement.StateKey{Name: "final_tx_hash", Kind: agreement.KindString}

	KeyParticipantToVotes = agreement.StateKey{Name: "participant_to_votes", Kind: agreement.KindSubmissionMap}

	KeyParticipantToRandomness = agreement.StateKey{Name: "participant_to_randomness", Kind: agreement.KindSubmissionMap}
	KeyMostVotedRandomness     = agreement.StateKey{Name: "most_voted_randomness", Kind: agreement.KindString}

	KeyParticipantToSelection = agreement.StateKey{Name: "participant_to_selection", Kind: agreement.KindSubmissionMap}
	KeyMostVotedKeeperAddress = agreement.StateKey{Name: "most_voted_keeper_address", Kind: agreement.KindString}

	KeySafeContractAddress      = agreement.StateKey{Name: "safe_contract_address", Kind: agreement.KindString}
	KeyMultisendContractAddress = agreement.StateKey{Name: "multisend_contract_address", Kind: agreement.KindString}
	KeyRouterContractAddress    = agreement.StateKey{Name: "router_contract_address", Kind: agreement.KindString}
)
