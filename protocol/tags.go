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

package protocol

// PayloadTag identifies the kind of value a participant contributes to a
// round. A round only accepts submissions carrying its expected tag.
type PayloadTag string

// Tags for the payload kinds exchanged by the liquidity provision service.
const (
	StrategyTag     PayloadTag = "strategy"
	TxHashTag       PayloadTag = "tx_hash"
	SignatureTag    PayloadTag = "signature"
	FinalizationTag PayloadTag = "finalization"
	ValidateTag     PayloadTag = "validate"
	RandomnessTag   PayloadTag = "randomness"
	SelectKeeperTag PayloadTag = "select_keeper"
	ResetTag        PayloadTag = "reset"
)
