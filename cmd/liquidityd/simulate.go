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

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/poolswarm/go-poolswarm/agreement"
	"github.com/poolswarm/go-poolswarm/config"
	"github.com/poolswarm/go-poolswarm/liquidity"
	"github.com/poolswarm/go-poolswarm/logging"
)

var (
	simAgents  int
	simPeriods int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated periods of the round state machine in-process",
	Long: "simulate drives the full liquidity provision cycle with in-memory agents\n" +
		"that all behave honestly, printing each round transition. Useful to eyeball\n" +
		"the transition table and the configured timeouts without a deployment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return simulate(cfg, simAgents, simPeriods)
	},
}

func init() {
	simulateCmd.Flags().IntVarP(&simAgents, "agents", "n", 4, "Number of simulated agents")
	simulateCmd.Flags().IntVarP(&simPeriods, "periods", "p", 1, "Number of periods to run")
}

// simulation drives one driver with a set of honest in-memory agents.
type simulation struct {
	driver       *agreement.Driver
	participants []string
	keeper       string
	nextPeriod   uint64
}

func simulate(cfg config.Local, agents, periods int) error {
	runID := uuid.New().String()
	participants := make([]string, agents)
	for i := range participants {
		participants[i] = fmt.Sprintf("agent_%d", i)
	}
	keeper := participants[0]

	log := logging.Base().With("run", runID)
	driver, err := liquidity.NewApp(cfg, participants, log,
		agreement.Field(liquidity.KeyMostVotedKeeperAddress, keeper),
		agreement.Field(liquidity.KeySafeContractAddress, "0xsafe"),
		agreement.Field(liquidity.KeyMultisendContractAddress, "0xmultisend"),
		agreement.Field(liquidity.KeyRouterContractAddress, "0xrouter"),
	)
	if err != nil {
		return err
	}

	sim := &simulation{driver: driver, participants: participants, keeper: keeper, nextPeriod: 1}
	color.Cyan("simulation %s: %d agents, threshold %d/%d",
		runID, agents, cfg.ThresholdNumerator, cfg.ThresholdDenominator)
	for period := 0; period < periods; period++ {
		if err := sim.runPeriod(); err != nil {
			return err
		}
		color.Green("period %d complete", period+1)
	}
	return nil
}

// runPeriod advances the machine round by round until the closing pause
// round decides. The first period enters at the reset round; later ones
// re-enter at strategy evaluation.
func (s *simulation) runPeriod() error {
	for {
		from := s.driver.CurrentRound().ID()
		if err := s.step(from); err != nil {
			return err
		}
		fmt.Printf("  %s -> %s\n", from, s.driver.CurrentRound().ID())
		if from == liquidity.ResetAndPauseRoundID {
			return nil
		}
	}
}

// step has every agent submit its payload for the current round and then
// runs the end-of-round evaluation.
func (s *simulation) step(round agreement.RoundID) error {
	build, err := s.builderFor(round)
	if err != nil {
		return err
	}
	seq := s.driver.Seq()

	// Agents submit concurrently, the way independent processes would.
	var group errgroup.Group
	for _, id := range s.participants {
		p := build(id)
		if p.Submitter == "" {
			continue
		}
		group.Go(func() error {
			return s.driver.Deliver(seq, p)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	_, decided, err := s.driver.EndBlock()
	if err != nil {
		return err
	}
	if !decided {
		return fmt.Errorf("round %s did not decide", round)
	}
	return nil
}

func (s *simulation) builderFor(round agreement.RoundID) (func(id string) agreement.Payload, error) {
	switch round {
	case liquidity.ResetRoundID, liquidity.ResetAndPauseRoundID:
		period := s.nextPeriod
		s.nextPeriod++
		return func(id string) agreement.Payload {
			return liquidity.NewResetPayload(id, period)
		}, nil
	case liquidity.StrategyEvaluationRoundID:
		strategy := liquidity.Strategy{Action: liquidity.StrategyGo, Chain: "fantom", TokenA: "FTM", TokenB: "USDC", Amount: 1000}
		return func(id string) agreement.Payload {
			return liquidity.NewStrategyPayload(id, strategy)
		}, nil
	case liquidity.EnterPoolTxHashRoundID, liquidity.ExitPoolTxHashRoundID, liquidity.SwapBackTxHashRoundID:
		doc := liquidity.TxHashDocument{TxHash: "0xhash", TxData: "0xdata"}
		return func(id string) agreement.Payload {
			return liquidity.NewTxHashPayload(id, doc)
		}, nil
	case liquidity.EnterPoolTxSignatureRoundID, liquidity.ExitPoolTxSignatureRoundID, liquidity.SwapBackTxSignatureRoundID:
		return func(id string) agreement.Payload {
			return liquidity.NewSignaturePayload(id, "sig_"+id)
		}, nil
	case liquidity.EnterPoolTxSendRoundID, liquidity.ExitPoolTxSendRoundID, liquidity.SwapBackTxSendRoundID:
		keeper := s.keeper
		return func(id string) agreement.Payload {
			if id != keeper {
				return agreement.Payload{}
			}
			return liquidity.NewFinalizationPayload(id, "0xfinal")
		}, nil
	case liquidity.EnterPoolTxValidationRoundID, liquidity.ExitPoolTxValidationRoundID, liquidity.SwapBackTxValidationRoundID:
		return func(id string) agreement.Payload {
			return liquidity.NewValidatePayload(id, true)
		}, nil
	default:
		return nil, fmt.Errorf("no simulated behavior for round %s", round)
	}
}
