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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poolswarm/go-poolswarm/util/codecs"
)

// ConfigFilename is the name of the config.json file where we store per-service settings
const ConfigFilename = "config.json"

// Local holds the per-service-instance configuration settings for the round
// state machine and its surroundings.
type Local struct {
	// Version tracks the current version of the defaults so we can migrate old -> new
	Version uint32

	// BaseLoggerDebugLevel specifies the logging level for the service. The levels
	// range from 0 (critical error / silent) to 5 (debug / verbose).
	BaseLoggerDebugLevel uint32

	// ThresholdNumerator and ThresholdDenominator express the agreement
	// threshold as a fraction of the participant set. A value is agreed once
	// strictly more than Numerator/Denominator of the participants back it.
	// Both must be set; the arithmetic is integer-only so that every replica
	// computes identical outcomes.
	ThresholdNumerator   uint64
	ThresholdDenominator uint64

	// RoundTimeoutSeconds is how long a round may wait for submissions before
	// the timeout watcher injects a round-timeout event.
	RoundTimeoutSeconds float64

	// ExitTimeoutSeconds bounds the exit path taken when a validation round
	// votes a transaction down.
	ExitTimeoutSeconds float64

	// ResetTimeoutSeconds bounds the reset-and-pause round at the end of a
	// period.
	ResetTimeoutSeconds float64

	// ServiceRegistryAddress is the on-chain address of the service registry
	// contract used to verify participant eligibility.
	ServiceRegistryAddress string

	// ServiceID identifies this service in the registry.
	ServiceID uint64
}

var defaultLocal = Local{
	Version:              1,
	BaseLoggerDebugLevel: 4, // Info
	ThresholdNumerator:   2,
	ThresholdDenominator: 3,
	RoundTimeoutSeconds:  30.0,
	ExitTimeoutSeconds:   5.0,
	ResetTimeoutSeconds:  30.0,
}

// GetDefaultLocal returns a copy of the current defaultLocal config
func GetDefaultLocal() Local {
	return defaultLocal
}

// Validate checks the invariants the round machine relies on.
func (cfg Local) Validate() error {
	if cfg.ThresholdDenominator == 0 {
		return errors.New("config: threshold denominator must be positive")
	}
	if cfg.ThresholdNumerator >= cfg.ThresholdDenominator {
		return fmt.Errorf("config: threshold %d/%d is not a proper fraction",
			cfg.ThresholdNumerator, cfg.ThresholdDenominator)
	}
	if cfg.RoundTimeoutSeconds <= 0 || cfg.ExitTimeoutSeconds <= 0 || cfg.ResetTimeoutSeconds <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	return nil
}

// RoundTimeout returns the round timeout as a duration.
func (cfg Local) RoundTimeout() time.Duration {
	return time.Duration(cfg.RoundTimeoutSeconds * float64(time.Second))
}

// ExitTimeout returns the exit timeout as a duration.
func (cfg Local) ExitTimeout() time.Duration {
	return time.Duration(cfg.ExitTimeoutSeconds * float64(time.Second))
}

// ResetTimeout returns the reset timeout as a duration.
func (cfg Local) ResetTimeout() time.Duration {
	return time.Duration(cfg.ResetTimeoutSeconds * float64(time.Second))
}

// LoadConfigFromDisk returns a Local config structure based on merging the
// defaults with settings loaded from the config file from the custom dir.
// If the custom file cannot be found, the default config is returned (with
// the error from the failed open).
func LoadConfigFromDisk(custom string) (c Local, err error) {
	fileName := filepath.Join(custom, ConfigFilename)
	c = defaultLocal
	err = codecs.LoadObjectFromFile(fileName, &c)
	if os.IsNotExist(err) {
		return defaultLocal, err
	}
	if err != nil {
		return
	}
	err = c.Validate()
	return
}

// SaveConfigToDisk writes the Local settings into a root/ConfigFilename file
func (cfg Local) SaveConfigToDisk(root string) error {
	configpath := filepath.Join(root, ConfigFilename)
	return codecs.SaveObjectToFile(configpath, cfg, true)
}
