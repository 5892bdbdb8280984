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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poolswarm/go-poolswarm/testpartitioning"
)

func TestDefaultsAreValid(t *testing.T) {
	testpartitioning.PartitionTest(t)

	cfg := GetDefaultLocal()
	require.NoError(t, cfg.Validate())
	require.Equal(t, uint64(2), cfg.ThresholdNumerator)
	require.Equal(t, uint64(3), cfg.ThresholdDenominator)
	require.Equal(t, 30*time.Second, cfg.RoundTimeout())
	require.Equal(t, 5*time.Second, cfg.ExitTimeout())
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	testpartitioning.PartitionTest(t)

	cfg := GetDefaultLocal()
	cfg.ThresholdDenominator = 0
	require.Error(t, cfg.Validate())

	cfg = GetDefaultLocal()
	cfg.ThresholdNumerator = 3
	cfg.ThresholdDenominator = 3
	require.Error(t, cfg.Validate())

	cfg = GetDefaultLocal()
	cfg.RoundTimeoutSeconds = 0
	require.Error(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	testpartitioning.PartitionTest(t)

	cfg, err := LoadConfigFromDisk(t.TempDir())
	require.True(t, os.IsNotExist(err))
	require.Equal(t, GetDefaultLocal(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ConfigFilename),
		[]byte(`{"RoundTimeoutSeconds": 7.5, "ServiceID": 42}`), 0o644)
	require.NoError(t, err)

	cfg, err := LoadConfigFromDisk(dir)
	require.NoError(t, err)
	require.Equal(t, 7500*time.Millisecond, cfg.RoundTimeout())
	require.Equal(t, uint64(42), cfg.ServiceID)

	// Untouched settings keep their defaults.
	require.Equal(t, GetDefaultLocal().ThresholdNumerator, cfg.ThresholdNumerator)
	require.Equal(t, GetDefaultLocal().BaseLoggerDebugLevel, cfg.BaseLoggerDebugLevel)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ConfigFilename),
		[]byte(`{"ThresholdNumerator": 5, "ThresholdDenominator": 3}`), 0o644)
	require.NoError(t, err)

	_, err = LoadConfigFromDisk(dir)
	require.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	cfg := GetDefaultLocal()
	cfg.ServiceRegistryAddress = "0xregistry"
	cfg.ServiceID = 7
	require.NoError(t, cfg.SaveConfigToDisk(dir))

	loaded, err := LoadConfigFromDisk(dir)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
