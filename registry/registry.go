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

// Package registry reads the on-chain service registry: the contract holding
// the canonical record of which agent instances make up a service. Consensus
// never blocks on it; callers consult the registry at startup to build the
// participant set and to sanity-check the deployment they are pointed at.
package registry

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// DeployedBytecodeSha512 is the sha512 digest of the audited registry
// contract's deployed bytecode. A registry address whose code hashes to
// anything else is not the contract we reviewed.
const DeployedBytecodeSha512 = "75d2a79df580ba1353211f93c479a9d6b78cc8f14e724290329e274fdcab4dc8cc04adbd8efbbce00a01af2dd6873f7e66a8c338a3d4f87a31ab0e283eef89de"

// ServiceInfo is the on-chain record of one registered service.
type ServiceInfo struct {
	Owner             string   `codec:"owner"`
	Name              string   `codec:"name"`
	Description       string   `codec:"description"`
	ConfigHash        []byte   `codec:"config_hash"`
	Threshold         uint64   `codec:"threshold"`
	NumAgentIDs       uint64   `codec:"num_agent_ids"`
	AgentIDs          []uint64 `codec:"agent_ids"`
	NumAgentInstances uint64   `codec:"num_agent_instances"`
	AgentInstances    []string `codec:"agent_instances"`
	Multisig          string   `codec:"multisig"`
}

// A Caller abstracts the chain client the registry is read through. The
// production implementation wraps an RPC node; tests substitute a fixture.
type Caller interface {
	// Code returns the deployed bytecode at the given address, hex encoded.
	Code(ctx context.Context, address string) (string, error)

	// Exists reports whether a service id is registered.
	Exists(ctx context.Context, address string, serviceID uint64) (bool, error)

	// ServiceInfo returns the registry record for a service id.
	ServiceInfo(ctx context.Context, address string, serviceID uint64) (ServiceInfo, error)
}

// Registry reads one service registry deployment through a Caller.
type Registry struct {
	caller  Caller
	address string
}

// MakeRegistry binds a reader to the registry deployment at address.
func MakeRegistry(caller Caller, address string) *Registry {
	return &Registry{caller: caller, address: address}
}

// VerifyContract fetches the deployed bytecode at the registry address and
// checks its sha512 digest against the audited one. It returns the computed
// digest either way so mismatches can be reported.
func (r *Registry) VerifyContract(ctx context.Context) (bool, string, error) {
	code, err := r.caller.Code(ctx, r.address)
	if err != nil {
		return false, "", fmt.Errorf("registry %s: fetching code: %w", r.address, err)
	}
	digest := sha512.Sum512([]byte(code))
	encoded := hex.EncodeToString(digest[:])
	return encoded == DeployedBytecodeSha512, encoded, nil
}

// Exists reports whether the configured service id is registered.
func (r *Registry) Exists(ctx context.Context, serviceID uint64) (bool, error) {
	ok, err := r.caller.Exists(ctx, r.address, serviceID)
	if err != nil {
		return false, fmt.Errorf("registry %s: exists(%d): %w", r.address, serviceID, err)
	}
	return ok, nil
}

// ServiceInfo returns the registry record for a service id.
func (r *Registry) ServiceInfo(ctx context.Context, serviceID uint64) (ServiceInfo, error) {
	info, err := r.caller.ServiceInfo(ctx, r.address, serviceID)
	if err != nil {
		return ServiceInfo{}, fmt.Errorf("registry %s: service info(%d): %w", r.address, serviceID, err)
	}
	return info, nil
}

// Participants resolves the participant set of a service: its registered
// agent instances. It fails if the service id is unknown.
func (r *Registry) Participants(ctx context.Context, serviceID uint64) ([]string, error) {
	ok, err := r.Exists(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("registry %s: service %d is not registered", r.address, serviceID)
	}
	info, err := r.ServiceInfo(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if len(info.AgentInstances) == 0 {
		return nil, fmt.Errorf("registry %s: service %d has no agent instances", r.address, serviceID)
	}
	return info.AgentInstances, nil
}
