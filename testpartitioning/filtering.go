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

package testpartitioning

import (
	"hash/fnv"
	"os"
	"strconv"
	"testing"
)

// PartitionTest checks if the current partition should run this test, and
// skips it if not. Partitioning is driven by the PARTITION_TOTAL and
// PARTITION_ID environment variables set by CI; with neither set every test
// runs.
func PartitionTest(t *testing.T) {
	total, err := strconv.Atoi(os.Getenv("PARTITION_TOTAL"))
	if err != nil || total <= 0 {
		return
	}
	id, err := strconv.Atoi(os.Getenv("PARTITION_ID"))
	if err != nil {
		return
	}

	h := fnv.New64a()
	h.Write([]byte(t.Name()))
	if idx := h.Sum64() % uint64(total); idx != uint64(id) {
		t.Skipf("skipping due to partitioning, assigned to partition %d", idx)
	}
}
