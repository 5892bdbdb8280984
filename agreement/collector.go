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
	"github.com/algorand/go-deadlock"
)

// A Fraction expresses the agreement threshold over the participant set.
// Thresholds are compared with integer arithmetic only: count/n clears the
// fraction iff count*Denominator > Numerator*n. Every replica must compute
// identical outcomes, so floating point stays out of this path.
type Fraction struct {
	Numerator   uint64
	Denominator uint64
}

// Exceeded reports whether count out of n participants is strictly more than
// the fraction.
func (f Fraction) Exceeded(count, n uint64) bool {
	return count*f.Denominator > f.Numerator*n
}

// CollectionMode selects how a resubmission from the same identity is
// treated.
type CollectionMode uint8

const (
	// ModeSame expects all participants to converge on one value: an equal
	// resubmission is accepted idempotently, a conflicting one is a protocol
	// error.
	ModeSame CollectionMode = iota

	// ModeDifferent retains each participant's individual value (signatures,
	// for instance): a resubmission overwrites the previous one.
	ModeDifferent
)

// A Collector accumulates at most one submission per eligible identity and
// answers the threshold questions a round asks at its end-of-round check.
//
// Add may be called concurrently by many inbound-delivery handlers while the
// round is active; a single mutex around check-then-insert is enough since
// contention is bounded by the participant count and every operation is
// O(1). The decision methods take the same mutex, so an end-of-round
// evaluation never observes a half-applied insert.
type Collector struct {
	mu deadlock.Mutex

	round     RoundID
	mode      CollectionMode
	threshold Fraction
	eligible  map[string]bool

	submissions map[string]Payload // by submitter
	counts      map[string]uint64  // value digest -> submission count
	valueOrder  []string           // digest insertion order, breaks ties
	valueOf     map[string]Payload // digest -> first payload carrying it
}

// MakeCollector builds a collector for one round instance.
func MakeCollector(round RoundID, eligible []string, mode CollectionMode, threshold Fraction) *Collector {
	c := &Collector{
		round:       round,
		mode:        mode,
		threshold:   threshold,
		eligible:    make(map[string]bool, len(eligible)),
		submissions: make(map[string]Payload, len(eligible)),
		counts:      make(map[string]uint64),
		valueOf:     make(map[string]Payload),
	}
	for _, id := range eligible {
		c.eligible[id] = true
	}
	return c
}

// Add records a submission. It fails with UnauthorizedSubmitterError for an
// identity outside the eligible set, and with DuplicateSubmissionError for a
// conflicting resubmission under ModeSame. Rejection leaves the collector
// unchanged.
func (c *Collector) Add(p Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.eligible[p.Submitter] {
		return &UnauthorizedSubmitterError{Round: c.round, Submitter: p.Submitter}
	}

	digest := p.digest()
	prev, resubmit := c.submissions[p.Submitter]
	if resubmit {
		prevDigest := prev.digest()
		if c.mode == ModeSame {
			if prevDigest != digest {
				return &DuplicateSubmissionError{Round: c.round, Submitter: p.Submitter}
			}
			return nil
		}
		// ModeDifferent: the new value replaces the old one.
		if prevDigest == digest {
			c.submissions[p.Submitter] = p
			return nil
		}
		c.counts[prevDigest]--
		if c.counts[prevDigest] == 0 {
			delete(c.counts, prevDigest)
			delete(c.valueOf, prevDigest)
			for i, d := range c.valueOrder {
				if d == prevDigest {
					c.valueOrder = append(c.valueOrder[:i], c.valueOrder[i+1:]...)
					break
				}
			}
		}
	}

	c.submissions[p.Submitter] = p
	if c.counts[digest] == 0 {
		c.valueOrder = append(c.valueOrder, digest)
		c.valueOf[digest] = p
	}
	c.counts[digest]++
	return nil
}

// Count returns the number of distinct submitters recorded so far.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submissions)
}

// Submissions returns a copy of the recorded per-participant submissions.
func (c *Collector) Submissions() map[string]Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Payload, len(c.submissions))
	for id, p := range c.submissions {
		out[id] = p
	}
	return out
}

// ThresholdReached reports whether the most-submitted distinct value clears
// the threshold over n participants.
func (c *Collector) ThresholdReached(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, count := c.mostCommonLocked()
	return c.threshold.Exceeded(count, uint64(n))
}

// CollectionThresholdReached reports whether enough distinct submitters have
// contributed, regardless of value agreement. Used where every participant's
// value must be retained rather than agreed upon.
func (c *Collector) CollectionThresholdReached(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold.Exceeded(uint64(len(c.submissions)), uint64(n))
}

// MajorityPossible reports whether any value could still clear the threshold
// if every remaining participant backed the current leader. Once it turns
// false there is no point waiting out the timeout.
func (c *Collector) MajorityPossible(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, count := c.mostCommonLocked()
	remaining := uint64(n) - uint64(len(c.submissions))
	return c.threshold.Exceeded(count+remaining, uint64(n))
}

// MostCommonValue returns the representative payload of the value with the
// highest submission count. Ties break toward the value submitted first, so
// replicas processing submissions in the same order agree on the result.
func (c *Collector) MostCommonValue() (Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	digest, count := c.mostCommonLocked()
	if count == 0 {
		return Payload{}, false
	}
	return c.valueOf[digest], true
}

func (c *Collector) mostCommonLocked() (digest string, count uint64) {
	for _, d := range c.valueOrder {
		if c.counts[d] > count {
			digest = d
			count = c.counts[d]
		}
	}
	return
}

// VoteCounts tallies bool-valued submissions. Non-bool values are never
// recorded by a voting round, so they simply don't count here.
func (c *Collector) VoteCounts() (positive, negative uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.submissions {
		if v, ok := p.Value.(bool); ok {
			if v {
				positive++
			} else {
				negative++
			}
		}
	}
	return
}
