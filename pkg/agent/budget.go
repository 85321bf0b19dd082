// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

// DefaultMaxCycles bounds delegation and data-tool calls per turn.
const DefaultMaxCycles = 50

// Budget counts delegation cycles for one turn. The coordinator spends one
// unit per routed delegation call and workers spend one per data-tool call,
// all from the same Budget. A Budget is created fresh for every turn and is
// never persisted or shared between turns.
//
// A turn dispatches sequentially, so Budget is not safe for concurrent use.
type Budget struct {
	max  int
	used int
}

// NewBudget creates a budget of max units. max <= 0 means DefaultMaxCycles.
func NewBudget(max int) *Budget {
	if max <= 0 {
		max = DefaultMaxCycles
	}
	return &Budget{max: max}
}

// Spend consumes one unit. It returns false, without consuming, once the
// budget is exhausted.
func (b *Budget) Spend() bool {
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

// Used returns the units consumed so far.
func (b *Budget) Used() int { return b.used }

// Max returns the budget size.
func (b *Budget) Max() int { return b.max }

// Remaining returns the units left.
func (b *Budget) Remaining() int { return b.max - b.used }

// Exhausted reports whether no units remain.
func (b *Budget) Exhausted() bool { return b.used >= b.max }
