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

package insights

import (
	"fmt"
	"strings"
)

const coachSystemPrompt = `You are a friendly, encouraging financial coach.
Look at the user's spending metrics for this month and point out one or two things worth knowing:
a trend compared to last month, an alert about a category that is running high, or an
achievement worth celebrating. Tie your advice to the user's goals when they have any.

Keep each insight short: a title of a few words and a message of at most two sentences.

Respond with JSON only, in exactly this shape:
{"insights": [{"title": "...", "message": "...", "type": "trend" | "alert" | "achievement"}]}`

// buildUserPrompt renders the metrics the model sees.
func buildUserPrompt(s *Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are my metrics for %s:\n", s.MonthName)
	fmt.Fprintf(&b, "- Total spending so far: $%.2f\n", s.CurrentMonthSpending)
	fmt.Fprintf(&b, "- Spending last month: $%.2f\n", s.LastMonthSpending)
	fmt.Fprintf(&b, "- Top category: %s ($%.2f)\n", s.TopCategory, s.TopCategoryAmount)
	fmt.Fprintf(&b, "- My goals: %s\n\n", s.Goals)
	b.WriteString("Give me some insights!")
	return b.String()
}

// Fallback is the single insight stored when the model's answer cannot be
// used.
func Fallback(s *Snapshot) Suggestion {
	return Suggestion{
		Title: "Spending Update",
		Message: fmt.Sprintf("You've spent $%.2f so far in %s. Keep an eye on your %s spending!",
			s.CurrentMonthSpending, s.MonthName, s.TopCategory),
		Type: TypeTrend,
	}
}
