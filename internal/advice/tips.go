package advice

import (
	"fmt"

	"github.com/spigell/prep-assistant/internal/matcher"
)

// TipSheet is a canned list of preparation tips for one topic.
type TipSheet struct {
	Title   string
	Bullets []string
}

// DefaultTipSheets returns the canned tip sheets keyed by topic.
func DefaultTipSheets() map[matcher.Topic]TipSheet {
	return map[matcher.Topic]TipSheet{
		matcher.TopicSystemDesign: {
			Title: "System design interview tips",
			Bullets: []string{
				"Start by clarifying functional and non-functional requirements",
				"Estimate scale early: users, requests per second, storage",
				"Sketch a high-level architecture before diving into components",
				"Discuss data modeling and the choice of storage",
				"Cover scalability: caching, sharding, replication and load balancing",
				"Call out bottlenecks, single points of failure and trade-offs",
				"Practice common designs such as a URL shortener, a news feed and a chat system",
			},
		},
		matcher.TopicBehavioral: {
			Title: "Behavioral interview tips",
			Bullets: []string{
				"Structure answers with the STAR method (Situation, Task, Action, Result)",
				"Prepare 5-6 stories covering leadership, conflict, failure and impact",
				"Quantify results wherever you can",
				"Be honest about mistakes and focus on what you learned",
				"Research the company's values and map your stories to them",
			},
		},
		matcher.TopicCoding: {
			Title: "Coding interview tips",
			Bullets: []string{
				"Restate the problem and confirm inputs, outputs and edge cases",
				"Talk through a brute-force approach before optimizing",
				"Know time and space complexity for every solution you propose",
				"Practice core patterns: two pointers, sliding window, BFS/DFS, dynamic programming",
				"Write clean code and test it with small examples out loud",
				"Review arrays, hash maps, trees, graphs and heaps",
			},
		},
	}
}

// CompanyTips returns the generic company-specific tip list.
func CompanyTips(company string) TipSheet {
	return TipSheet{
		Title: fmt.Sprintf("%s-specific tips", company),
		Bullets: []string{
			fmt.Sprintf("Research %s's products, culture and recent news", company),
			fmt.Sprintf("Review the interview format %s candidates report most often", company),
			fmt.Sprintf("Practice questions that appear repeatedly in %s experiences", company),
			fmt.Sprintf("Prepare examples that show how you fit %s's values", company),
		},
	}
}
