// Agent memory stream: notable perceptions and decisions, kept for the
// observation API and for debugging why an NPC did what it did.
package agents

import "sort"

const MaxMemories = 50

// Memory records a notable experience.
type Memory struct {
	At         float64 `json:"at"` // Agent clock, seconds
	Content    string  `json:"content"`
	Importance float32 `json:"importance"` // 0.0–1.0
}

// AddMemory appends a memory to the agent's stream. When full, drops the
// lowest-importance memory to make room.
func AddMemory(a *Agent, content string, importance float32) {
	m := Memory{At: a.clock, Content: content, Importance: importance}
	if a.env.Hooks.OnMemory != nil {
		a.env.Hooks.OnMemory(a, m)
	}

	if len(a.Memories) < MaxMemories {
		a.Memories = append(a.Memories, m)
		return
	}

	// Find the lowest-importance memory and replace it.
	minIdx := 0
	for i := 1; i < len(a.Memories); i++ {
		if a.Memories[i].Importance < a.Memories[minIdx].Importance {
			minIdx = i
		}
	}
	if m.Importance > a.Memories[minIdx].Importance {
		a.Memories[minIdx] = m
	}
}

// RecentMemories returns the most recent N memories, newest first.
func RecentMemories(a *Agent, count int) []Memory {
	return topMemories(a, count, func(x, y Memory) bool { return x.At > y.At })
}

// ImportantMemories returns the top N memories by importance.
func ImportantMemories(a *Agent, count int) []Memory {
	return topMemories(a, count, func(x, y Memory) bool { return x.Importance > y.Importance })
}

func topMemories(a *Agent, count int, less func(x, y Memory) bool) []Memory {
	if len(a.Memories) == 0 || count <= 0 {
		return nil
	}
	sorted := make([]Memory, len(a.Memories))
	copy(sorted, a.Memories)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}
