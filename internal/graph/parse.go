package graph

import (
	"regexp"
	"strconv"
)

var idPattern = regexp.MustCompile(`[0-9]+`)

// ParsePredecessors extracts every integer embedded in s, so "1,2", "[1, 2]"
// and "1 2" all yield [1 2]. Duplicates are dropped. No match returns nil.
func ParsePredecessors(s string) []int {
	matches := idPattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(matches))
	ids := make([]int, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m)
		if err != nil {
			// Overflowing digit runs cannot name a task.
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}
