package content

import "strings"

// wordsPerMinute is the assumed reading speed for reading-time estimates.
const wordsPerMinute = 200

// CountWords returns the number of whitespace-delimited words in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// WordCount sums the word counts of every block in the stream.
func (s Stream) WordCount() int {
	total := 0
	for _, b := range s {
		if b.Value != nil {
			total += b.Value.WordCount()
		}
	}
	return total
}

// ReadingTime estimates the minutes needed to read a post: the intro's words
// plus every text-bearing block field, at wordsPerMinute with integer
// division, floored at one minute.
func ReadingTime(intro string, stream Stream) int {
	words := CountWords(intro) + stream.WordCount()
	minutes := words / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
