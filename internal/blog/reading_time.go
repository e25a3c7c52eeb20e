package blog

import "strings"

const WordsPerMinute = 200

// CountWords sums the whitespace delimited words of every block text and list item.
func CountWords(blocks []ContentBlock) int {
	words := 0
	for _, b := range blocks {
		words += len(strings.Fields(b.Content))
		for _, item := range b.ListItems {
			words += len(strings.Fields(item))
		}
	}
	return words
}

// ReadingTime returns whole minutes at WordsPerMinute, rounded up, never below 1.
func ReadingTime(blocks []ContentBlock) int {
	minutes := (CountWords(blocks) + WordsPerMinute - 1) / WordsPerMinute
	return max(1, minutes)
}
