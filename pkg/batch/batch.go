// Package batch splits ordered work lists into fixed-size chunks.
package batch

// TermLimit is the maximum number of terms the trends source accepts per call.
const TermLimit = 5

// Create splits items into consecutive, non-overlapping chunks of at most size
// elements, preserving order. The final chunk may be smaller. A non-positive
// size yields a single chunk holding every item.
func Create[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return [][]T{}
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items[:len(items):len(items)]}
	}

	batches := make([][]T, 0, Count(len(items), size))
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		// Cap the capacity so appends on a batch never clobber the next one.
		batches = append(batches, items[i:end:end])
	}
	return batches
}

// Count returns how many batches Create produces for n items.
func Count(n, size int) int {
	if n <= 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return (n + size - 1) / size
}
