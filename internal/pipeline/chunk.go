package pipeline

// Chunk partitions items into contiguous, non-overlapping chunks of
// ceil(len(items)/parallelism) elements. The last chunk may be shorter.
// A parallelism below one is treated as one.
func Chunk[T any](items []T, parallelism int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if parallelism < 1 {
		parallelism = 1
	}

	size := (len(items) + parallelism - 1) / parallelism
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}

	return chunks
}
