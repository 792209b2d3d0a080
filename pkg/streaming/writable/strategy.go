package writable

// SizeFunc measures a chunk for backpressure accounting. The result must be
// finite and non-negative; anything else, an error or a panic errors the stream.
type SizeFunc[T any] func(chunk T) (float64, error)

// QueuingStrategy pairs a high-water mark with a way to size chunks.
type QueuingStrategy[T any] struct {
	HighWaterMark float64
	Size          SizeFunc[T]
}

// CountQueuingStrategy counts every chunk as 1.
func CountQueuingStrategy[T any](highWaterMark float64) QueuingStrategy[T] {
	return QueuingStrategy[T]{HighWaterMark: highWaterMark}
}

// ByteLengthQueuingStrategy sizes chunks by their length in bytes.
func ByteLengthQueuingStrategy[T ~[]byte | ~string](highWaterMark float64) QueuingStrategy[T] {
	return QueuingStrategy[T]{
		HighWaterMark: highWaterMark,
		Size: func(chunk T) (float64, error) {
			return float64(len(chunk)), nil
		},
	}
}
