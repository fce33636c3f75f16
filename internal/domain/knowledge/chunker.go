package knowledge

import "strings"

// Default chunking window for stored documents.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// Chunk splits text into windows of at most chunkSize whitespace tokens.
// Consecutive windows share overlap tokens.
//
//   - Empty or whitespace-only input returns nil.
//   - Text of at most chunkSize tokens returns one chunk.
//   - Tokens inside a chunk are joined with a single space.
//   - overlap >= chunkSize is clamped to chunkSize-1; overlap < 0 to 0.
//   - chunkSize < 1 is treated as 1.
func Chunk(text string, chunkSize, overlap int) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if overlap < 0 {
		overlap = 0
	}

	if len(tokens) <= chunkSize {
		return []string{strings.Join(tokens, " ")}
	}

	stride := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(tokens); start += stride {
		end := min(start+chunkSize, len(tokens))
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
