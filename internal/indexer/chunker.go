package indexer

import "unicode/utf8"

// Chunk is a transient slice of a source file's text, carrying the byte
// offset and length within that file so indexFile can build a stable
// chunk ID ("{source}#{offset}") and a vectorstore.Document can later be
// reconstructed from it.
type Chunk struct {
	Offset  int
	Length  int
	Content string
}

// ChunkText splits content into chunks of at most chunkSize bytes with
// chunkOverlap bytes of overlap between consecutive chunks. Chunk
// boundaries are byte offsets backed off, when necessary, to the nearest
// valid UTF-8 rune boundary so no chunk begins or ends mid-codepoint.
//
// Callers must ensure chunkOverlap < chunkSize; Config.Validate
// rejects configurations that don't.
func ChunkText(content string, chunkSize, chunkOverlap int) []Chunk {
	if content == "" || chunkSize <= 0 {
		return nil
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}

	var chunks []Chunk
	n := len(content)
	start := 0

	for start < n {
		end := start + chunkSize
		if end > n {
			end = n
		} else {
			end = backOffToRuneBoundary(content, end)
		}

		if end <= start {
			// A single rune is wider than chunkSize; take it whole to
			// guarantee progress.
			_, size := utf8.DecodeRuneInString(content[start:])
			end = start + size
		}

		chunks = append(chunks, Chunk{
			Offset:  start,
			Length:  end - start,
			Content: content[start:end],
		})

		if end >= n {
			break
		}

		next := end - chunkOverlap
		next = backOffToRuneBoundary(content, next)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// backOffToRuneBoundary walks offset backward until it lands on a valid
// UTF-8 rune boundary (or 0).
func backOffToRuneBoundary(s string, offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset >= len(s) {
		return len(s)
	}
	for offset > 0 && !utf8.RuneStart(s[offset]) {
		offset--
	}
	return offset
}
