package native

import (
	"math"
	"math/rand"
	"strings"

	"github.com/Cooksey99/nucleus/internal/provider"
)

const (
	beginOfText           = "<|begin_of_text|>"
	startHeader           = "<|start_header_id|>"
	endHeader             = "<|end_header_id|>"
	endOfTurn             = "<|eot_id|>"
	assistantContinuation = startHeader + "assistant" + endHeader + "\n\n"
)

// assemblePrompt renders messages as a role-header template: a leading
// begin-of-text marker, each message wrapped in start/end header tags
// around its role name followed by its content and an end-of-turn marker,
// and a trailing assistant continuation marker so the model knows to
// generate the next turn.
func assemblePrompt(messages []provider.Message) string {
	var b strings.Builder
	b.WriteString(beginOfText)
	for _, m := range messages {
		b.WriteString(startHeader)
		b.WriteString(m.Role)
		b.WriteString(endHeader)
		b.WriteString("\n\n")
		b.WriteString(m.Content)
		b.WriteString(endOfTurn)
	}
	b.WriteString(assistantContinuation)
	return b.String()
}

// buildCausalMask returns a seqLen x seqLen lower-triangular mask
// flattened row-major: 0.0 on and under the diagonal, -Inf above it.
func buildCausalMask(seqLen int) []float32 {
	mask := make([]float32, seqLen*seqLen)
	for row := 0; row < seqLen; row++ {
		for col := 0; col < seqLen; col++ {
			if col > row {
				mask[row*seqLen+col] = float32(math.Inf(-1))
			}
		}
	}
	return mask
}

// sample picks the next token ID from logits. temperature == 0 performs
// deterministic greedy sampling (argmax); temperature > 0 performs softmax
// sampling scaled by temperature.
func sample(logits []float32, temperature float32) int {
	if len(logits) == 0 {
		return 0
	}
	if temperature <= 0 {
		return argmax(logits)
	}

	scaled := make([]float64, len(logits))
	maxLogit := float64(logits[0])
	for _, l := range logits {
		if float64(l) > maxLogit {
			maxLogit = float64(l)
		}
	}
	var sum float64
	for i, l := range logits {
		e := math.Exp((float64(l) - maxLogit) / float64(temperature))
		scaled[i] = e
		sum += e
	}

	r := rand.Float64() * sum
	var cumulative float64
	for i, w := range scaled {
		cumulative += w
		if r <= cumulative {
			return i
		}
	}
	return len(logits) - 1
}

func argmax(logits []float32) int {
	best := 0
	for i, l := range logits {
		if l > logits[best] {
			best = i
		}
	}
	return best
}
