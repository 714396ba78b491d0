package native

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Tokenizer converts between text and the native backend's token ID
// space. The happy path loads a JSON vocabulary sitting alongside the
// model file; its absence falls back to CodepointTokenizer, which is
// adequate only for exercising the pipeline, not for generation quality.
type Tokenizer interface {
	Encode(text string) []int
	DecodeOne(id int) string
	IsEndOfSequence(id int) bool
}

// vocabFile is the on-disk shape of a tokenizer JSON file: a simple
// token -> ID map plus a designated end-of-sequence token.
type vocabFile struct {
	Vocab      map[string]int `json:"vocab"`
	EOSToken   string         `json:"eos_token"`
	UnkTokenID int            `json:"unk_token_id"`
}

// JSONTokenizer is a whole-token vocabulary loaded from a tokenizer.json
// sitting next to the model bundle. It tokenizes by looking up each
// whitespace-delimited word as a whole token, falling back to the unknown
// token for any word not in the vocabulary — adequate for a locally bundled, closed vocabulary.
type JSONTokenizer struct {
	idToToken map[int]string
	tokenToID map[string]int
	eosID     int
	unkID     int
}

func loadTokenizer(modelPath string) (Tokenizer, error) {
	tokenizerPath := filepath.Join(filepath.Dir(modelPath), "tokenizer.json")
	data, err := os.ReadFile(tokenizerPath)
	if err != nil {
		slog.Warn("native provider: no tokenizer.json found alongside model, falling back to codepoint tokenizer (generation quality will degrade)", "model_path", modelPath, "error", err)
		return nil, err
	}

	var vf vocabFile
	if err := json.Unmarshal(data, &vf); err != nil {
		slog.Warn("native provider: tokenizer.json is malformed, falling back to codepoint tokenizer", "error", err)
		return nil, err
	}

	idToToken := make(map[int]string, len(vf.Vocab))
	for tok, id := range vf.Vocab {
		idToToken[id] = tok
	}

	eosID := -1
	if vf.EOSToken != "" {
		if id, ok := vf.Vocab[vf.EOSToken]; ok {
			eosID = id
		}
	}

	return &JSONTokenizer{
		idToToken: idToToken,
		tokenToID: vf.Vocab,
		eosID:     eosID,
		unkID:     vf.UnkTokenID,
	}, nil
}

func (t *JSONTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, 0, len(words))
	for _, w := range words {
		if id, ok := t.tokenToID[w]; ok {
			ids = append(ids, id)
			continue
		}
		ids = append(ids, t.unkID)
	}
	return ids
}

func (t *JSONTokenizer) DecodeOne(id int) string {
	if tok, ok := t.idToToken[id]; ok {
		return " " + tok
	}
	return ""
}

func (t *JSONTokenizer) IsEndOfSequence(id int) bool {
	return t.eosID >= 0 && id == t.eosID
}

// CodepointTokenizer treats each Unicode code point as its own token ID,
// used only when no tokenizer.json is present. It exists so the pipeline
// keeps functioning end-to-end for debugging, never for real generation.
type CodepointTokenizer struct{}

// NewCodepointTokenizer returns the fallback tokenizer.
func NewCodepointTokenizer() Tokenizer { return CodepointTokenizer{} }

func (CodepointTokenizer) Encode(text string) []int {
	runes := []rune(text)
	ids := make([]int, len(runes))
	for i, r := range runes {
		ids[i] = int(r)
	}
	return ids
}

func (CodepointTokenizer) DecodeOne(id int) string {
	return fmt.Sprintf("%c", rune(id))
}

func (CodepointTokenizer) IsEndOfSequence(id int) bool {
	return id == 0
}
