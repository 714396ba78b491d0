// Package native implements the provider.Provider contract against a
// compiled native-accelerator model bundle through four narrow C-ABI
// calls. The C side is expected to be supplied at link time by the
// platform's accelerator runtime (e.g. a CoreML or ONNX Runtime shim
// built as a shared library); this package only declares the ABI and
// owns everything above it — tokenization, prompt assembly, sampling,
// and per-conversation state.
package native

/*
#cgo LDFLAGS: -lnucleus_native
#include <stdlib.h>

extern void*   nucleus_native_load(const char* model_path);
extern void    nucleus_native_free(void* handle);
extern int     nucleus_native_predict(void* handle,
                                       const float* input, size_t input_len,
                                       float* output, size_t output_len);
extern int     nucleus_native_stateful_predict(void* handle, void* state,
                                                const int* token_ids, size_t num_tokens,
                                                const float* causal_mask, size_t mask_len,
                                                float* logits_out, size_t logits_len);
extern int     nucleus_native_get_input_shape(void* handle, long long* shape_out, size_t max_dims);
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/plugin"
	"github.com/Cooksey99/nucleus/internal/provider"
)

func init() {
	provider.RegisterBackend("native", New)
}

const defaultMaxTokens = 512

// Provider loads a compiled model bundle once and serves chat turns
// against it. A single Provider instance is not safe for concurrent use
// across conversations (§5 of the runtime's concurrency model) — callers
// must keep one instance per active conversation and call ResetState
// between unrelated turns.
type Provider struct {
	handle unsafe.Pointer

	modelPath  string
	inputName  string
	outputName string

	tokenizer Tokenizer

	mu    sync.Mutex
	state []int // accumulated token IDs standing in for the opaque native state handle
}

// New loads the model at cfg.Model (expanding a leading "~") and returns a
// Provider bound to it. It matches provider.Constructor so it can be
// registered with the shared backend factory.
func New(ctx context.Context, cfg provider.Config, _ *plugin.Registry) (provider.Provider, error) {
	path, err := expandHome(cfg.Model)
	if err != nil {
		return nil, nucleuserr.Wrap(nucleuserr.KindProviderInit, "resolve native model path", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nucleuserr.Wrap(nucleuserr.KindProviderInit, fmt.Sprintf("native model not found: %s", path), err)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	handle := C.nucleus_native_load(cPath)
	if handle == nil {
		return nil, nucleuserr.New(nucleuserr.KindProviderInit, fmt.Sprintf("failed to load native model: %s", path))
	}

	tok, err := loadTokenizer(path)
	if err != nil {
		// A missing or unreadable tokenizer degrades quality but must not
		// prevent the provider from loading.
		tok = NewCodepointTokenizer()
	}

	inputName := cfg.NativeInputName
	if inputName == "" {
		inputName = "input_ids"
	}
	outputName := cfg.NativeOutputName
	if outputName == "" {
		outputName = "logits"
	}

	return &Provider{
		handle:     handle,
		modelPath:  path,
		inputName:  inputName,
		outputName: outputName,
		tokenizer:  tok,
	}, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ResetState clears the accumulated conversation tokens, beginning a fresh
// conversation against the same loaded model.
func (p *Provider) ResetState(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = nil
	return nil
}

// Close frees the native model handle. Safe to call once.
func (p *Provider) Close() error {
	if p.handle != nil {
		C.nucleus_native_free(p.handle)
		p.handle = nil
	}
	return nil
}

// Embed is unsupported by the native backend; a raw multi-array model has
// no embedding head exposed through this ABI.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, provider.ErrUnsupported
}

// Chat assembles a role-header prompt from request.Messages, tokenizes it,
// extends the held conversation state with the new tokens, and greedily
// (or temperature-) samples new tokens one at a time via the stateful
// predict ABI, invoking callback with each newly generated token's text.
// The native backend does not support tool-calling; request.Tools is
// ignored.
func (p *Provider) Chat(ctx context.Context, request provider.ChatRequest, callback provider.StreamCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nucleuserr.New(nucleuserr.KindProviderRuntime, "native provider is closed")
	}

	prompt := assemblePrompt(request.Messages)
	newTokens := p.tokenizer.Encode(prompt)
	p.state = append(p.state, newTokens...)

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var generated strings.Builder
	for i := 0; i < maxTokens; i++ {
		if err := ctx.Err(); err != nil {
			return nucleuserr.Wrap(nucleuserr.KindProviderRuntime, "chat turn cancelled", err)
		}

		logits, err := p.predictNext()
		if err != nil {
			return nucleuserr.Wrap(nucleuserr.KindProviderRuntime, "native predict failed", err)
		}

		tokenID := sample(logits, request.Temperature)
		p.state = append(p.state, tokenID)

		if p.tokenizer.IsEndOfSequence(tokenID) {
			break
		}

		piece := p.tokenizer.DecodeOne(tokenID)
		generated.WriteString(piece)

		if stopString, matched := matchesStop(generated.String(), request.StopStrings); matched {
			trimmed := strings.TrimSuffix(generated.String(), stopString)
			callback(provider.ChatResponseChunk{Content: strings.TrimSuffix(piece, stopString), Done: false})
			_ = trimmed
			break
		}

		callback(provider.ChatResponseChunk{Content: piece, Done: false})
	}

	callback(provider.ChatResponseChunk{Done: true})
	return nil
}

func matchesStop(generated string, stops []string) (string, bool) {
	for _, s := range stops {
		if s != "" && strings.HasSuffix(generated, s) {
			return s, true
		}
	}
	return "", false
}

// predictNext runs the stateful predict ABI call over the held state and
// the causal mask for the current sequence length, returning logits for
// the next token.
func (p *Provider) predictNext() ([]float32, error) {
	seqLen := len(p.state)
	if seqLen == 0 {
		return nil, fmt.Errorf("empty conversation state")
	}

	mask := buildCausalMask(seqLen)

	shape, err := p.inputShape()
	if err != nil {
		return nil, err
	}
	vocabSize := 0
	if len(shape) > 0 {
		vocabSize = int(shape[len(shape)-1])
	}
	if vocabSize <= 0 {
		vocabSize = 32000
	}

	cTokens := make([]C.int, seqLen)
	for i, t := range p.state {
		cTokens[i] = C.int(t)
	}
	cMask := make([]C.float, len(mask))
	for i, m := range mask {
		cMask[i] = C.float(m)
	}
	logits := make([]C.float, vocabSize)

	rc := C.nucleus_native_stateful_predict(
		p.handle, nil,
		(*C.int)(unsafe.Pointer(&cTokens[0])), C.size_t(seqLen),
		(*C.float)(unsafe.Pointer(&cMask[0])), C.size_t(len(cMask)),
		(*C.float)(unsafe.Pointer(&logits[0])), C.size_t(vocabSize),
	)
	if rc != 0 {
		return nil, fmt.Errorf("stateful predict returned code %d", int(rc))
	}

	out := make([]float32, vocabSize)
	for i, l := range logits {
		out[i] = float32(l)
	}
	return out, nil
}

func (p *Provider) inputShape() ([]int64, error) {
	const maxDims = 8
	shape := make([]C.longlong, maxDims)
	dims := C.nucleus_native_get_input_shape(p.handle, (*C.longlong)(unsafe.Pointer(&shape[0])), C.size_t(maxDims))
	if dims < 0 {
		return nil, fmt.Errorf("get_input_shape returned code %d", int(dims))
	}
	out := make([]int64, int(dims))
	for i := 0; i < int(dims); i++ {
		out[i] = int64(shape[i])
	}
	return out, nil
}

// predictMultiArray exposes the stateless predict ABI call for callers
// that need a raw forward pass (e.g. embeddings derived from a pooled
// hidden state) rather than the stateful chat loop.
func (p *Provider) predictMultiArray(input []float32, outputLen int) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nil, fmt.Errorf("native provider is closed")
	}
	if len(input) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	cIn := make([]C.float, len(input))
	for i, v := range input {
		cIn[i] = C.float(v)
	}
	cOut := make([]C.float, outputLen)

	rc := C.nucleus_native_predict(
		p.handle,
		(*C.float)(unsafe.Pointer(&cIn[0])), C.size_t(len(cIn)),
		(*C.float)(unsafe.Pointer(&cOut[0])), C.size_t(outputLen),
	)
	if rc != 0 {
		return nil, fmt.Errorf("predict returned code %d", int(rc))
	}

	out := make([]float32, outputLen)
	for i, v := range cOut {
		out[i] = float32(v)
	}
	return out, nil
}
