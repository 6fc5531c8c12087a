package trimmer

import (
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/mikeboe/deep-research/pkg/splitter"
)

const (
	// MinChunkSize is the smallest chunk, in characters, the trimmer will cut text down to.
	MinChunkSize = 140
	// DefaultContextSize is the token budget used when none is configured.
	DefaultContextSize = 128000
	// DefaultEncoding matches the tokenizer of the default completion models.
	DefaultEncoding = "o200k_base"

	charsPerToken = 3
)

// TokenCounter counts the tokens a model would see for text.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (e.g. o200k_base, cl100k_base).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) CountTokens(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

// Trimmer shrinks prompts until they fit a token budget.
type Trimmer struct {
	counter     TokenCounter
	contextSize int
	logger      *slog.Logger
}

// New creates a Trimmer. A contextSize <= 0 selects DefaultContextSize.
func New(counter TokenCounter, contextSize int) *Trimmer {
	if contextSize <= 0 {
		contextSize = DefaultContextSize
	}
	return &Trimmer{
		counter:     counter,
		contextSize: contextSize,
		logger:      slog.Default(),
	}
}

// WithLogger returns a copy of t that logs to logger.
func (t *Trimmer) WithLogger(logger *slog.Logger) *Trimmer {
	cp := *t
	cp.logger = logger
	return &cp
}

// ContextSize returns the default token budget.
func (t *Trimmer) ContextSize() int {
	return t.contextSize
}

// Trim returns text cut down to at most contextSize tokens. A contextSize <= 0
// uses the trimmer's default budget. When the budget is below what
// MinChunkSize characters need, the result is clamped to MinChunkSize characters.
func (t *Trimmer) Trim(text string, contextSize int) string {
	if contextSize <= 0 {
		contextSize = t.contextSize
	}

	for text != "" {
		tokens := t.counter.CountTokens(text)
		if tokens <= contextSize {
			return text
		}

		textLen := utf8.RuneCountInString(text)
		overflow := tokens - contextSize
		chunkSize := max(textLen-overflow*charsPerToken, MinChunkSize)

		// chunkSize is always positive, so a zero overlap is valid.
		s, _ := splitter.NewRecursiveCharacter(chunkSize, 0, splitter.WithLogger(t.logger))
		chunks, _ := s.SplitText(text)

		trimmed := ""
		if len(chunks) > 0 {
			trimmed = chunks[0]
		}

		if utf8.RuneCountInString(trimmed) == textLen {
			trimmed = truncate(text, chunkSize)
			if utf8.RuneCountInString(trimmed) >= textLen {
				return trimmed
			}
		}
		text = trimmed
	}
	return ""
}

func truncate(text string, n int) string {
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
