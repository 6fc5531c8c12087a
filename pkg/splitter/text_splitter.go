package splitter

import (
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// ErrInvalidOverlap is returned when the chunk overlap is not smaller than the chunk size.
var ErrInvalidOverlap = errors.New("splitter: cannot have chunk overlap >= chunk size")

// DefaultSeparators are tried in order; the first one present in the text wins.
// The empty separator always matches and splits the text into single characters.
var DefaultSeparators = []string{"\n\n", "\n", ".", ",", ">", "<", " ", ""}

// RecursiveCharacter splits text on a hierarchy of separators and packs the
// pieces back into chunks of at most ChunkSize characters.
type RecursiveCharacter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
	Logger       *slog.Logger
}

var _ textsplitter.TextSplitter = (*RecursiveCharacter)(nil)

// Option configures a RecursiveCharacter splitter.
type Option func(*RecursiveCharacter)

// WithSeparators overrides the separator hierarchy.
func WithSeparators(separators []string) Option {
	return func(s *RecursiveCharacter) {
		s.Separators = separators
	}
}

// WithLogger sets the logger used for oversized chunk warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *RecursiveCharacter) {
		s.Logger = logger
	}
}

// NewRecursiveCharacter creates a new recursive character text splitter
func NewRecursiveCharacter(chunkSize, chunkOverlap int, opts ...Option) (*RecursiveCharacter, error) {
	if chunkOverlap >= chunkSize {
		return nil, ErrInvalidOverlap
	}

	s := &RecursiveCharacter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SplitText splits text into chunks
func (s *RecursiveCharacter) SplitText(text string) ([]string, error) {
	return s.split(text), nil
}

func (s *RecursiveCharacter) split(text string) []string {
	separator := s.pickSeparator(text)

	var pieces []string
	if separator != "" {
		pieces = strings.Split(text, separator)
	} else {
		pieces = runes(text)
	}

	var final, good []string
	for _, piece := range pieces {
		// Single characters, or text no separator divides, cannot be split any further.
		if length(piece) < s.ChunkSize || separator == "" || len(pieces) == 1 {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if piece != "" {
			final = append(final, s.split(piece)...)
		}
	}

	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

func (s *RecursiveCharacter) pickSeparator(text string) string {
	if len(s.Separators) == 0 {
		return ""
	}
	for _, sep := range s.Separators {
		if sep == "" || strings.Contains(text, sep) {
			return sep
		}
	}
	return s.Separators[len(s.Separators)-1]
}

// merge packs pieces greedily into chunks, keeping up to ChunkOverlap
// characters of trailing context between consecutive chunks.
func (s *RecursiveCharacter) merge(pieces []string, separator string) []string {
	sepLen := length(separator)

	var docs []string
	var current []string
	total := 0

	for _, piece := range pieces {
		pieceLen := length(piece)
		extra := 0
		if len(current) > 0 {
			extra = sepLen
		}

		if total+extra+pieceLen > s.ChunkSize {
			if total > s.ChunkSize && s.Logger != nil {
				s.Logger.Warn("Created a chunk longer than the specified chunk size",
					"size", total, "chunk_size", s.ChunkSize)
			}
			if len(current) > 0 {
				if doc, ok := join(current, separator); ok {
					docs = append(docs, doc)
				}
				for len(current) > 0 &&
					(total > s.ChunkOverlap || (total+extra+pieceLen > s.ChunkSize && total > 0)) {
					total -= length(current[0])
					current = current[1:]
					if len(current) > 0 {
						total -= sepLen
					}
				}
			}
		}

		extra = 0
		if len(current) > 0 {
			extra = sepLen
		}
		current = append(current, piece)
		total += extra + pieceLen
	}

	if doc, ok := join(current, separator); ok {
		docs = append(docs, doc)
	}
	return docs
}

func join(pieces []string, separator string) (string, bool) {
	text := strings.TrimSpace(strings.Join(pieces, separator))
	return text, text != ""
}

func runes(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
