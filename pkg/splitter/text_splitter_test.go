package splitter

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/textsplitter"
)

func TestNewRecursiveCharacterRejectsOverlap(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		overlap   int
		wantError bool
	}{
		{"overlap equal to size", 10, 10, true},
		{"overlap above size", 10, 20, true},
		{"zero overlap", 10, 0, false},
		{"overlap below size", 10, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRecursiveCharacter(tt.size, tt.overlap)
			if tt.wantError {
				require.ErrorIs(t, err, ErrInvalidOverlap)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultSeparators, s.Separators)
		})
	}
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name: "words packed without overlap",
			text: "Hello world foo bar",
			size: 11,
			want: []string{"Hello world", "foo bar"},
		},
		{
			name:    "overlap keeps trailing context",
			text:    "a b c d e f",
			size:    5,
			overlap: 2,
			want:    []string{"a b c", "c d e", "e f"},
		},
		{
			name: "paragraph break wins over spaces",
			text: "para one\n\npara two",
			size: 100,
			want: []string{"para one\n\npara two"},
		},
		{
			name: "paragraphs split when too long together",
			text: "para one\n\npara two",
			size: 10,
			want: []string{"para one", "para two"},
		},
		{
			name: "no separator falls back to characters",
			text: "abcdefghij",
			size: 4,
			want: []string{"abcd", "efgh", "ij"},
		},
		{
			name: "lengths are counted in characters",
			text: "ééééé",
			size: 2,
			want: []string{"éé", "éé", "é"},
		},
		{
			name: "whitespace only yields nothing",
			text: "   \n\n  ",
			size: 10,
			want: nil,
		},
		{
			name: "oversized paragraph is split recursively",
			text: "short\n\nthis paragraph is far too long",
			size: 12,
			want: []string{"short", "this", "paragraph is", "far too long"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRecursiveCharacter(tt.size, tt.overlap)
			require.NoError(t, err)

			got, err := s.SplitText(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitTextChunkBoundsAndContent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		fmt.Fprintf(&b, "word%d ", i)
		if i%17 == 0 {
			b.WriteString("\n")
		}
		if i%53 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	for _, size := range []int{20, 64, 150, 1000} {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			s, err := NewRecursiveCharacter(size, 0)
			require.NoError(t, err)

			chunks, err := s.SplitText(text)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), size)
			}
			assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
		})
	}
}

func TestSplitTextOverlapChunksStayBounded(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 40)

	s, err := NewRecursiveCharacter(80, 20)
	require.NoError(t, err)

	chunks, err := s.SplitText(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 80)
	}
}

func TestSplitTextIndivisibleUnit(t *testing.T) {
	s, err := NewRecursiveCharacter(5, 0, WithSeparators([]string{" "}))
	require.NoError(t, err)

	chunks, err := s.SplitText("tiny enormousword ok")
	require.NoError(t, err)
	assert.Equal(t, []string{"tiny", "enormousword", "ok"}, chunks)
}

func TestSplitterWorksWithLangchainDocuments(t *testing.T) {
	s, err := NewRecursiveCharacter(11, 0)
	require.NoError(t, err)

	docs, err := textsplitter.CreateDocuments(s,
		[]string{"Hello world foo bar"},
		[]map[string]any{{"source": "https://example.com"}},
	)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Hello world", docs[0].PageContent)
	assert.Equal(t, "https://example.com", docs[1].Metadata["source"])
}
