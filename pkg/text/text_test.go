package text

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClean(t *testing.T) {
	long := "Acme Robotics raised a Series B round led by Example Ventures last spring."
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "keeps long paragraphs",
			in:   long + "\nshort line\n" + long,
			want: long + "\n\n" + long,
		},
		{
			name: "drops noise lines",
			in:   long + "\nPlease read our Cookie Policy before continuing to use this website today.\n" + "Subscribe to our weekly newsletter for the latest robotics industry updates",
			want: long,
		},
		{
			name: "falls back to collapsed input",
			in:   "  tiny \n\n text  ",
			want: "tiny text",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunkShortTextVerbatim(t *testing.T) {
	in := "  short text with spaces  "
	got := Chunk(in, 100, 10)
	if len(got) != 1 || got[0] != in {
		t.Fatalf("Chunk() = %q, want single verbatim chunk", got)
	}
	if got := Chunk("   ", 100, 10); got != nil {
		t.Fatalf("Chunk(blank) = %q, want nil", got)
	}
}

func TestChunkPrefersLateBreak(t *testing.T) {
	// break at rune 89 lies past 70% of a 100 rune window
	in := strings.Repeat("a", 89) + "." + strings.Repeat("b", 60)
	got := Chunk(in, 100, 10)
	if len(got) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(got))
	}
	if got[0] != strings.Repeat("a", 89)+"." {
		t.Fatalf("first chunk = %q, want cut after the period", got[0])
	}
	if !strings.HasPrefix(got[1], strings.Repeat("a", 9)+".") {
		t.Fatalf("second chunk should start inside the overlap, got %q", got[1][:20])
	}
}

func TestChunkIgnoresEarlyBreak(t *testing.T) {
	in := strings.Repeat("a", 20) + "." + strings.Repeat("b", 200)
	got := Chunk(in, 100, 0)
	if utf8.RuneCountInString(got[0]) != 100 {
		t.Fatalf("first chunk has %d runes, want 100", utf8.RuneCountInString(got[0]))
	}
}

func TestChunkCoversInput(t *testing.T) {
	in := strings.Repeat("市場分析。", 500)
	got := Chunk(in, 300, 50)
	for i, c := range got {
		if c == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if utf8.RuneCountInString(c) > 300 {
			t.Fatalf("chunk %d exceeds window", i)
		}
	}
	if !strings.HasSuffix(in, got[len(got)-1]) {
		t.Fatalf("last chunk does not reach the end of the input")
	}
}

func TestNormalizerPrepareCapsChunks(t *testing.T) {
	para := strings.Repeat("Robotics companies expand warehouse automation worldwide. ", 4)
	in := strings.Repeat(para+"\n", 40)
	n := NewNormalizer()
	n.ChunkSize = 500
	n.ChunkOverlap = 50
	n.MaxChunks = 3
	if got := n.Prepare(in); len(got) != 3 {
		t.Fatalf("Prepare() returned %d chunks, want 3", len(got))
	}
	if got := n.Prepare(""); len(got) != 0 {
		t.Fatalf("Prepare(empty) returned %d chunks", len(got))
	}
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		max   int
		want  []string
	}{
		{name: "drops stopwords", query: "What is the market for warehouse robots?", max: 5, want: []string{"market", "warehouse", "robots"}},
		{name: "caps at five", query: "alpha beta gamma delta epsilon zeta eta", max: 10, want: []string{"alpha", "beta", "gamma", "delta", "epsilon"}},
		{name: "respects smaller max", query: "alpha beta gamma", max: 2, want: []string{"alpha", "beta"}},
		{name: "drops single runes and duplicates", query: "a b AI ai, robots", max: 5, want: []string{"ai", "robots"}},
		{name: "chinese particles", query: "電動車 的 市場", max: 5, want: []string{"電動車", "市場"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Keywords(tt.query, tt.max); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Keywords() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: nil},
		{name: "multiple", text: "Hello world. This is a test! How are you?", want: []string{"Hello world.", "This is a test!", "How are you?"}},
		{name: "blank lines", text: "First.\n\nSecond", want: []string{"First.", "Second"}},
		{name: "joined lines", text: "This is a long\nsentence.", want: []string{"This is a long sentence."}},
		{name: "decimal", text: "Revenue grew 3.5 percent. Costs fell.", want: []string{"Revenue grew 3.5 percent.", "Costs fell."}},
		{name: "list marker", text: "1. First item is here.", want: []string{"1. First item is here."}},
		{name: "cjk", text: "營收成長。成本下降！", want: []string{"營收成長。", "成本下降！"}},
		{name: "quoted", text: `He said "yes." Then left.`, want: []string{`He said "yes."`, "Then left."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitSentences(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("市場分析", 2); got != "市場" {
		t.Fatalf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("Truncate() = %q", got)
	}
}
