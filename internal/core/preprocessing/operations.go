package preprocessing

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	disallowedRunes = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// CleanText replaces everything except letters, digits, underscores,
// whitespace and basic sentence punctuation with a space, then collapses
// whitespace.
func CleanText(text string) string {
	text = disallowedRunes.ReplaceAllString(text, " ")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ChunkText splits text in two passes. Paragraphs (separated by a blank line)
// are merged into segments of at most chunkSize runes, then every segment is
// cut into windows of tokensPerChunk tokens that overlap by chunkOverlap
// tokens.
func ChunkText(text string, chunkSize, chunkOverlap, tokensPerChunk int) []string {
	var chunks []string
	for _, segment := range mergeParagraphs(text, chunkSize) {
		chunks = append(chunks, tokenWindows(segment, tokensPerChunk, chunkOverlap)...)
	}
	return chunks
}

// ChunkArticle groups whole sentences into chunks of at most maxLength runes.
// A chunk shorter than minLength is dropped when the next sentence does not
// fit, and so is a short trailing chunk.
func ChunkArticle(text string, minLength, maxLength int) []string {
	var (
		extracts []string
		current  strings.Builder
		curLen   int
	)
	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		n := utf8.RuneCountInString(sentence)
		if curLen+n > maxLength {
			if curLen >= minLength {
				extracts = append(extracts, strings.TrimSpace(current.String()))
			}
			current.Reset()
			curLen = 0
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
		curLen += n + 1
	}
	if curLen >= minLength {
		extracts = append(extracts, strings.TrimSpace(current.String()))
	}
	return extracts
}

// ChunkDocument is ChunkArticle under the name used for generic documents.
func ChunkDocument(text string, minLength, maxLength int) []string {
	return ChunkArticle(text, minLength, maxLength)
}

// splitSentences breaks text at a whitespace rune that follows '.', '!' or
// '?', except after initials ("U.S. ", "p.m. ") and title abbreviations
// ("Dr. ", "Mr. ").
func splitSentences(text string) []string {
	rs := []rune(text)
	var out []string
	start := 0
	for i := 1; i < len(rs); i++ {
		if !unicode.IsSpace(rs[i]) {
			continue
		}
		switch rs[i-1] {
		case '.', '!', '?':
		default:
			continue
		}
		if i >= 4 && isWordRune(rs[i-4]) && rs[i-3] == '.' && isWordRune(rs[i-2]) {
			continue
		}
		if i >= 3 && isASCIIUpper(rs[i-3]) && isASCIILower(rs[i-2]) && rs[i-1] == '.' {
			continue
		}
		out = append(out, string(rs[start:i]))
		start = i + 1
	}
	return append(out, string(rs[start:]))
}

func mergeParagraphs(text string, chunkSize int) []string {
	const sep = "\n\n"

	var pieces []string
	for _, p := range strings.Split(text, sep) {
		if p = strings.TrimSpace(p); p != "" {
			pieces = append(pieces, hardSplit(p, chunkSize)...)
		}
	}

	var (
		out    []string
		cur    string
		curLen int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		switch {
		case cur == "":
			cur, curLen = p, n
		case curLen+len(sep)+n <= chunkSize:
			cur += sep + p
			curLen += len(sep) + n
		default:
			out = append(out, cur)
			cur, curLen = p, n
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// hardSplit cuts a paragraph longer than size runes, preferring the last
// whitespace inside the limit.
func hardSplit(p string, size int) []string {
	if size <= 0 {
		return []string{p}
	}
	rs := []rune(p)
	var out []string
	for len(rs) > size {
		cut := size
		for i := size - 1; i > 0; i-- {
			if unicode.IsSpace(rs[i]) {
				cut = i
				break
			}
		}
		if head := strings.TrimSpace(string(rs[:cut])); head != "" {
			out = append(out, head)
		}
		rs = []rune(strings.TrimLeftFunc(string(rs[cut:]), unicode.IsSpace))
	}
	if len(rs) > 0 {
		out = append(out, string(rs))
	}
	return out
}

type span struct{ start, end int }

// tokenize returns byte spans of word runs and of single punctuation runes.
func tokenize(s string) []span {
	var (
		spans  []span
		inWord bool
	)
	for i, r := range s {
		switch {
		case isWordRune(r):
			if !inWord {
				spans = append(spans, span{start: i})
				inWord = true
			}
			spans[len(spans)-1].end = i + utf8.RuneLen(r)
		case unicode.IsSpace(r):
			inWord = false
		default:
			inWord = false
			spans = append(spans, span{start: i, end: i + utf8.RuneLen(r)})
		}
	}
	return spans
}

func tokenWindows(segment string, tokensPerChunk, overlap int) []string {
	tokens := tokenize(segment)
	if len(tokens) == 0 {
		return nil
	}
	if tokensPerChunk <= 0 || tokensPerChunk >= len(tokens) {
		return []string{segment[tokens[0].start:tokens[len(tokens)-1].end]}
	}
	step := tokensPerChunk - overlap
	if step < 1 {
		step = 1
	}

	var out []string
	for start := 0; start < len(tokens); start += step {
		end := start + tokensPerChunk
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, segment[tokens[start].start:tokens[end-1].end])
		if end == len(tokens) {
			break
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
