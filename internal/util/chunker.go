package util

import (
	"strings"

	"paperchat/internal/models"
)

const pageSeparator = "\n\n"

// PageChunk is a chunk of concatenated page text together with the page that
// contributes most of its runes.
type PageChunk struct {
	Text    string
	Page    int
	Section string
}

// ChunkText splits text into windows of at most chunkSize runes that overlap
// by about overlap runes, cutting at paragraph, sentence, line or word
// boundaries found in the last 30% of each window.
func ChunkText(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	out := make([]string, 0)
	for _, sp := range chunkSpans(runes, chunkSize, overlap) {
		out = append(out, strings.TrimSpace(string(runes[sp[0]:sp[1]])))
	}
	return out
}

// ChunkPages joins pages with a blank line, chunks the result with ChunkText
// rules and tags each chunk with its majority page. Ties go to the earlier
// page.
func ChunkPages(pages []models.Page, chunkSize, overlap int) []PageChunk {
	type span struct {
		start, end int
		page       models.Page
	}
	var b strings.Builder
	spans := make([]span, 0, len(pages))
	pos := 0
	for i, p := range pages {
		if i > 0 {
			b.WriteString(pageSeparator)
			pos += len([]rune(pageSeparator))
		}
		n := len([]rune(p.Text))
		b.WriteString(p.Text)
		spans = append(spans, span{start: pos, end: pos + n, page: p})
		pos += n
	}
	runes := []rune(b.String())

	out := make([]PageChunk, 0)
	for _, sp := range chunkSpans(runes, chunkSize, overlap) {
		best := -1
		bestOverlap := 0
		for i, ps := range spans {
			lo := max(sp[0], ps.start)
			hi := min(sp[1], ps.end)
			if hi-lo > bestOverlap {
				best = i
				bestOverlap = hi - lo
			}
		}
		c := PageChunk{Text: strings.TrimSpace(string(runes[sp[0]:sp[1]]))}
		if best >= 0 {
			c.Page = spans[best].page.Number
			c.Section = spans[best].page.Section
		}
		out = append(out, c)
	}
	return out
}

// chunkSpans returns [start, end) rune offsets of every non-blank chunk.
func chunkSpans(runes []rune, chunkSize, overlap int) [][2]int {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	n := len(runes)
	out := make([][2]int, 0, n/chunkSize+1)
	pos := 0
	for pos < n {
		end := pos + chunkSize
		if end > n {
			end = n
		}
		brk := findBreakPoint(runes, pos, end)
		if strings.TrimSpace(string(runes[pos:brk])) != "" {
			out = append(out, [2]int{pos, brk})
		}
		if brk >= n {
			break
		}
		next := brk - overlap
		if next <= pos {
			next = brk
		}
		pos = next
	}
	return out
}

func findBreakPoint(runes []rune, start, end int) int {
	if end >= len(runes) {
		return len(runes)
	}
	searchStart := start + (end-start)*7/10
	window := runes[searchStart:end]

	if idx := lastIndexRunes(window, []rune(pageSeparator)); idx != -1 {
		return searchStart + idx + 2
	}
	for i := len(window) - 2; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			if window[i+1] == ' ' || window[i+1] == '\n' {
				return searchStart + i + 1
			}
		}
	}
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			return searchStart + i + 1
		}
	}
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return searchStart + i + 1
		}
	}
	return end
}

func lastIndexRunes(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
