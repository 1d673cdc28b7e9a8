package extract

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	sectionScanLines = 5
	maxHeadingRunes  = 100
)

var numberedHeading = regexp.MustCompile(`^(\d+(\.\d+)*\.?|[IVX]+\.)\s+\p{Lu}[\p{L} \-]{2,80}$`)

// DetectSection guesses the section heading of a page from its first lines:
// an all-caps line or a numbered heading such as "3.1 Experimental Setup".
// It returns "" when nothing looks like a heading.
func DetectSection(text string) string {
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seen++
		if seen > sectionScanLines {
			break
		}
		if len([]rune(line)) >= maxHeadingRunes {
			continue
		}
		if isUpperHeading(line) || numberedHeading.MatchString(line) {
			return line
		}
	}
	return ""
}

func isUpperHeading(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}
