package chunker

import (
	"regexp"
	"strings"
)

// boilerplateLines matches whole-line boilerplate the original project
// strips before chunking: language pickers, search prompts, nav links,
// and horizontal-rule separators (§4.7 step 1).
var boilerplateLines = regexp.MustCompile(`(?m)^(?:English|Search\.\.\.|Ctrl K|Search|Navigation|On this page|\* \* \*|\[.*\]\(/.*\))$`)

var (
	htmlImgTag       = regexp.MustCompile(`<img[^>]+>`)
	markdownImage    = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	referenceImage   = regexp.MustCompile(`(?m)^\[.*?\]:\s*http.*$`)
	base64Image      = regexp.MustCompile(`!\[.*?\]\(data:image/[^;]+;base64,[^)]+\)`)
	danglingImageRef = regexp.MustCompile(`(?mi)\[.*?\]:\s*\S*\.(png|jpg|jpeg|gif|svg|webp)`)
	blankLineRun     = regexp.MustCompile(`\n{3,}`)
)

// removeImages strips every form of markdown/HTML image reference (§4.7
// step 1): inline, reference-style, base64, and any remaining bare link
// pointing at an image file.
func removeImages(content string) string {
	content = htmlImgTag.ReplaceAllString(content, "")
	content = markdownImage.ReplaceAllString(content, "")
	content = referenceImage.ReplaceAllString(content, "")
	content = base64Image.ReplaceAllString(content, "")
	content = danglingImageRef.ReplaceAllString(content, "")
	return content
}

// removeBoilerplate strips known boilerplate lines and collapses runs of
// blank lines down to at most two (§4.7 step 1).
func removeBoilerplate(content string) string {
	content = boilerplateLines.ReplaceAllString(content, "")
	content = blankLineRun.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

var (
	markdownLink  = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	inlineCodeRun = regexp.MustCompile("`([^`\n]+)`")
)

// cleanHeaderText strips zero-width spaces, unwraps markdown links to their
// link text, drops any embedded image, and blanks out text that looks like
// a shell shebang mistaken for a header (§4.7 section identification).
func cleanHeaderText(text string) string {
	text = strings.ReplaceAll(text, "​", "")
	text = markdownLink.ReplaceAllString(text, "$1")
	text = markdownImage.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "!/") || strings.HasPrefix(text, "#!") {
		return ""
	}
	return text
}

// rewriteInlineCode rewrites `code` spans to <code>code</code> so backticked
// prose is never misread as a fence by downstream consumers (§4.7 step 2).
func rewriteInlineCode(line string) string {
	return inlineCodeRun.ReplaceAllString(line, "<code>$1</code>")
}

// Preprocess applies the full step-1 pipeline: image removal, boilerplate
// stripping, and blank-line normalization.
func Preprocess(content string) string {
	content = removeBoilerplate(content)
	content = removeImages(content)
	return content
}
