// Package parser extracts titles, plain text, wikilinks, and task items
// from raw Markdown content. All functions are pure; nothing here touches
// the index.
package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe   = regexp.MustCompile(`\[\[(.*?)\]\]`)
	taskRe       = regexp.MustCompile(`(?m)^\s*[-*+]\s+\[([ xX])\]\s+(.+)$`)
	fencedRe     = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	quoteRe      = regexp.MustCompile(`(?m)^>\s?`)
	hruleRe      = regexp.MustCompile(`(?m)^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	listRe       = regexp.MustCompile(`(?m)^(\s*)([-*+]|\d+\.)\s+`)
	checkboxRe   = regexp.MustCompile(`\[[ xX]\]\s*`)
	emphasisRe   = regexp.MustCompile(`\*{1,3}|_{2,3}|~~`)
	blankRe      = regexp.MustCompile(`\n{4,}`)
)

// Task is a checkbox item extracted from document content.
type Task struct {
	Content   string
	Completed bool
}

// Result holds everything derived from one document's raw bytes.
type Result struct {
	Frontmatter map[string]any
	Title       string
	Body        string // content with frontmatter removed
	PlainText   string // markup stripped, feeds full-text index and embeddings
	Links       []string
	Tasks       []Task
}

// Parse derives title, plain text, links, and tasks from raw Markdown bytes.
// path supplies the filename-stem title fallback.
func Parse(data []byte, path string) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Title:       deriveTitle(fm, body, path),
		Body:        body,
		PlainText:   stripMarkup(body),
		Links:       ExtractLinks(body),
		Tasks:       ExtractTasks(body),
	}
}

// ExtractTitle returns the document title: frontmatter "title" field, else
// the first H1 heading, else the filename without extension.
func ExtractTitle(data []byte, path string) string {
	fm, body := splitFrontmatter(data)
	return deriveTitle(fm, body, path)
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Invalid or absent frontmatter means the entire
// content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

func deriveTitle(fm map[string]any, body, path string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractPlainText strips frontmatter and Markdown markup from raw content:
// code blocks and inline code are dropped, images are dropped, links keep
// their display text, wikilinks keep their display alias (or target), and
// structural markers are removed. Runs of three or more blank lines collapse
// to one.
func ExtractPlainText(content string) string {
	_, body := splitFrontmatter([]byte(content))
	return stripMarkup(body)
}

func stripMarkup(body string) string {
	s := fencedRe.ReplaceAllString(body, "")
	s = inlineCodeRe.ReplaceAllString(s, "")
	s = imageRe.ReplaceAllString(s, "")
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = wikilinkRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(m, "[["), "]]")
		if i := strings.Index(inner, "|"); i >= 0 {
			return strings.TrimSpace(inner[i+1:])
		}
		return strings.TrimSpace(inner)
	})
	s = headingRe.ReplaceAllString(s, "")
	s = hruleRe.ReplaceAllString(s, "")
	s = quoteRe.ReplaceAllString(s, "")
	s = listRe.ReplaceAllString(s, "$1")
	s = checkboxRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ExtractLinks returns deduplicated wikilink targets in first-seen order.
// Aliases are normalised: [[Target|Display]] yields Target.
func ExtractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// ExtractTasks returns checkbox list items ("- [ ] text", "- [x] text")
// found in body, in document order.
func ExtractTasks(body string) []Task {
	matches := taskRe.FindAllStringSubmatch(body, -1)
	out := make([]Task, 0, len(matches))
	for _, m := range matches {
		out = append(out, Task{
			Content:   strings.TrimSpace(m[2]),
			Completed: m[1] == "x" || m[1] == "X",
		})
	}
	return out
}
