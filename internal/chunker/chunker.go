// Package chunker splits long memory content into passages for embedding.
package chunker

import (
	"strings"
	"unicode"
)

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures chunking behavior. Sizes are in bytes.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// Split breaks text into passages. Text no longer than MaxSize is returned
// as a single passage. Longer text is cut on paragraph boundaries, then on
// sentence boundaries, then on whitespace, and adjacent pieces are merged
// while they stay within TargetSize.
func Split(text string, opts Options) []string {
	if opts.TargetSize <= 0 || opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []string{text}
	}

	var pieces []string
	for _, para := range paragraphs(text) {
		if len(para) <= opts.MaxSize {
			pieces = append(pieces, para)
			continue
		}
		for _, s := range sentences(para) {
			if len(s) <= opts.MaxSize {
				pieces = append(pieces, s)
				continue
			}
			pieces = append(pieces, hardSplit(s, opts.TargetSize)...)
		}
	}
	return merge(pieces, opts.TargetSize)
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences splits after '.', '!' or '?' when followed by whitespace.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// hardSplit breaks text on whitespace into pieces of about size bytes.
func hardSplit(text string, size int) []string {
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(w) > size {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func merge(pieces []string, target int) []string {
	var out []string
	var cur string
	for _, p := range pieces {
		switch {
		case cur == "":
			cur = p
		case len(cur)+2+len(p) <= target:
			cur += "\n\n" + p
		default:
			out = append(out, cur)
			cur = p
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
