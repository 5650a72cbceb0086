package bulk

import (
	"strconv"
	"strings"
)

const (
	slugMaxLen       = 50
	defaultSubfolder = "Uncategorized"
)

// PlanOptions carries the filename settings for one combination: the static
// run-wide parts plus the suffixes its matching layers contribute.
type PlanOptions struct {
	Prefix       string
	Suffixes     []string
	SingleFolder bool
	Exclusions   []string
}

// SuffixesFor collects the filename suffixes contributed by every layer that
// matches the line, in layer order.
func SuffixesFor(line string, layers []Layer) []string {
	var suffixes []string
	for _, layer := range layers {
		if layer.Suffix == "" || !layer.Matches(line) {
			continue
		}
		suffixes = append(suffixes, layer.Suffix)
	}
	return suffixes
}

// PlanFile computes the relative target directory and file name for one
// iteration of a combination. The directory is empty in single-folder mode.
func PlanFile(line string, iteration int, opts PlanOptions) (dir, name string) {
	parts := make([]string, 0, 3+len(opts.Suffixes))
	parts = append(parts, strconv.Itoa(iteration))
	if p := strings.TrimSpace(opts.Prefix); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, Slugify(line))
	for _, s := range opts.Suffixes {
		if s = strings.Trim(strings.TrimSpace(s), "_"); s != "" {
			parts = append(parts, s)
		}
	}
	name = strings.Join(parts, "_") + ".png"

	if !opts.SingleFolder {
		dir = SubfolderFor(line, opts.Exclusions)
	}
	return dir, name
}

// Slugify reduces a combination line to a filesystem-safe token: every
// non-alphanumeric byte becomes an underscore, runs collapse to one, leading
// and trailing underscores are trimmed, and the result is capped at 50 runes.
func Slugify(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	slug := collapseUnderscores(b.String())
	slug = strings.Trim(slug, "_")
	if runes := []rune(slug); len(runes) > slugMaxLen {
		slug = strings.Trim(string(runes[:slugMaxLen]), "_")
	}
	return slug
}

// SubfolderFor derives a category folder from the line's underscore-separated
// tokens, dropping any token that matches an exclusion keyword
// case-insensitively. Lines with no remaining tokens fall into Uncategorized.
func SubfolderFor(line string, exclusions []string) string {
	kept := make([]string, 0, 4)
	for _, tok := range strings.Split(line, "_") {
		tok = strings.TrimSpace(tok)
		if tok == "" || isExcluded(tok, exclusions) {
			continue
		}
		kept = append(kept, tok)
	}
	folder := sanitizeFolder(strings.Join(kept, "_"))
	if folder == "" {
		return defaultSubfolder
	}
	return folder
}

func isExcluded(tok string, exclusions []string) bool {
	for _, ex := range exclusions {
		if strings.EqualFold(tok, strings.TrimSpace(ex)) {
			return true
		}
	}
	return false
}

func sanitizeFolder(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isAlnum(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
