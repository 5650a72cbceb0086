package bulk

import "strings"

// ComponentKind identifies one source of prompt text in the composition order.
type ComponentKind string

const (
	ComponentGlobalPrompt  ComponentKind = "global_prompt"
	ComponentSectionPrompt ComponentKind = "section_prompt"
	ComponentLayer         ComponentKind = "commonality_layer"
)

// Component is one slot in the prompt composition order. Layer is set only for
// ComponentLayer entries and names the layer it references.
type Component struct {
	Kind  ComponentKind `json:"type"`
	Layer string        `json:"name,omitempty"`
}

// Section groups a set of combination lines under a shared prompt fragment.
// Sections never share lines; AddSection on the settings document enforces it.
type Section struct {
	Name   string   `json:"name"`
	Lines  []string `json:"lines"`
	Prompt string   `json:"prompt"`
}

// Contains reports whether the section holds the given combination line.
func (s Section) Contains(line string) bool {
	for _, l := range s.Lines {
		if l == line {
			return true
		}
	}
	return false
}

// Layer contributes its prompt fragment, and optionally a filename suffix,
// to every combination whose text contains the filter substring.
type Layer struct {
	Name          string `json:"name"`
	Filter        string `json:"filter_keyword"`
	Prompt        string `json:"prompt"`
	Suffix        string `json:"suffix"`
	CaseSensitive bool   `json:"case_sensitive"`
}

// Matches reports whether the layer applies to the combination line. An empty
// filter never matches.
func (l Layer) Matches(line string) bool {
	if l.Filter == "" {
		return false
	}
	if l.CaseSensitive {
		return strings.Contains(line, l.Filter)
	}
	return strings.Contains(strings.ToLower(line), strings.ToLower(l.Filter))
}
