package bulk

import "strings"

// Compose builds the final prompt for one combination line by walking the
// component order and collecting each non-empty fragment. The result is the
// fragments joined with ", "; an empty result means no component produced text
// for this line.
func Compose(line string, order []Component, globalPrompt string, sections []Section, layers []Layer) string {
	fragments := make([]string, 0, len(order))

	for _, comp := range order {
		var fragment string
		switch comp.Kind {
		case ComponentGlobalPrompt:
			fragment = globalPrompt
		case ComponentSectionPrompt:
			for _, sec := range sections {
				if sec.Contains(line) {
					fragment = sec.Prompt
					break
				}
			}
		case ComponentLayer:
			for _, layer := range layers {
				if layer.Name != comp.Layer {
					continue
				}
				if layer.Matches(line) {
					fragment = layer.Prompt
				}
				break
			}
		}
		if fragment = strings.TrimSpace(fragment); fragment != "" {
			fragments = append(fragments, fragment)
		}
	}

	return strings.Join(fragments, ", ")
}
