package bulk

import "testing"

func defaultOrder(layers ...string) []Component {
	order := []Component{
		{Kind: ComponentGlobalPrompt},
		{Kind: ComponentSectionPrompt},
	}
	for _, name := range layers {
		order = append(order, Component{Kind: ComponentLayer, Layer: name})
	}
	return order
}

func TestComposeJoinsNonEmptyFragments(t *testing.T) {
	sections := []Section{{Name: "vehicles", Lines: []string{"red_car"}, Prompt: "photo"}}
	layers := []Layer{{Name: "warm", Filter: "red", Prompt: "warm tones"}}

	got := Compose("red_car", defaultOrder("warm"), "", sections, layers)
	if got != "photo, warm tones" {
		t.Fatalf("unexpected prompt: %q", got)
	}
}

func TestComposeSkipsNonMatchingLayer(t *testing.T) {
	sections := []Section{{Name: "vehicles", Lines: []string{"blue_car"}, Prompt: "photo"}}
	layers := []Layer{{Name: "warm", Filter: "red", Prompt: "warm tones"}}

	got := Compose("blue_car", defaultOrder("warm"), "", sections, layers)
	if got != "photo" {
		t.Fatalf("unexpected prompt: %q", got)
	}
}

func TestComposeEmptyLayerFilterNeverMatches(t *testing.T) {
	layers := []Layer{{Name: "broken", Filter: "", Prompt: "should not appear"}}

	got := Compose("anything", defaultOrder("broken"), "base", nil, layers)
	if got != "base" {
		t.Fatalf("unexpected prompt: %q", got)
	}
}

func TestComposeRespectsOrder(t *testing.T) {
	layers := []Layer{{Name: "style", Filter: "car", Prompt: "flat icon"}}
	order := []Component{
		{Kind: ComponentLayer, Layer: "style"},
		{Kind: ComponentGlobalPrompt},
	}

	got := Compose("red_car", order, "white background", nil, layers)
	if got != "flat icon, white background" {
		t.Fatalf("unexpected prompt: %q", got)
	}
}

func TestComposeCaseInsensitiveByDefault(t *testing.T) {
	layers := []Layer{{Name: "warm", Filter: "RED", Prompt: "warm tones"}}

	if got := Compose("red_car", defaultOrder("warm"), "", nil, layers); got != "warm tones" {
		t.Fatalf("case-insensitive match failed: %q", got)
	}

	layers[0].CaseSensitive = true
	if got := Compose("red_car", defaultOrder("warm"), "", nil, layers); got != "" {
		t.Fatalf("case-sensitive match should fail: %q", got)
	}
}

func TestComposeDeterministic(t *testing.T) {
	sections := []Section{{Name: "s", Lines: []string{"red_car"}, Prompt: "photo"}}
	layers := []Layer{{Name: "warm", Filter: "red", Prompt: "warm tones"}}

	first := Compose("red_car", defaultOrder("warm"), "global", sections, layers)
	for i := 0; i < 10; i++ {
		if got := Compose("red_car", defaultOrder("warm"), "global", sections, layers); got != first {
			t.Fatalf("composition not deterministic: %q vs %q", got, first)
		}
	}
}

func TestComposeEmptyWhenNothingApplies(t *testing.T) {
	if got := Compose("red_car", defaultOrder(), "", nil, nil); got != "" {
		t.Fatalf("expected empty prompt, got %q", got)
	}
}
