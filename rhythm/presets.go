package rhythm

import (
	"fmt"
	"sort"
)

// Preset names.
const (
	PresetSimple = "simple"
	PresetHarder = "harder"
	PresetAnthem = "anthem"
)

// FinishedOutro closes the longer presets.
const FinishedOutro = "Allocation pattern finished."

// Simple is a four-on-the-floor beat with an accented kick.
func Simple() Pattern {
	return Pattern{
		Name: PresetSimple,
		Events: []Event{
			Note(2, 250), // kick
			Note(1, 250), // hi-hat
			Note(2, 250), // snare
			Note(1, 250), // hi-hat
			Note(4, 500), // accented kick
			Note(1, 250),
			Note(2, 250),
			Note(1, 250),
		},
		Repetitions: 10,
	}
}

// Harder is a longer phrase in four parts that ends with a rest.
func Harder() Pattern {
	return Pattern{
		Name: PresetHarder,
		Intro: "The pattern of allocations can be edited below " +
			"to create different sounds.",
		Events: []Event{
			// staccato
			Note(2, 250),
			Note(1, 125),
			Note(1, 125),
			Note(2, 250),
			Note(4, 500),

			// melodic
			Note(1, 500),
			Note(2, 250),
			Note(3, 250),
			Note(4, 500),

			// fast
			Note(2, 125),
			Note(1, 125),
			Note(2, 125),
			Note(1, 125),
			Note(3, 250),
			Note(2, 250),
			Note(4, 500),

			// sustained
			Note(6, 1000),
			Rest(1000),
		},
		Outro:       FinishedOutro,
		Repetitions: 2,
	}
}

// Anthem follows the rhythm of the opening phrase of the Ukrainian national
// anthem.
func Anthem() Pattern {
	return Pattern{
		Name: PresetAnthem,
		Intro: "The pattern is designed to mimic the Ukrainian " +
			"national anthem's rhythm.",
		Events: []Event{
			Note(2, 250),
			Note(2, 250),
			Note(4, 500),
			Note(2, 250),
			Note(4, 500),
			Note(3, 250),
			Note(3, 250),
			Note(5, 750),
			Rest(500),

			Note(2, 250),
			Note(4, 500),
			Note(2, 250),
			Note(2, 250),
			Note(4, 500),
			Note(6, 1000),
			Rest(1000),
		},
		Outro:       FinishedOutro,
		Repetitions: 3,
	}
}

var presets = map[string]func() Pattern{
	PresetSimple: Simple,
	PresetHarder: Harder,
	PresetAnthem: Anthem,
}

// Program returns the presets in the order the default program plays them.
func Program() []Pattern {
	return []Pattern{Simple(), Harder(), Anthem()}
}

// Lookup returns a fresh copy of the named preset.
func Lookup(name string) (Pattern, error) {
	build, ok := presets[name]
	if !ok {
		return Pattern{}, fmt.Errorf(
			"unknown preset %q, available presets: %v", name, PresetNames())
	}

	return build(), nil
}

// PresetNames lists the preset names in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
