package validate

import (
	"fmt"
	"sort"

	"scenesmith/internal/pysource"
	"scenesmith/internal/services"
)

const phaseNarration = "narration"

// ScriptVariable is the module-level dict the narration script must define.
const ScriptVariable = "SCRIPT"

// NarrationScript is a structurally valid narration script.
type NarrationScript struct {
	Keys []string
}

// Narration parses code as the narration script: it must parse and assign a
// dict literal with string-literal keys and string values to SCRIPT.
func Narration(code string) (NarrationScript, error) {
	src, err := pysource.ParseString(pysource.Dedent(code))
	if err != nil {
		return NarrationScript{}, services.Structural(phaseNarration, "narration script could not be parsed", err)
	}
	defer src.Close()
	if err := src.Err(); err != nil {
		return NarrationScript{}, services.Structural(phaseNarration, "narration script does not parse", err)
	}
	dict, ok := src.DictAssignment(ScriptVariable)
	if !ok {
		return NarrationScript{}, services.Structural(phaseNarration, fmt.Sprintf("narration script does not assign a dict literal to %s", ScriptVariable), nil)
	}
	if dict.NonLiteralKeys > 0 {
		return NarrationScript{}, services.Structural(phaseNarration, fmt.Sprintf("%s has %d keys that are not string literals", ScriptVariable, dict.NonLiteralKeys), nil)
	}
	if dict.NonStringValues > 0 {
		return NarrationScript{}, services.Structural(phaseNarration, fmt.Sprintf("%s has %d values that are not strings", ScriptVariable, dict.NonStringValues), nil)
	}
	return NarrationScript{Keys: dict.Keys}, nil
}

// MissingKeys returns the required keys the script does not define, sorted.
func MissingKeys(script NarrationScript, required []string) []string {
	have := make(map[string]struct{}, len(script.Keys))
	for _, key := range script.Keys {
		have[key] = struct{}{}
	}
	var missing []string
	for _, key := range required {
		if _, ok := have[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
