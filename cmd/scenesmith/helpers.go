package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"scenesmith/internal/services"
)

func kindOf(err error) string {
	if err == nil {
		return ""
	}
	return services.Kind(err)
}

// readResponse reads a collaborator response from path, or stdin for "-".
func readResponse(path string, stdin io.Reader) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "cli", "read stdin", "", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "cli", "read response", path, err)
	}
	return string(data), nil
}

// sceneIDFromFile maps scenes/<id>.py to <id>.
func sceneIDFromFile(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// engineReady maps an ingest phase to the engine phase it feeds. Side
// phases have no engine counterpart.
func engineReady(phase string) (string, bool) {
	switch phase {
	case "plan", "training", "narration", "build_scenes":
		return phase, true
	default:
		return "", false
	}
}
