package deps

// ProjectTools lists the tools the render and assembly steps run outside
// scenesmith. They are optional because scenesmith only checks for their
// artifacts.
func ProjectTools() []Requirement {
	return []Requirement{
		{
			Name:        "Manim",
			Command:     "manim",
			Description: "Renders scene modules into videos",
			Optional:    true,
		},
		{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Concatenates scene videos into the final video",
			Optional:    true,
		},
		{
			Name:        "Python",
			Command:     "python3",
			Description: "Runs the narration script and voiceover precache",
			Optional:    true,
		},
	}
}

// MissingRequired reports whether any non-optional requirement is unavailable.
func MissingRequired(statuses []Status) bool {
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			return true
		}
	}
	return false
}
