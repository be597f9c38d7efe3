package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"scenesmith/internal/state"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// phaseKind maps a project phase to a status colour.
func phaseKind(st state.ProjectState) statusKind {
	switch {
	case st.Phase == state.PhaseError:
		return statusError
	case st.Flags.NeedsHumanReview:
		return statusWarn
	case st.Phase == state.PhaseComplete:
		return statusOK
	default:
		return statusInfo
	}
}

// projectLines renders the summary block of the status command.
func projectLines(st state.ProjectState, colorize bool) []string {
	lines := renderSectionHeader("Project", colorize)
	lines = append(lines,
		renderStatusLine("Name", statusInfo, st.ProjectName, colorize),
		renderStatusLine("Topic", statusInfo, st.Topic, colorize),
		renderStatusLine("Phase", phaseKind(st), string(st.Phase), colorize),
	)

	built := st.BuiltCount()
	scenesKind := statusInfo
	if len(st.Scenes) > 0 && built == len(st.Scenes) {
		scenesKind = statusOK
	}
	lines = append(lines, renderStatusLine("Scenes", scenesKind, fmt.Sprintf("%d of %d built", built, len(st.Scenes)), colorize))

	reviewKind := statusOK
	if st.Flags.NeedsHumanReview {
		reviewKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Human review", reviewKind, yesNo(st.Flags.NeedsHumanReview), colorize))
	lines = append(lines, renderStatusLine("Runs", statusInfo, fmt.Sprintf("%d (updated %s)", st.RunCount, st.UpdatedAt.Local().Format("2006-01-02 15:04:05")), colorize))

	if n := len(st.Errors); n > 0 {
		lines = append(lines, renderStatusLine("Errors", statusError, fmt.Sprintf("%d recorded; latest: %s", n, st.Errors[n-1]), colorize))
	} else {
		lines = append(lines, renderStatusLine("Errors", statusOK, "none", colorize))
	}
	return lines
}

// sceneRows renders one table row per scene, marking the cursor.
func sceneRows(st state.ProjectState) [][]string {
	rows := make([][]string, 0, len(st.Scenes))
	for i, scene := range st.Scenes {
		marker := ""
		if i == st.CurrentSceneIndex && st.Phase == state.PhaseBuildScenes {
			marker = ">"
		}
		status := string(scene.Status)
		if status == "" {
			status = string(state.SceneStatusPending)
		}
		rows = append(rows, []string{
			marker,
			fmt.Sprintf("%d", i+1),
			scene.ID,
			scene.Title,
			fmt.Sprintf("%.0fs", scene.EstimatedDuration),
			status,
			scene.ClassName,
		})
	}
	return rows
}
