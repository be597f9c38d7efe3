package state

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"scenesmith/internal/artifact"
)

// ReadBestEffort returns the first JSON object recoverable from path. A
// missing, unreadable or unrecoverable file yields an empty map.
func ReadBestEffort(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}
	}
	return DecodeBestEffort(data)
}

// DecodeBestEffort decodes the first JSON object in data. Anything after
// that object is ignored. A truncated leading object keeps the members that
// decoded completely. Otherwise the first balanced-brace span that decodes
// and carries at least one record field is used, so a nested object such as
// flags is never mistaken for the record.
func DecodeBestEffort(data []byte) map[string]any {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	dec := json.NewDecoder(bytes.NewReader(data))
	var first any
	if err := dec.Decode(&first); err == nil {
		if obj, ok := first.(map[string]any); ok {
			return obj
		}
	}
	if obj := leadingMembers(data); len(obj) > 0 {
		return obj
	}
	for _, candidate := range artifact.ObjectCandidates(string(data)) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil && hasRecordField(obj) {
			return obj
		}
	}
	return map[string]any{}
}

// recordFields are the top-level keys of a serialized ProjectState.
var recordFields = []string{
	"project_name", "topic", "phase", "created_at", "updated_at", "run_count",
	"plan_file", "narration_file", "voice_config_file", "scenes",
	"current_scene_index", "errors", "history", "flags",
}

func hasRecordField(obj map[string]any) bool {
	for _, key := range recordFields {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

// leadingMembers reads the members of an object at the start of data up to
// the first one that fails to decode.
func leadingMembers(data []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	obj := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		key, ok := tok.(string)
		if !ok {
			break
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			break
		}
		obj[key] = value
	}
	return obj
}

// Normalize coerces raw into a schema-valid record stamped with now. It
// never fails: wrong-typed or missing fields take their defaults, unknown
// keys are dropped.
func Normalize(raw map[string]any, now time.Time) ProjectState {
	now = now.UTC()
	st := ProjectState{
		ProjectName:     asString(raw["project_name"]),
		Topic:           asString(raw["topic"]),
		Phase:           PhaseInit,
		CreatedAt:       asTime(raw["created_at"], now),
		UpdatedAt:       now,
		RunCount:        asCount(raw["run_count"]),
		PlanFile:        StringRef(asString(raw["plan_file"])),
		NarrationFile:   StringRef(asString(raw["narration_file"])),
		VoiceConfigFile: StringRef(asString(raw["voice_config_file"])),
		Scenes:          normalizeScenes(raw["scenes"]),
		Errors:          normalizeErrors(raw["errors"]),
		History:         normalizeHistory(raw["history"]),
		Flags:           normalizeFlags(raw["flags"]),
	}
	if phase, ok := ParsePhase(asString(raw["phase"])); ok {
		st.Phase = phase
	}
	st.CurrentSceneIndex = min(asCount(raw["current_scene_index"]), len(st.Scenes))
	return st
}

func normalizeScenes(value any) []SceneRecord {
	list, _ := value.([]any)
	out := make([]SceneRecord, 0, len(list))
	taken := make(map[string]struct{}, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		scene := SceneRecord{
			ID:                asString(obj["id"]),
			Title:             asString(obj["title"]),
			NarrationKey:      asString(obj["narration_key"]),
			NarrationSummary:  asString(obj["narration_summary"]),
			EstimatedWords:    asCount(obj["estimated_words"]),
			EstimatedDuration: asNonNegative(obj["estimated_duration"]),
			Animations:        asStringList(obj["animations"]),
			Complexity:        asString(obj["complexity"]),
			RiskFlags:         asStringSet(obj["risk_flags"]),
			File:              asString(obj["file"]),
			ClassName:         asString(obj["class_name"]),
			VideoFile:         asString(obj["video_file"]),
		}
		switch status := SceneStatus(strings.ToLower(asString(obj["status"]))); status {
		case SceneStatusBuilt, SceneStatusPending:
			scene.Status = status
		case "":
		default:
			scene.Status = SceneStatusPending
		}
		if verification, ok := obj["verification"].(map[string]any); ok && len(verification) > 0 {
			scene.Verification = verification
		}

		if !IsCanonicalSceneID(scene.ID) {
			rebuilt := CanonicalSceneID(len(out)+1, scene.Title)
			if scene.NarrationKey == scene.ID {
				scene.NarrationKey = ""
			}
			scene.ID = rebuilt
		}
		scene.ID = uniqueID(scene.ID, taken)
		taken[scene.ID] = struct{}{}
		if scene.NarrationKey == "" {
			scene.NarrationKey = scene.ID
		}
		out = append(out, scene)
	}
	return out
}

// normalizeErrors keeps the first occurrence of each error by its serialized
// form. Non-string entries are serialized as JSON.
func normalizeErrors(value any) []string {
	list, _ := value.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		var msg string
		switch v := item.(type) {
		case nil:
			continue
		case string:
			msg = strings.TrimSpace(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				continue
			}
			msg = string(data)
		}
		if msg == "" || slices.Contains(out, msg) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func normalizeHistory(value any) []HistoryEvent {
	list, _ := value.([]any)
	out := make([]HistoryEvent, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		event := HistoryEvent{
			Timestamp:  asTime(obj["timestamp"], time.Time{}),
			Run:        asCount(obj["run"]),
			RequestID:  asString(obj["request_id"]),
			SceneIndex: asCount(obj["scene_index"]),
			Note:       asString(obj["note"]),
		}
		event.From, _ = ParsePhase(asString(obj["from"]))
		event.To, _ = ParsePhase(asString(obj["to"]))
		out = append(out, event)
	}
	return out
}

func normalizeFlags(value any) Flags {
	obj, _ := value.(map[string]any)
	return Flags{
		NeedsHumanReview: asBool(obj["needs_human_review"]),
		DryRun:           asBool(obj["dry_run"]),
		ForceReplan:      asBool(obj["force_replan"]),
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func asNumber(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asCount coerces to a non-negative int.
func asCount(value any) int {
	f, ok := asNumber(value)
	if !ok || f <= 0 {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func asNonNegative(value any) float64 {
	f, ok := asNumber(value)
	if !ok || f < 0 {
		return 0
	}
	return f
}

func asBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		}
	}
	return false
}

func asTime(value any, fallback time.Time) time.Time {
	s, ok := value.(string)
	if !ok {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return parsed.UTC()
}

func asStringList(value any) []string {
	list, _ := value.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asStringSet(value any) []string {
	out := asStringList(value)
	sort.Strings(out)
	return slices.Compact(out)
}
