package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"scenesmith/internal/services"
)

const phasePlan = "plan"

// Plan is a structurally valid plan artifact.
type Plan struct {
	Title       string
	Description string
	Scenes      []PlanScene
}

// PlanScene is one entry of Plan.Scenes. ID is whatever the collaborator
// suggested; it is never used as the canonical scene ID.
type PlanScene struct {
	ID                string
	Title             string
	NarrationSummary  string
	EstimatedDuration float64
	EstimatedWords    int
	Animations        []string
	Complexity        string
	RiskFlags         []string
}

// TotalDuration sums the estimated scene durations.
func (p Plan) TotalDuration() float64 {
	var total float64
	for _, scene := range p.Scenes {
		total += scene.EstimatedDuration
	}
	return total
}

var (
	planKeys  = map[string]bool{"title": true, "description": true, "scenes": true}
	sceneKeys = map[string]bool{
		"id": true, "title": true, "narration_summary": true,
		"estimated_duration_seconds": true, "estimated_words": true,
		"animations": true, "complexity": true, "risk_flags": true,
	}
)

// PlanShape checks obj against the closed plan shape and converts it. Every
// violation is reported with its JSON path.
func PlanShape(obj map[string]any) (Plan, error) {
	c := &shapeChecker{}
	var plan Plan
	if obj == nil {
		return plan, services.Structural(phasePlan, "plan must be a JSON object", nil)
	}
	c.unknownKeys("$", obj, planKeys)
	plan.Title = c.requiredString("$.title", obj, "title")
	plan.Description = c.optionalString("$.description", obj, "description")

	rawScenes, ok := obj["scenes"]
	switch {
	case !ok:
		c.fail("$.scenes: required field missing")
	default:
		list, isList := rawScenes.([]any)
		if !isList {
			c.fail("$.scenes: expected array, got %s", typeName(rawScenes))
			break
		}
		for i, raw := range list {
			path := fmt.Sprintf("$.scenes[%d]", i)
			entry, isObj := raw.(map[string]any)
			if !isObj {
				c.fail("%s: expected object, got %s", path, typeName(raw))
				continue
			}
			plan.Scenes = append(plan.Scenes, c.scene(path, entry))
		}
	}
	if err := c.err(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (c *shapeChecker) scene(path string, obj map[string]any) PlanScene {
	c.unknownKeys(path, obj, sceneKeys)
	scene := PlanScene{
		ID:               c.optionalString(path+".id", obj, "id"),
		Title:            c.requiredString(path+".title", obj, "title"),
		NarrationSummary: c.requiredString(path+".narration_summary", obj, "narration_summary"),
		Complexity:       c.optionalString(path+".complexity", obj, "complexity"),
	}
	scene.EstimatedDuration = c.requiredNumber(path+".estimated_duration_seconds", obj, "estimated_duration_seconds")
	if raw, ok := obj["estimated_words"]; ok && raw != nil {
		words, isNum := raw.(float64)
		switch {
		case !isNum:
			c.fail("%s.estimated_words: expected number, got %s", path, typeName(raw))
		case words < 0 || words != math.Trunc(words):
			c.fail("%s.estimated_words: expected non-negative integer, got %v", path, words)
		default:
			scene.EstimatedWords = int(words)
		}
	}
	scene.Animations = c.stringList(path+".animations", obj, "animations", true)
	scene.RiskFlags = normalizeSet(c.stringList(path+".risk_flags", obj, "risk_flags", false))
	return scene
}

type shapeChecker struct {
	problems []string
}

func (c *shapeChecker) fail(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *shapeChecker) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return services.Structural(phasePlan, "plan shape invalid: "+summarizeProblems(c.problems), nil)
}

func (c *shapeChecker) unknownKeys(path string, obj map[string]any, allowed map[string]bool) {
	var unknown []string
	for key := range obj {
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		c.fail("%s.%s: unexpected field", path, key)
	}
}

func (c *shapeChecker) requiredString(path string, obj map[string]any, key string) string {
	raw, ok := obj[key]
	if !ok {
		c.fail("%s: required field missing", path)
		return ""
	}
	value, isString := raw.(string)
	if !isString {
		c.fail("%s: expected string, got %s", path, typeName(raw))
		return ""
	}
	return strings.TrimSpace(value)
}

func (c *shapeChecker) optionalString(path string, obj map[string]any, key string) string {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return ""
	}
	value, isString := raw.(string)
	if !isString {
		c.fail("%s: expected string, got %s", path, typeName(raw))
		return ""
	}
	return strings.TrimSpace(value)
}

func (c *shapeChecker) requiredNumber(path string, obj map[string]any, key string) float64 {
	raw, ok := obj[key]
	if !ok {
		c.fail("%s: required field missing", path)
		return 0
	}
	value, isNum := raw.(float64)
	if !isNum {
		c.fail("%s: expected number, got %s", path, typeName(raw))
		return 0
	}
	return value
}

func (c *shapeChecker) stringList(path string, obj map[string]any, key string, required bool) []string {
	raw, ok := obj[key]
	if !ok || (raw == nil && !required) {
		if required {
			c.fail("%s: required field missing", path)
		}
		return nil
	}
	list, isList := raw.([]any)
	if !isList {
		c.fail("%s: expected array of strings, got %s", path, typeName(raw))
		return nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		value, isString := item.(string)
		if !isString {
			c.fail("%s[%d]: expected string, got %s", path, i, typeName(item))
			continue
		}
		out = append(out, strings.TrimSpace(value))
	}
	return out
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// normalizeSet trims, drops empties, sorts, and deduplicates.
func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

// summarizeProblems keeps messages bounded: the first few problems are
// listed, the rest are counted.
func summarizeProblems(problems []string) string {
	const limit = 5
	if len(problems) <= limit {
		return strings.Join(problems, "; ")
	}
	return strings.Join(problems[:limit], "; ") + fmt.Sprintf("; and %d more", len(problems)-limit)
}
