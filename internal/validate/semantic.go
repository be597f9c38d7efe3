package validate

import (
	"fmt"
	"strconv"
	"strings"

	"scenesmith/internal/services"
)

// Semantic rule names.
const (
	RuleSceneCount    = "scene_count"
	RuleSceneDuration = "scene_duration"
	RuleTotalDuration = "total_duration"
	RuleTitle         = "non_empty_title"
	RuleSummary       = "non_empty_narration_summary"
	RuleAnimations    = "non_empty_animations"
)

// PlanBounds are the business-rule limits applied to a plan.
type PlanBounds struct {
	MinScenes       int
	MaxScenes       int
	MinSceneSeconds float64
	MaxSceneSeconds float64
	MinTotalSeconds float64
	MaxTotalSeconds float64
}

// DefaultPlanBounds returns the built-in limits.
func DefaultPlanBounds() PlanBounds {
	return PlanBounds{
		MinScenes:       8,
		MaxScenes:       12,
		MinSceneSeconds: 20,
		MaxSceneSeconds: 45,
		MinTotalSeconds: 240,
		MaxTotalSeconds: 480,
	}
}

// SemanticPlan enforces b over a structurally valid plan. Every violated rule
// is listed; the returned error's Rule is the first one.
func SemanticPlan(plan Plan, b PlanBounds) error {
	type violation struct{ rule, msg string }
	var out []violation
	add := func(rule, format string, args ...any) {
		out = append(out, violation{rule: rule, msg: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(plan.Title) == "" {
		add(RuleTitle, "plan title is empty")
	}
	if n := len(plan.Scenes); n < b.MinScenes || n > b.MaxScenes {
		add(RuleSceneCount, "plan has %d scenes; expected between %d and %d", n, b.MinScenes, b.MaxScenes)
	}
	for i, scene := range plan.Scenes {
		label := fmt.Sprintf("scene %d", i+1)
		if strings.TrimSpace(scene.Title) == "" {
			add(RuleTitle, "%s has an empty title", label)
		}
		if strings.TrimSpace(scene.NarrationSummary) == "" {
			add(RuleSummary, "%s has an empty narration summary", label)
		}
		if !hasNonEmpty(scene.Animations) {
			add(RuleAnimations, "%s lists no animations", label)
		}
		if d := scene.EstimatedDuration; d < b.MinSceneSeconds || d > b.MaxSceneSeconds {
			add(RuleSceneDuration, "%s duration %ss outside [%s, %s]", label, seconds(d), seconds(b.MinSceneSeconds), seconds(b.MaxSceneSeconds))
		}
	}
	if total := plan.TotalDuration(); total < b.MinTotalSeconds || total > b.MaxTotalSeconds {
		add(RuleTotalDuration, "total duration %ss outside [%s, %s]", seconds(total), seconds(b.MinTotalSeconds), seconds(b.MaxTotalSeconds))
	}

	if len(out) == 0 {
		return nil
	}
	messages := make([]string, 0, len(out))
	for _, v := range out {
		messages = append(messages, v.msg)
	}
	return services.Semantic(phasePlan, out[0].rule, summarizeProblems(messages))
}

func hasNonEmpty(values []string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
