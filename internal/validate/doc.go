// Package validate holds the two independent validation layers applied to
// extracted artifacts.
//
// Structural checks (structural.go, fragment.go, narration.go, scene.go)
// confirm shape and syntax: the plan matches its closed JSON shape, code
// fragments parse and honour the body-fragment contract, the narration
// script exposes a SCRIPT dict literal, and scene files declare an inferable
// scene class. Semantic checks (semantic.go) apply business rules to an
// already well-formed plan. Failures are *services.ValidationError values
// whose kind distinguishes the two layers; diagnostic.go records semantic
// failures on disk without ever failing itself.
package validate
