// Package project describes the on-disk layout of a scenesmith project and
// serializes CLI invocations against it.
package project
