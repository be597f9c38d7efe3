// Package prompts holds the collaborator instructions for each phase that
// scenesmith can generate on its own.
//
// Prompt text lives here so that every generate call and every manual
// copy-paste session asks for the same artifact shape the ingester accepts.
package prompts
