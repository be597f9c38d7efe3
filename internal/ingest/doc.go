// Package ingest turns raw collaborator responses into project artifacts.
//
// Every phase follows the same pipeline: archive the raw response, extract
// exactly one artifact, validate it structurally and then semantically,
// merge code into the scaffold where the phase produces a scene, and only
// then write the artifact atomically. A response that fails any step leaves
// the project untouched.
package ingest
