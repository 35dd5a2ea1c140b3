// Package artifact implements core.ArtifactStore backends. Artifacts are
// per-session byte blobs (generated code files, reports, tool output) that
// agents save and reload across turns.
//
// The interface lives in core; callers should depend on it rather than on
// the concrete stores here, so a durable backend can replace the in-memory
// one without touching agent code.
package artifact
