package core

// ArtifactStore persists binary artifacts (generated files, execution
// output) scoped by session. Implementations must be safe for concurrent
// use.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}
