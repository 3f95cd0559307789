package zenodo

import (
	"context"
	"encoding/json"
)

// ConfigStore provides configuration values such as the access tokens.
type ConfigStore interface {
	GetAppValue(key string) string
}

// FileLookup resolves a local file identifier to its stored parts.
type FileLookup interface {
	FilesByID(fileID string) ([]PhysicalFile, error)
	AbsolutePath(f PhysicalFile) string
}

// SessionAPI is the contract consumed by the CLI and the HTTP front end.
// It mirrors Session so it can be mocked in tests.
type SessionAPI interface {
	Configured() bool
	ListDepositions(ctx context.Context) ([]json.RawMessage, error)
	CreateDeposition(ctx context.Context, metadata any) (*Deposition, error)
	UploadFile(ctx context.Context, depositionID, fileID string) (*UploadResult, error)
}
