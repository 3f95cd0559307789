package zenodo

import (
	"encoding/json"
)

// Environment selects which Zenodo instance a session talks to.
type Environment int

const (
	Sandbox Environment = iota
	Production
)

func (e Environment) String() string {
	if e == Production {
		return "production"
	}
	return "sandbox"
}

const (
	SandboxURL    = "https://sandbox.zenodo.org/"
	ProductionURL = "https://zenodo.org/"

	pathDepositions     = "api/deposit/depositions"
	pathDepositionFiles = "api/deposit/depositions/{id}/files"
	depositionIDMarker  = "{id}"

	// Configuration keys holding the access token of each environment.
	KeyTokenSandbox    = "zenodo_token_sandbox"
	KeyTokenProduction = "zenodo_token_production"
)

// Metadata is a convenience payload for creating a deposition. Any other
// JSON-marshalable value can be passed to CreateDeposition instead.
type Metadata struct {
	Title       string    `json:"title,omitempty"`
	UploadType  string    `json:"upload_type,omitempty"`
	Description string    `json:"description,omitempty"`
	Creators    []Creator `json:"creators,omitempty"`
}

// Creator is one author of a deposition.
type Creator struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// DepositionRequest wraps Metadata the way the depositions endpoint expects.
type DepositionRequest struct {
	Metadata Metadata `json:"metadata"`
}

// Deposition is a successfully created deposition. Fields keeps every
// top-level field of the API response untouched.
type Deposition struct {
	ID     int64
	Fields map[string]json.RawMessage
}

// UploadResult lists the base names of every uploaded part, in upload order.
type UploadResult struct {
	DepositionID string
	FileID       string
	Uploaded     []string
}

// PhysicalFile is one stored part of a logical file.
type PhysicalFile struct {
	Path string
	Name string
	Size int64
}

// apiErrorEntry is one element of the "errors" array in failure responses.
type apiErrorEntry struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// statusResponse holds the fields read from failure responses.
type statusResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Errors  []apiErrorEntry `json:"errors"`
}
