package zenodo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 60 * time.Second

// Session talks to one Zenodo environment with one access token. A session
// is built per logical operation and must not be shared between goroutines.
type Session struct {
	config     ConfigStore
	files      FileLookup
	httpClient *http.Client
	logger     logrus.FieldLogger
	baseURLs   map[Environment]string

	env   Environment
	token string
}

var _ SessionAPI = (*Session)(nil)

// Option customizes a Session.
type Option func(*Session)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout > 0 {
			s.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBaseURLs points the session at other hosts, mostly for tests.
// Both URLs must end with a slash.
func WithBaseURLs(sandbox, production string) Option {
	return func(s *Session) {
		s.baseURLs = map[Environment]string{
			Sandbox:    sandbox,
			Production: production,
		}
	}
}

// NewSession creates an uninitialized session. Call Init before use.
func NewSession(config ConfigStore, files FileLookup, opts ...Option) *Session {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Session{
		config: config,
		files:  files,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: discard,
		baseURLs: map[Environment]string{
			Sandbox:    SandboxURL,
			Production: ProductionURL,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init selects the environment and resolves its token. It fails with a
// *ConfigError when no token is configured. No request is made.
func (s *Session) Init(production bool) error {
	s.env = Sandbox
	key := KeyTokenSandbox
	if production {
		s.env = Production
		key = KeyTokenProduction
	}

	s.token = ""
	if s.config != nil {
		s.token = strings.TrimSpace(s.config.GetAppValue(key))
	}

	if s.token == "" {
		return newTokenMissingError(s.env)
	}
	return nil
}

// Configured reports whether a token is resolved for the active environment.
func (s *Session) Configured() bool {
	return s.token != ""
}

// Environment returns the environment chosen at Init.
func (s *Session) Environment() Environment {
	return s.env
}

// BuildURL returns base URL + path + the access_token query parameter.
func (s *Session) BuildURL(path string) (string, error) {
	if !s.Configured() {
		return "", newTokenMissingError(s.env)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return s.baseURLs[s.env] + path + sep + "access_token=" + url.QueryEscape(s.token), nil
}

// DepositionFilesPath returns the upload path of a deposition.
func DepositionFilesPath(depositionID string) string {
	return strings.Replace(pathDepositionFiles, depositionIDMarker, url.PathEscape(depositionID), 1)
}

// ListDepositions returns the user's depositions exactly as Zenodo sent them.
func (s *Session) ListDepositions(ctx context.Context) ([]json.RawMessage, error) {
	u, err := s.BuildURL(pathDepositions)
	if err != nil {
		return nil, err
	}

	raw, err := s.Dispatch(ctx, u, RequestSpec{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}

	var depositions []json.RawMessage
	if err := json.Unmarshal(raw, &depositions); err != nil {
		if failure, ok := decodeFailure(raw); ok {
			return nil, failure
		}
		return nil, &TransportError{Op: http.MethodGet, URL: redactURL(u), Err: fmt.Errorf("decoding depositions: %w", err)}
	}
	return depositions, nil
}

// CreateDeposition posts metadata as JSON. A response without a "created"
// field is returned as *APIError, even when it lists no errors.
func (s *Session) CreateDeposition(ctx context.Context, metadata any) (*Deposition, error) {
	u, err := s.BuildURL(pathDepositions)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding deposition metadata: %w", err)
	}

	raw, err := s.Dispatch(ctx, u, RequestSpec{
		Method:      http.MethodPost,
		ContentType: ContentTypeJSON,
		JSON:        body,
	})
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: redactURL(u), Err: fmt.Errorf("decoding deposition: %w", err)}
	}

	if _, ok := fields["created"]; !ok {
		failure, _ := decodeFailure(raw)
		return nil, failure
	}

	deposition := &Deposition{Fields: fields}
	if id, ok := fields["id"]; ok {
		var n json.Number
		if err := json.Unmarshal(id, &n); err == nil {
			deposition.ID, _ = n.Int64()
		}
	}
	return deposition, nil
}

// UploadFile sends every part of fileID to the deposition, one after the
// other. The first rejected part stops the batch.
func (s *Session) UploadFile(ctx context.Context, depositionID, fileID string) (*UploadResult, error) {
	if s.files == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, fileID)
	}
	parts, err := s.files.FilesByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("looking up file %s: %w", fileID, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, fileID)
	}

	u, err := s.BuildURL(DepositionFilesPath(depositionID))
	if err != nil {
		return nil, err
	}

	result := &UploadResult{DepositionID: depositionID, FileID: fileID}
	for _, part := range parts {
		path := s.files.AbsolutePath(part)
		name := filepath.Base(path)

		raw, err := s.Dispatch(ctx, u, RequestSpec{
			Method:      http.MethodPost,
			ContentType: ContentTypeMultipart,
			Form: &Form{
				Fields:    map[string]string{"name": name},
				FileField: "file",
				FilePath:  path,
				FileName:  name,
			},
		})
		if err != nil {
			return nil, err
		}

		var resp struct {
			Status *int `json:"status"`
		}
		// Non-object bodies carry no status and count as accepted.
		_ = json.Unmarshal(raw, &resp)
		if resp.Status != nil && *resp.Status == http.StatusBadRequest {
			return nil, &UploadError{Status: http.StatusBadRequest, Message: uploadRejectedMessage, File: name}
		}

		result.Uploaded = append(result.Uploaded, name)
	}

	return result, nil
}

// decodeFailure builds an *APIError from a Zenodo error payload. It reports
// false when raw is not an object; the returned error is never nil.
func decodeFailure(raw json.RawMessage) (*APIError, bool) {
	failure := &APIError{Messages: []string{}}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return failure, false
	}

	failure.Status = resp.Status
	failure.Message = resp.Message
	for _, e := range resp.Errors {
		failure.Messages = append(failure.Messages, e.Field+" - "+e.Message)
	}
	return failure, true
}
