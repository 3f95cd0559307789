package zenodo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
)

// RequestSpec describes a single request sent by Dispatch. ContentType
// defaults to ContentTypeJSON. JSON is sent for JSON posts, Form for
// multipart posts. GET requests never carry a body.
type RequestSpec struct {
	Method      string
	ContentType string
	JSON        []byte
	Form        *Form
}

// Form is a multipart body with plain fields and an optional file read
// from disk as the request is sent.
type Form struct {
	Fields    map[string]string
	FileField string
	FilePath  string
	FileName  string
}

// formBody is a multipart body whose file part is read from disk while the
// request is sent.
type formBody struct {
	io.Reader
	file *os.File
}

func (b *formBody) Close() error {
	if b.file == nil {
		return nil
	}
	return b.file.Close()
}

// open encodes the form around the file content without buffering the file.
// It returns the body, its content type and its exact length.
func (f *Form) open() (io.ReadCloser, string, int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	var (
		file *os.File
		size int64
		head []byte
	)
	if f.FilePath != "" {
		var err error
		file, err = os.Open(f.FilePath)
		if err != nil {
			return nil, "", 0, err
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, "", 0, err
		}
		size = info.Size()

		if _, err := mw.CreateFormFile(f.FileField, f.FileName); err != nil {
			file.Close()
			return nil, "", 0, err
		}
		head = append([]byte(nil), buf.Bytes()...)
		buf.Reset()
	}

	keys := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, f.Fields[k]); err != nil {
			if file != nil {
				file.Close()
			}
			return nil, "", 0, err
		}
	}
	if err := mw.Close(); err != nil {
		if file != nil {
			file.Close()
		}
		return nil, "", 0, err
	}
	tail := buf.Bytes()

	body := &formBody{file: file}
	if file != nil {
		body.Reader = io.MultiReader(bytes.NewReader(head), io.LimitReader(file, size), bytes.NewReader(tail))
	} else {
		body.Reader = bytes.NewReader(tail)
	}
	return body, mw.FormDataContentType(), int64(len(head)) + size + int64(len(tail)), nil
}

// Dispatch executes one HTTP request and returns the response body, which
// must be valid JSON. Network failures and undecodable bodies are returned
// as *TransportError. The HTTP status code is not interpreted here; Zenodo
// reports failures in the payload.
func (s *Session) Dispatch(ctx context.Context, rawURL string, spec RequestSpec) (json.RawMessage, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	contentType := spec.ContentType
	if contentType == "" {
		contentType = ContentTypeJSON
	}
	safeURL := redactURL(rawURL)

	var (
		body     io.Reader
		form     io.ReadCloser
		formSize int64
	)
	if method == http.MethodPost {
		switch contentType {
		case ContentTypeMultipart:
			if spec.Form != nil {
				var err error
				form, contentType, formSize, err = spec.Form.open()
				if err != nil {
					return nil, &TransportError{Op: method, URL: safeURL, Err: err}
				}
				body = form
			}
		default:
			if spec.JSON != nil {
				body = bytes.NewReader(spec.JSON)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		if form != nil {
			form.Close()
		}
		return nil, &TransportError{Op: method, URL: safeURL, Err: stripURLError(err)}
	}
	if form != nil {
		req.ContentLength = formSize
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", ContentTypeJSON)

	s.logger.WithFields(logrus.Fields{
		"method":      method,
		"url":         safeURL,
		"environment": s.env.String(),
	}).Debug("dispatching zenodo request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: safeURL, Err: stripURLError(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method, URL: safeURL, Err: fmt.Errorf("reading response: %w", err)}
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, &TransportError{Op: method, URL: safeURL, Err: fmt.Errorf("invalid JSON response (%s)", resp.Status)}
	}

	s.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    safeURL,
		"status": resp.StatusCode,
	}).Debug("zenodo request completed")

	return json.RawMessage(data), nil
}

// redactURL hides the access token so URLs can be logged and reported.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// stripURLError drops the *url.Error wrapper added by net/http, whose
// message embeds the full URL including the token.
func stripURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
