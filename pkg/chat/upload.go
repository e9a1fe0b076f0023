package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// FileUpload is one file handed to UploadFiles.
type FileUpload struct {
	Filename string
	MimeType string
	Content  io.Reader
}

// UploadFiles pushes files to the configured file upload service and
// returns their descriptors, ready to be sent with SendFiles. The
// endpoint comes from Options or from the panel config once fetched;
// without one the call fails with ErrNoUploadEndpoint. expirySeconds,
// when non-nil, asks the service to expire the stored files.
func (s *Session) UploadFiles(ctx context.Context, files []FileUpload, expirySeconds *int) ([]File, error) {
	s.mu.Lock()
	endpoint := s.fileUploadServiceEndpointURL
	s.mu.Unlock()

	if endpoint == "" {
		s.notifier.publishResponse(nil, ErrNoUploadEndpoint)
		return nil, ErrNoUploadEndpoint
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("inline_download", "true"); err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Filename))
		if f.MimeType != "" {
			hdr.Set("Content-Type", f.MimeType)
		}
		part, err := w.CreatePart(hdr)
		if err != nil {
			return nil, fmt.Errorf("upload files: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("upload files: read %s: %w", f.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}

	url := endpoint
	if expirySeconds != nil {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "expiry=" + strconv.Itoa(*expirySeconds)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client().Do(req)
	if err != nil {
		err = fmt.Errorf("upload files: %w", err)
		s.notifier.publishResponse(nil, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("upload files: read response: %w", err)
		s.notifier.publishResponse(nil, err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &ServerError{StatusCode: resp.StatusCode}
		if jerr := json.Unmarshal(body, serr); jerr != nil || serr.Message == "" {
			serr.Message = strings.TrimSpace(string(body))
		}
		s.notifier.publishResponse(nil, serr)
		return nil, serr
	}

	var uploaded uploadedFiles
	if err := json.Unmarshal(body, &uploaded); err != nil {
		derr := &DecodeError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
		s.notifier.publishResponse(nil, derr)
		return nil, derr
	}
	return uploaded.Files, nil
}
