package chat

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Doer is the minimal HTTP client surface the session needs. Inject a
// custom implementation through Options.HTTPClient to control transport
// concerns (proxies, pinning, recording) yourself.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const transportTimeout = 60 * time.Second

func newHTTPClient(pins []string) *http.Client {
	transport := &http.Transport{
		TLSHandshakeTimeout: transportTimeout,
	}
	if len(pins) > 0 {
		transport.TLSClientConfig = &tls.Config{
			VerifyPeerCertificate: spkiPinVerifier(pins),
		}
	}
	return &http.Client{
		Timeout:   transportTimeout,
		Transport: transport,
	}
}

// spkiPinVerifier accepts a certificate chain iff any certificate's
// SubjectPublicKeyInfo sha256 matches one of the base64-encoded pins.
func spkiPinVerifier(pins []string) func([][]byte, [][]*x509.Certificate) error {
	pinSet := make(map[string]struct{}, len(pins))
	for _, p := range pins {
		pinSet[p] = struct{}{}
	}
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				continue
			}
			sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
			if _, ok := pinSet[base64.StdEncoding.EncodeToString(sum[:])]; ok {
				return nil
			}
		}
		return fmt.Errorf("no pinned public key in certificate chain")
	}
}

// SetCertificatePinning rebuilds the default HTTP client with or without the
// configured SPKI pins. In-flight requests issued against the previous
// client are unaffected. No-op when a custom HTTPClient was injected.
func (s *Session) SetCertificatePinning(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customClient {
		return
	}
	if enabled {
		s.httpClient = newHTTPClient(s.certificatePins)
	} else {
		s.httpClient = newHTTPClient(nil)
	}
}

func (s *Session) client() Doer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpClient
}

// postRaw POSTs body as JSON and returns the raw response body. Non-2xx
// responses decode into ServerError where the body carries {"error": ...},
// and DecodeError otherwise.
func (s *Session) postRaw(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var serverErr ServerError
		if err := json.Unmarshal(respBody, &serverErr); err == nil && serverErr.Message != "" {
			serverErr.StatusCode = resp.StatusCode
			return nil, &serverErr
		}
		return nil, &DecodeError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
