package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestPostRaw_ServerErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
		fmt.Fprint(w, `{"error":"blocked by policy"}`)
	}))
	defer srv.Close()

	s := NewSession(Options{ChatURL: srv.URL, ConfigURL: srv.URL, Logger: zap.NewNop()})
	defer s.Close()

	_, err := s.postRaw(context.Background(), srv.URL, []byte(`{}`))
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if serverErr.StatusCode != 403 || serverErr.Message != "blocked by policy" {
		t.Errorf("server error = %+v", serverErr)
	}
}

func TestPostRaw_NonErrorBodyBecomesDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		fmt.Fprint(w, `<html>Bad Gateway</html>`)
	}))
	defer srv.Close()

	s := NewSession(Options{ChatURL: srv.URL, ConfigURL: srv.URL, Logger: zap.NewNop()})
	defer s.Close()

	_, err := s.postRaw(context.Background(), srv.URL, []byte(`{}`))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if decodeErr.StatusCode != 502 {
		t.Errorf("status = %d", decodeErr.StatusCode)
	}
}

func TestSend_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"conversation": [not json`)
	}))
	defer srv.Close()

	s := NewSession(Options{ChatURL: srv.URL, ConfigURL: srv.URL, Logger: zap.NewNop()})
	defer s.Close()

	_, err := s.Start(context.Background(), nil)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if decodeErr.Err == nil {
		t.Error("decode error should wrap the json error")
	}
}

func TestSetCertificatePinning_CustomClientUntouched(t *testing.T) {
	custom := &http.Client{}
	s := NewSession(Options{Domain: "chat.example.com", HTTPClient: custom, Logger: zap.NewNop()})
	defer s.Close()

	s.SetCertificatePinning(true)
	if s.client() != Doer(custom) {
		t.Fatal("pinning must not replace an injected HTTP client")
	}
}

func TestSetCertificatePinning_RebuildsDefaultClient(t *testing.T) {
	s := NewSession(Options{
		Domain:          "chat.example.com",
		CertificatePins: []string{"AAAA"},
		Logger:          zap.NewNop(),
	})
	defer s.Close()

	before := s.client()
	s.SetCertificatePinning(true)
	after := s.client()
	if before == after {
		t.Fatal("enabling pinning should rebuild the client")
	}

	s.SetCertificatePinning(false)
	if s.client() == after {
		t.Fatal("disabling pinning should rebuild the client again")
	}
}

func TestNewSession_DerivesEndpointsFromDomain(t *testing.T) {
	s := NewSession(Options{Domain: "acme.chat.example.com", Logger: zap.NewNop()})
	defer s.Close()

	if got := s.chatURL; got != "https://acme.chat.example.com/api/chat/v2" {
		t.Errorf("chatURL = %q", got)
	}
	if got := s.configURL; got != "https://acme.chat.example.com/api/chat_panel/v2" {
		t.Errorf("configURL = %q", got)
	}
}
