package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// SchemaServer serves a JSON schema with ETag revalidation.
type SchemaServer struct {
	*httptest.Server

	mu          sync.Mutex
	body        []byte
	etag        string
	status      int
	hits        int
	ifNoneMatch []string
	gate        chan struct{}
}

// NewSchemaServer serves EnvelopeSchema with ETag "v1". Closed on test cleanup.
func NewSchemaServer(t testing.TB) *SchemaServer {
	t.Helper()
	s := &SchemaServer{body: []byte(EnvelopeSchema), etag: `"v1"`}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(func() {
		s.Release()
		s.Close()
	})
	return s
}

func (s *SchemaServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits++
	s.ifNoneMatch = append(s.ifNoneMatch, r.Header.Get("If-None-Match"))
	gate, status, body, etag := s.gate, s.status, s.body, s.etag
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if etag != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// SetStatus forces every response to the given status code; 0 restores normal serving.
func (s *SchemaServer) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

// SetBody replaces the served document and its ETag.
func (s *SchemaServer) SetBody(body, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = []byte(body)
	s.etag = etag
}

// Hold makes requests wait until Release is called.
func (s *SchemaServer) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Release lets held requests proceed.
func (s *SchemaServer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Hits returns the number of requests received.
func (s *SchemaServer) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// IfNoneMatch returns the If-None-Match header of every request, in order.
func (s *SchemaServer) IfNoneMatch() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ifNoneMatch))
	copy(out, s.ifNoneMatch)
	return out
}
