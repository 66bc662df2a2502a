// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// ReleaseServer publishes a version string and an artifact payload over
// HTTP, the way the update host does.
type ReleaseServer struct {
	*httptest.Server

	mu            sync.Mutex
	version       string
	payload       []byte
	payloadStatus int
	downloads     int
}

// NewReleaseServer starts a server advertising version with payload.
func NewReleaseServer(version string, payload []byte) *ReleaseServer {
	rs := &ReleaseServer{version: version, payload: payload, payloadStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/version.txt", func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		_, _ = w.Write([]byte(rs.version + "\n"))
	})
	mux.HandleFunc("/prodmon", func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		rs.downloads++
		if rs.payloadStatus != http.StatusOK {
			w.WriteHeader(rs.payloadStatus)
			return
		}
		_, _ = w.Write(rs.payload)
	})
	rs.Server = httptest.NewServer(mux)
	return rs
}

// VersionURL returns the URL of the version document.
func (rs *ReleaseServer) VersionURL() string {
	return rs.URL + "/version.txt"
}

// PayloadURL returns the URL of the artifact.
func (rs *ReleaseServer) PayloadURL() string {
	return rs.URL + "/prodmon"
}

// Publish replaces the advertised version and payload.
func (rs *ReleaseServer) Publish(version string, payload []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.version = version
	rs.payload = payload
}

// FailPayload makes artifact downloads answer with status.
func (rs *ReleaseServer) FailPayload(status int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.payloadStatus = status
}

// Downloads returns how many times the artifact was requested.
func (rs *ReleaseServer) Downloads() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.downloads
}
