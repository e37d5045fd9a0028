package main

import (
	"encoding/json"
	"net/http"
)

// newHandler returns the status mux this agent exposes for capability
// introspection: a controller (or an operator's curl) can check what a
// device host currently advertises without opening an SSH session. Load
// and execute still happen over the plain SSH session pkg/device.SSHDevice
// drives directly against this host.
func newHandler(store *ManifestStore) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/capability", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(store.Get())
	})

	return mux
}
