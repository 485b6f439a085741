// Package ui provides the embedded static assets of the portal.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var static embed.FS

// Handler returns an http.Handler that serves the embedded assets. Mount it
// with the URL prefix already stripped.
func Handler() http.Handler {
	fsys, err := fs.Sub(static, "static")
	if err != nil {
		panic("failed to get static subdirectory: " + err.Error())
	}
	return http.FileServer(http.FS(fsys))
}

// Available returns true if the embedded assets are present.
func Available() bool {
	entries, err := static.ReadDir("static")
	if err != nil {
		return false
	}
	return len(entries) > 0
}
