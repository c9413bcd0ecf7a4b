// Package web embeds the grid page templates and its static assets.
package web

import (
	"embed"
	"io/fs"
)

// Templates holds layouts, pages and partials.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static holds the grid stylesheet and script.
//
//go:embed static/**/*
var Static embed.FS

// StaticFS is Static rooted at static/, ready for http.FS.
func StaticFS() (fs.FS, error) {
	return fs.Sub(Static, "static")
}
