// Package assets embeds the browser client of the lesson viewer.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the viewer script
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/codelesson.js")
}

// GetClientCSS returns the viewer stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/codelesson.css")
}
