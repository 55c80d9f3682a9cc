package web

import (
	"embed"
)

// staticFiles holds the panel page.
//
//go:embed static/*
var staticFiles embed.FS
