package web

import "embed"

// Templates embeds HTML templates.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static embeds static assets: styles, scripts, the service worker, the
// manifest and the offline page.
//
//go:embed static
var Static embed.FS
