// Package web holds the browser-side sign-in bridge: a single page that talks
// to the NEAR wallet and reports back through the confirmation endpoints.
package web

import "embed"

//go:embed index.html wallet.js
var FS embed.FS
