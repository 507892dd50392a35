package app

import (
	"log/slog"
	"mime"
)

// staticTypes covers the assets under web/static. Minimal container images
// ship without /etc/mime.types, so the stdlib table can miss these.
var staticTypes = map[string]string{
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".svg":   "image/svg+xml",
	".woff2": "font/woff2",
	".ico":   "image/x-icon",
}

func init() {
	registerStaticTypes(staticTypes)
}

func registerStaticTypes(types map[string]string) {
	for ext, typ := range types {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil {
			slog.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}
