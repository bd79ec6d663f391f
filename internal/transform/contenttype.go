package transform

// contentTypes maps file extensions to HTTP content types for files served
// without transformation. Code-bearing outputs are always served as
// application/javascript regardless of their original extension.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".mjs":   "application/javascript; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".txt":   "text/plain; charset=utf-8",
	".md":    "text/markdown; charset=utf-8",
	".wasm":  "application/wasm",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".map":   "application/json; charset=utf-8",
}

// JavaScriptContentType is the content type for all code-bearing outputs.
const JavaScriptContentType = "application/javascript; charset=utf-8"

// binaryContentType is the default for unknown extensions.
const binaryContentType = "application/octet-stream"

// ContentType returns the HTTP content type for a transform result.
// Module outputs are JavaScript; assets use the static extension table.
func (r Result) ContentType(filePath string) string {
	if r.IsModule() {
		return JavaScriptContentType
	}
	return ContentTypeFor(filePath)
}

// ContentTypeFor looks up the content type for a path by extension,
// defaulting to a generic binary type.
func ContentTypeFor(path string) string {
	if ct, ok := contentTypes[pathExt(path)]; ok {
		return ct
	}
	return binaryContentType
}
