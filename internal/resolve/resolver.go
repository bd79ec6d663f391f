// Package resolve turns import specifiers into fetchable URLs.
//
// Bare specifiers (package names) are redirected to a public ES-module CDN.
// Relative and root-relative specifiers are resolved against the importing
// file's directory, probed for known extensions and index files, and joined
// with the serving base URL.
package resolve

import (
	"context"
	"fmt"
	"strings"
)

// FS is the filesystem collaborator used for extension probing.
// An access failure is a normal probe miss, never an error to report.
type FS interface {
	// Access reports whether a project-relative path exists.
	Access(ctx context.Context, path string) bool
}

// ResolvedImport is the output of resolving one specifier.
type ResolvedImport struct {
	// RawSpecifier is the specifier as it appeared in the source.
	RawSpecifier string

	// ResolvedURL is the fetchable URL the specifier was rewritten to.
	ResolvedURL string

	// IsThirdParty is true when the specifier was redirected to the CDN
	// proxy rather than resolved against the project filesystem.
	IsThirdParty bool
}

// probeExtensions is the fixed extension list tried, in order, when a
// resolved path has no recognized extension. Direct-extension probes run
// before index-file probes.
var probeExtensions = []string{".ts", ".tsx", ".jsx", ".js", ".mjs", ".mts", ".json", ".css"}

// knownExtensions are extensions accepted as-is without probing.
var knownExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".jsx": true, ".js": true, ".mjs": true,
	".mts": true, ".json": true, ".css": true, ".html": true, ".htm": true,
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".ico": true, ".txt": true, ".md": true, ".wasm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".map": true,
}

// Resolver resolves import specifiers for one project.
type Resolver struct {
	fs      FS
	baseURL string
	cdnBase string
}

// New creates a Resolver.
//
// Parameters:
//   - fs: Filesystem collaborator for existence probing
//   - baseURL: Serving base URL local paths are joined with
//   - cdnBase: CDN proxy base URL bare specifiers are redirected to
//
// Returns:
//   - *Resolver: A new resolver instance
func New(fs FS, baseURL, cdnBase string) *Resolver {
	return &Resolver{
		fs:      fs,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		cdnBase: strings.TrimSuffix(cdnBase, "/"),
	}
}

// Resolve turns a specifier plus the importing file's path into a fetchable URL.
//
// Bare specifiers go to the CDN unconditionally, with no filesystem lookup.
// Everything else is resolved positionally against the importer's directory,
// clamped at the project root, then extension/index probed.
//
// Parameters:
//   - ctx: Context for cancellation of probe I/O
//   - specifier: The raw import specifier
//   - importerPath: Root-relative path of the importing file
//
// Returns:
//   - ResolvedImport: The resolution result
func (r *Resolver) Resolve(ctx context.Context, specifier, importerPath string) ResolvedImport {
	if isBare(specifier) {
		return ResolvedImport{
			RawSpecifier: specifier,
			ResolvedURL:  fmt.Sprintf("%s/%s", r.cdnBase, specifier),
			IsThirdParty: true,
		}
	}

	path := joinImporter(specifier, importerPath)

	if ext := pathExt(path); knownExtensions[ext] {
		return r.local(specifier, path)
	}

	// Probe direct extensions first, then index files under the path.
	for _, ext := range probeExtensions {
		if r.fs.Access(ctx, path+ext) {
			return r.local(specifier, path+ext)
		}
	}
	for _, ext := range probeExtensions {
		candidate := path + "/index" + ext
		if r.fs.Access(ctx, candidate) {
			return r.local(specifier, candidate)
		}
	}

	// No probe hit: serve the path unmodified and let the fetch 404.
	return r.local(specifier, path)
}

// local builds a ResolvedImport for a project-local path.
func (r *Resolver) local(specifier, path string) ResolvedImport {
	return ResolvedImport{
		RawSpecifier: specifier,
		ResolvedURL:  r.baseURL + path,
		IsThirdParty: false,
	}
}

// isBare reports whether a specifier names a third-party package.
func isBare(specifier string) bool {
	return !strings.HasPrefix(specifier, ".") && !strings.HasPrefix(specifier, "/")
}

// joinImporter resolves a specifier against the importer's directory using
// standard ./.. segment semantics. Resolution never escapes the project
// root: a ".." at the root is clamped rather than an error.
func joinImporter(specifier, importerPath string) string {
	var base []string
	if strings.HasPrefix(specifier, "/") {
		base = nil
	} else {
		dir := importerPath
		if i := strings.LastIndexByte(dir, '/'); i >= 0 {
			dir = dir[:i]
		} else {
			dir = ""
		}
		base = splitSegments(dir)
	}

	for _, seg := range splitSegments(specifier) {
		switch seg {
		case "", ".":
			// no-op
		case "..":
			if len(base) > 0 {
				base = base[:len(base)-1]
			}
		default:
			base = append(base, seg)
		}
	}
	return "/" + strings.Join(base, "/")
}

// splitSegments splits a slash path into its non-empty segments.
func splitSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// pathExt returns the extension of the final path segment, including the
// dot, or "" when the segment has none.
func pathExt(path string) string {
	seg := path
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	if i := strings.LastIndexByte(seg, '.'); i > 0 {
		return seg[i:]
	}
	return ""
}
