// Package transform converts project source files into browser-executable
// modules.
//
// TypeScript and JSX sources go through the embedded esbuild compiler; CSS
// and JSON files are wrapped as modules; plain JavaScript and everything
// else passes through byte-identical. Import rewriting is not done here;
// transformed code still contains raw specifiers.
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Kind classifies the output of a transform.
type Kind int

const (
	// KindJS is executable JavaScript whose imports must be rewritten.
	KindJS Kind = iota

	// KindCSS is a stylesheet wrapped as a JS module.
	KindCSS

	// KindJSON is a JSON document wrapped as a JS module.
	KindJSON

	// KindAsset is an untouched pass-through file.
	KindAsset
)

// Result is the output of the transform pipeline for one file.
type Result struct {
	// Code is the transformed source. Imports are still raw specifiers.
	Code string

	// Kind classifies what the code is.
	Kind Kind

	// SourceMapPresent reports whether the compiler emitted a source map.
	SourceMapPresent bool
}

// IsModule reports whether the result is JavaScript that may contain
// import statements needing rewrites.
func (r Result) IsModule() bool {
	return r.Kind == KindJS || r.Kind == KindCSS || r.Kind == KindJSON
}

// BundleError is a transform (syntax) failure. It is classified separately
// from runtime errors so clients can show a blocking overlay for it.
type BundleError struct {
	// Path is the file that failed to transform.
	Path string

	// Messages are the compiler diagnostics.
	Messages []string
}

// Error implements the error interface.
func (e *BundleError) Error() string {
	return fmt.Sprintf("transform failed for %s: %s", e.Path, strings.Join(e.Messages, "; "))
}

// compiledLoaders maps extensions that need a full syntax transform to
// their esbuild loader.
var compiledLoaders = map[string]api.Loader{
	".ts":  api.LoaderTS,
	".tsx": api.LoaderTSX,
	".jsx": api.LoaderJSX,
	".mts": api.LoaderTS,
}

// Transform converts a file's source text into a browser-runnable module.
//
// Parameters:
//   - source: The file's source text
//   - filePath: Root-relative path of the file, used for dispatch and
//     for tagging CSS style elements
//
// Returns:
//   - Result: The transformed code and its classification
//   - error: A *BundleError on compiler syntax failures
func Transform(source, filePath string) (Result, error) {
	ext := pathExt(filePath)

	if loader, ok := compiledLoaders[ext]; ok {
		return compile(source, filePath, loader)
	}

	switch ext {
	case ".js", ".mjs":
		return Result{Code: source, Kind: KindJS}, nil
	case ".css":
		return Result{Code: wrapCSS(source, filePath), Kind: KindCSS}, nil
	case ".json":
		return Result{Code: wrapJSON(source), Kind: KindJSON}, nil
	default:
		return Result{Code: source, Kind: KindAsset}, nil
	}
}

// compile runs the embedded compiler, always requesting a source map.
func compile(source, filePath string, loader api.Loader) (Result, error) {
	out := api.Transform(source, api.TransformOptions{
		Loader:     loader,
		Sourcefile: filePath,
		Sourcemap:  api.SourceMapInline,
		Target:     api.ESNext,
		Format:     api.FormatESModule,
	})

	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, m := range out.Errors {
			if m.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%s:%d:%d: %s",
					filePath, m.Location.Line, m.Location.Column, m.Text))
			} else {
				msgs = append(msgs, m.Text)
			}
		}
		return Result{}, &BundleError{Path: filePath, Messages: msgs}
	}

	return Result{
		Code:             string(out.Code),
		Kind:             KindJS,
		SourceMapPresent: strings.Contains(string(out.Code), "sourceMappingURL="),
	}, nil
}

// wrapCSS wraps a stylesheet as a module that installs a <style> element
// tagged with the file's path, so hot updates can locate and replace it.
// The raw CSS text is also the module's default export.
func wrapCSS(css, filePath string) string {
	cssLit := jsString(css)
	pathLit := jsString(filePath)
	return fmt.Sprintf(`const css = %s;
const id = %s;
let el = document.querySelector('style[data-preview-path=' + JSON.stringify(id) + ']');
if (!el) {
  el = document.createElement("style");
  el.setAttribute("data-preview-path", id);
  document.head.appendChild(el);
}
el.textContent = css;
export default css;
`, cssLit, pathLit)
}

// wrapJSON wraps a JSON document as a module exporting the parsed value.
// Parsing happens in the page so malformed JSON fails at import time with
// a real JSON error.
func wrapJSON(src string) string {
	return fmt.Sprintf("export default JSON.parse(%s);\n", jsString(src))
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// pathExt returns the lowercase extension of the final path segment.
func pathExt(path string) string {
	seg := path
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	if i := strings.LastIndexByte(seg, '.'); i > 0 {
		return strings.ToLower(seg[i:])
	}
	return ""
}
