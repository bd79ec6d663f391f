package transform

import (
	"errors"
	"strings"
	"testing"
)

func TestTransform_TypeScriptStripsTypes(t *testing.T) {
	src := "const n: number = 1;\nexport default n;\n"

	got, err := Transform(src, "/src/num.ts")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got.Kind != KindJS {
		t.Errorf("kind = %v, want KindJS", got.Kind)
	}
	if strings.Contains(got.Code, ": number") {
		t.Errorf("type annotation survived transform:\n%s", got.Code)
	}
	if !got.SourceMapPresent {
		t.Error("expected an inline source map")
	}
}

func TestTransform_JSXCompiles(t *testing.T) {
	src := "export const App = () => <div>hi</div>;\n"

	got, err := Transform(src, "/src/App.jsx")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if strings.Contains(got.Code, "<div>") {
		t.Errorf("JSX survived transform:\n%s", got.Code)
	}
}

func TestTransform_SyntaxErrorIsBundleError(t *testing.T) {
	src := "const x: = ;\n"

	_, err := Transform(src, "/src/broken.ts")
	if err == nil {
		t.Fatal("expected a transform error")
	}
	var be *BundleError
	if !errors.As(err, &be) {
		t.Fatalf("error type = %T, want *BundleError", err)
	}
	if be.Path != "/src/broken.ts" {
		t.Errorf("BundleError.Path = %q, want %q", be.Path, "/src/broken.ts")
	}
}

func TestTransform_PlainJSPassesThrough(t *testing.T) {
	src := "import a from './a';\nconsole.log(a);\n"

	got, err := Transform(src, "/src/main.js")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got.Code != src {
		t.Errorf("plain JS was modified:\n%s", got.Code)
	}
	if got.Kind != KindJS {
		t.Errorf("kind = %v, want KindJS", got.Kind)
	}
}

func TestTransform_CSSWrapsAsModule(t *testing.T) {
	src := "body { color: red; }"

	got, err := Transform(src, "/styles/app.css")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got.Kind != KindCSS {
		t.Errorf("kind = %v, want KindCSS", got.Kind)
	}
	if !strings.Contains(got.Code, `"/styles/app.css"`) {
		t.Error("wrapper does not tag the style element with the file path")
	}
	if !strings.Contains(got.Code, "export default css") {
		t.Error("wrapper does not export the raw CSS text")
	}
	if !strings.Contains(got.Code, `body { color: red; }`) {
		t.Error("wrapper lost the stylesheet text")
	}
}

func TestTransform_JSONWrapsAsModule(t *testing.T) {
	src := `{"name": "demo", "n": 3}`

	got, err := Transform(src, "/package.json")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got.Kind != KindJSON {
		t.Errorf("kind = %v, want KindJSON", got.Kind)
	}
	if !strings.HasPrefix(got.Code, "export default JSON.parse(") {
		t.Errorf("unexpected JSON wrapper:\n%s", got.Code)
	}
}

func TestTransform_UnknownExtensionPassesThrough(t *testing.T) {
	src := "binary-ish bytes"

	got, err := Transform(src, "/assets/data.bin")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got.Code != src {
		t.Error("asset bytes were modified")
	}
	if got.Kind != KindAsset {
		t.Errorf("kind = %v, want KindAsset", got.Kind)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want string
	}{
		{"ts module", "/a.ts", "export const x = 1;", JavaScriptContentType},
		{"css module", "/a.css", "b{}", JavaScriptContentType},
		{"json module", "/a.json", "{}", JavaScriptContentType},
		{"svg asset", "/a.svg", "<svg/>", "image/svg+xml"},
		{"unknown asset", "/a.weird", "x", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Transform(tt.src, tt.path)
			if err != nil {
				t.Fatalf("Transform() error = %v", err)
			}
			if got := res.ContentType(tt.path); got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
