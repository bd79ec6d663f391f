package resolve

import (
	"context"
	"strings"
	"testing"
)

// fakeFS reports existence from a fixed set of paths.
type fakeFS struct {
	existing map[string]bool
	probes   []string
}

func (f *fakeFS) Access(ctx context.Context, path string) bool {
	f.probes = append(f.probes, path)
	return f.existing[path]
}

const (
	testBase = "http://localhost:7800/preview"
	testCDN  = "https://esm.sh"
)

func newTestResolver(existing ...string) (*Resolver, *fakeFS) {
	fs := &fakeFS{existing: map[string]bool{}}
	for _, p := range existing {
		fs.existing[p] = true
	}
	return New(fs, testBase, testCDN), fs
}

func TestResolve_BareSpecifierGoesToCDN(t *testing.T) {
	r, fs := newTestResolver()

	tests := []string{"react", "react-dom/client", "@scope/pkg", "lodash.debounce"}
	for _, spec := range tests {
		got := r.Resolve(context.Background(), spec, "/src/App.tsx")
		if !got.IsThirdParty {
			t.Errorf("Resolve(%q).IsThirdParty = false, want true", spec)
		}
		if want := testCDN + "/" + spec; got.ResolvedURL != want {
			t.Errorf("Resolve(%q) = %q, want %q", spec, got.ResolvedURL, want)
		}
	}
	if len(fs.probes) != 0 {
		t.Errorf("bare specifiers probed the filesystem: %v", fs.probes)
	}
}

func TestResolve_RelativeIsNeverThirdParty(t *testing.T) {
	r, _ := newTestResolver("/src/a.ts")

	for _, spec := range []string{"./a", "../a", "/src/a"} {
		got := r.Resolve(context.Background(), spec, "/src/App.tsx")
		if got.IsThirdParty {
			t.Errorf("Resolve(%q).IsThirdParty = true, want false", spec)
		}
		if !strings.HasPrefix(got.ResolvedURL, testBase) {
			t.Errorf("Resolve(%q) = %q, want prefix %q", spec, got.ResolvedURL, testBase)
		}
	}
}

func TestResolve_RecognizedExtensionUsedAsIs(t *testing.T) {
	r, fs := newTestResolver()

	got := r.Resolve(context.Background(), "./util.ts", "/src/App.tsx")
	if want := testBase + "/src/util.ts"; got.ResolvedURL != want {
		t.Errorf("ResolvedURL = %q, want %q", got.ResolvedURL, want)
	}
	if len(fs.probes) != 0 {
		t.Errorf("recognized extension still probed: %v", fs.probes)
	}
}

func TestResolve_DirectExtensionPrecedesIndex(t *testing.T) {
	// Both target.ts and target/index.ts exist; the direct probe must win.
	r, _ := newTestResolver("/src/target.ts", "/src/target/index.ts")

	got := r.Resolve(context.Background(), "./target", "/src/App.tsx")
	if want := testBase + "/src/target.ts"; got.ResolvedURL != want {
		t.Errorf("ResolvedURL = %q, want %q", got.ResolvedURL, want)
	}
}

func TestResolve_FallsBackToIndexFile(t *testing.T) {
	r, _ := newTestResolver("/src/components/index.tsx")

	got := r.Resolve(context.Background(), "./components", "/src/App.tsx")
	if want := testBase + "/src/components/index.tsx"; got.ResolvedURL != want {
		t.Errorf("ResolvedURL = %q, want %q", got.ResolvedURL, want)
	}
}

func TestResolve_NoProbeHitDefersFailure(t *testing.T) {
	r, _ := newTestResolver()

	got := r.Resolve(context.Background(), "./missing", "/src/App.tsx")
	if want := testBase + "/src/missing"; got.ResolvedURL != want {
		t.Errorf("ResolvedURL = %q, want %q", got.ResolvedURL, want)
	}
}

func TestResolve_DotDotNeverEscapesRoot(t *testing.T) {
	r, _ := newTestResolver()

	got := r.Resolve(context.Background(), "../../../../etc/passwd.css", "/src/App.tsx")
	if want := testBase + "/etc/passwd.css"; got.ResolvedURL != want {
		t.Errorf("ResolvedURL = %q, want %q", got.ResolvedURL, want)
	}
}

func TestResolve_SegmentSemantics(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		name      string
		specifier string
		importer  string
		want      string
	}{
		{"sibling", "./b.js", "/src/a.js", "/src/b.js"},
		{"parent", "../b.js", "/src/nested/a.js", "/src/b.js"},
		{"dot segments collapse", "././b.js", "/src/a.js", "/src/b.js"},
		{"empty segments collapse", ".//b.js", "/src/a.js", "/src/b.js"},
		{"root relative ignores importer", "/lib/b.js", "/src/deep/a.js", "/lib/b.js"},
		{"importer at root", "./b.js", "/a.js", "/b.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(context.Background(), tt.specifier, tt.importer)
			if want := testBase + tt.want; got.ResolvedURL != want {
				t.Errorf("ResolvedURL = %q, want %q", got.ResolvedURL, want)
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r, _ := newTestResolver("/src/dep.ts")

	first := r.Resolve(context.Background(), "./dep", "/src/App.tsx")
	second := r.Resolve(context.Background(), "./dep", "/src/App.tsx")
	if first != second {
		t.Errorf("resolution not idempotent: %+v vs %+v", first, second)
	}
}

func TestResolve_ProbeCountBounded(t *testing.T) {
	r, fs := newTestResolver()

	r.Resolve(context.Background(), "./nothing", "/src/App.tsx")
	if max := len(probeExtensions) * 2; len(fs.probes) > max {
		t.Errorf("probe count = %d, want <= %d", len(fs.probes), max)
	}
}
