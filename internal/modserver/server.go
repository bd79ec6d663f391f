package modserver

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sandview/previewd/internal/resolve"
	"github.com/sandview/previewd/internal/transform"
)

// resolveConcurrency bounds how many import resolutions run at once for a
// single file. Each resolution may perform several filesystem probes.
const resolveConcurrency = 8

// Served is the output of serving one module request.
type Served struct {
	// Code is the transformed source with every import rewritten to a
	// fetchable URL.
	Code []byte

	// ContentType is the HTTP content type for the response.
	ContentType string
}

// Server turns project files into servable modules. It holds no mutable
// state; concurrent requests need no coordination.
type Server struct {
	resolver *resolve.Resolver
	tracer   trace.Tracer
}

// New creates a module server backed by the given resolver.
func New(resolver *resolve.Resolver) *Server {
	return &Server{
		resolver: resolver,
		tracer:   otel.Tracer("previewd/modserver"),
	}
}

// Serve transforms a file and rewrites every import in the transformed
// output to its resolved URL.
//
// Parameters:
//   - ctx: Context for cancellation
//   - filePath: Root-relative path of the requested file
//   - content: The file's raw contents
//
// Returns:
//   - *Served: Rewritten code and content type
//   - error: A *transform.BundleError on syntax failures
func (s *Server) Serve(ctx context.Context, filePath string, content []byte) (*Served, error) {
	ctx, span := s.tracer.Start(ctx, "modserver.serve",
		trace.WithAttributes(attribute.String("file.path", filePath)))
	defer span.End()

	res, err := transform.Transform(string(content), filePath)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	code := res.Code
	if res.IsModule() {
		code, err = s.rewriteImports(ctx, code, filePath)
		if err != nil {
			return nil, err
		}
	}

	return &Served{
		Code:        []byte(code),
		ContentType: res.ContentType(filePath),
	}, nil
}

// rewriteImports scans code for import specifiers, resolves them
// concurrently, and splices the resolved URLs back in.
func (s *Server) rewriteImports(ctx context.Context, code, filePath string) (string, error) {
	refs := ScanImports(code)
	if len(refs) == 0 {
		return code, nil
	}

	resolved := make([]resolve.ResolvedImport, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolved[i] = s.resolver.Resolve(gctx, ref.Specifier, filePath)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return rewrite(code, refs, resolved), nil
}

// rewrite replaces each reference's specifier substring with its resolved
// URL. Edits are applied from the highest offset to the lowest so earlier
// edits never invalidate offsets that have not been applied yet.
func rewrite(code string, refs []ImportRef, resolved []resolve.ResolvedImport) string {
	order := make([]int, len(refs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return refs[order[a]].Start > refs[order[b]].Start
	})

	out := code
	for _, i := range order {
		ref := refs[i]
		out = out[:ref.Start] + resolved[i].ResolvedURL + out[ref.End:]
	}
	return out
}
