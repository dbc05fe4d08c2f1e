package manifest

import (
	"context"
	"io/fs"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/tracing"
)

// Source is a tree searched for descriptors.
type Source struct {
	Label string
	FS    fs.FS
}

// DirSource returns a Source for a directory on disk.
func DirSource(dir string) Source {
	return Source{Label: dir, FS: os.DirFS(dir)}
}

// Discover walks every source in order and parses each descriptor found, in
// lexical order within a source. Unreadable sources and directories are
// logged and skipped. Returns the manifests parsed by this call.
func Discover(ctx context.Context, p *Parser, sources ...Source) []*Manifest {
	ctx, span := tracing.Start(ctx, p.tracer, tracing.SpanDiscover)
	defer span.End()

	var found []*Manifest
	for _, src := range sources {
		if src.FS == nil {
			continue
		}
		err := fs.WalkDir(src.FS, ".", func(name string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				log.Warn(log.CatManifest, "Skipping unreadable plugin path", "source", src.Label, "path", name, "error", err)
				if d != nil && d.IsDir() && name != "." {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsDescriptor(d.Name()) {
				return nil
			}
			if m := p.ParseFile(ctx, src.FS, name, src.Label); m != nil {
				found = append(found, m)
			}
			return nil
		})
		if err != nil {
			log.ErrorErr(log.CatManifest, "Discovery interrupted", err, "source", src.Label)
			break
		}
	}

	span.SetAttributes(attribute.Int("manifest.count", len(found)))
	log.Info(log.CatManifest, "Discovery complete", "sources", len(sources), "manifests", len(found))
	return found
}
