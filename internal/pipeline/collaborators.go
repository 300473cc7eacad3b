package pipeline

import (
	"context"

	"assetprep/internal/asset"
	"assetprep/internal/media"
	"assetprep/internal/workerpool"
)

// CompressionEngine produces the compressed variant of an animation.
// CompressedPath must be pure; Compress runs on a worker and should report
// through progress.
type CompressionEngine interface {
	CompressedPath(rec asset.Record) string
	Compress(ctx context.Context, rec asset.Record, progress *workerpool.Progress) (string, error)
}

// ResourceMaterializer turns a checked record into a resident resource.
type ResourceMaterializer interface {
	Load(ctx context.Context, rec asset.Record, progress *workerpool.Progress) (asset.Resource, error)
}

// Prober inspects an asset's source for the check stage.
type Prober interface {
	Probe(ctx context.Context, rec asset.Record) (media.Info, error)
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context, rec asset.Record) (media.Info, error)

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, rec asset.Record) (media.Info, error) {
	return f(ctx, rec)
}

// MediaProber inspects sources on disk with media.Inspect.
type MediaProber struct{}

// Probe inspects rec.SourcePath.
func (MediaProber) Probe(ctx context.Context, rec asset.Record) (media.Info, error) {
	return media.Inspect(ctx, rec.SourcePath)
}
