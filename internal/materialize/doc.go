// Package materialize is the default resource materializer. It decodes an
// asset's frames, from its source directory, its source image, or its frame
// archive, into resident RGBA resources.
//
// Frame decoding inside one asset fans out over LoadOptions.NumThreads
// goroutines. That budget is separate from the pipeline worker pool: a
// preload task occupies one pipeline slot however many decoders it runs.
package materialize
