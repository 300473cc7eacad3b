// Package pipeline drives an asset catalog from "registered" to "ready".
//
// The Manager owns the catalog, the budget allocator, and a bounded worker
// pool. Three fixed stages run in order for every asset:
//
//   - check: probe the source, classify it, estimate its resident size, and
//     decide whether a compressed variant must be produced
//   - compress: one attempt per asset through the CompressionEngine; a
//     failure falls back to the uncompressed source
//   - preload: admit the asset against the VRAM budget in registration order,
//     then materialize it through the ResourceMaterializer
//
// Nothing runs on its own. The host calls Update (or UpdateDelta) every tick;
// Update polls finished tasks, applies their results, dispatches new tasks
// up to the pool size, and advances the global state. Update never blocks.
//
// A Manager is not safe for concurrent use: every method belongs to the one
// goroutine that drives it. Workers only see copies of records and report
// back through futures.
package pipeline
