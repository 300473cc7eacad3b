// Package asset holds the catalog of media assets the pipeline prepares and
// the per-asset state machine that tracks each one from registration to a
// terminal state.
//
// Records are tagged variants: Kind is the discriminant (Animation,
// StaticImage, Unknown until the check stage classifies the source) and stage
// code switches on it explicitly. State only changes through Transition, a
// pure reducer over (State, Event).
//
// The catalog is append-only and is owned by a single coordinating goroutine;
// none of the types in this package are safe for concurrent mutation.
package asset
