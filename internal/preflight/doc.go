// Package preflight provides readiness checks for the filesystem paths and
// stage collaborators assetprep depends on.
//
// The CLI "assetprep doctor" command prints every result; "assetprep run"
// calls RunAll first and refuses to start when a check fails, so a run never
// discovers an unwritable output directory halfway through compression.
package preflight
