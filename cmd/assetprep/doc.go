// Package main hosts the assetprep CLI entrypoint and command graph.
//
// The Cobra-based command tree loads configuration once, then hands off to
// the internal packages: run drives a loading session, scan reports what
// the check stage would see, doctor prints preflight results, and config
// scaffolds or validates the TOML file.
package main
