// Package status renders pipeline snapshots for humans: a one-line summary
// for progress logs and go-pretty tables for the CLI.
package status
