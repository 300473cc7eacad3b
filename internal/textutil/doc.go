// Package textutil normalises names for use as asset IDs and file names.
//
// Names are NFC-normalised and case-folded so that the same folder name
// written by different tools (composed or decomposed accents, mixed case)
// maps to one ID.
package textutil
