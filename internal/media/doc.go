// Package media inspects and decodes the on-disk forms of assets: single
// image files and directories of numbered frames.
//
// Key entry points:
//   - Inspect: access probe, classification, and header decode for the check stage
//   - ListFrames: the sorted frame files of an animation directory
//   - DecodeFile: full decode of one frame or image
//
// PNG, JPEG and GIF are recognised. Only headers are read by Inspect so it
// stays cheap even for long sequences.
package media
