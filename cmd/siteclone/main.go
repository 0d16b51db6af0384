// Package main provides the entry point for the siteclone CLI.
//
// siteclone clones websites into self-contained local copies. It crawls
// pages, classifies and downloads assets (including 3D models, textures,
// and environment maps), fingerprints the frontend build tool, and
// rewrites references so the clone works offline.
//
// Usage:
//
//	siteclone clone <url>
//	siteclone serve
//
// See --help for all available options.
package main

// main is the entry point for siteclone.
func main() {
	Execute()
}
