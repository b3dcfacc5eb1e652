// Package main provides the entry point for the linkgrab CLI.
//
// Linkgrab turns lists of titles into lists of links. It annotates markdown
// title lists with product links discovered via keyword search, and it walks
// a book mirror's paginated results into a resumable wget download script.
//
// Usage:
//
//	linkgrab annotate <input> <output>
//	linkgrab mirror [-y|-n|-o] <directory> [start-url]
//
// See --help for all available options.
package main

// main is the entry point for linkgrab.
func main() {
	Execute()
}
