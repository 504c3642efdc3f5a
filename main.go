package main

import (
	"zortoshub/cmd"
)

// main hands over to the cobra command tree.
//
// zortoshub is a terminal app hub for macOS:
//   - Reads a JSON or YAML catalog of applications grouped by category
//   - Downloads the selected installer over HTTP(S) or from S3 into ~/Downloads/ZortosHub
//   - Attaches .dmg images with hdiutil, retrying while the image is busy, and reveals the volume
//   - Extracts .zip, .7z and .tar.* archives, or runs the macOS installer for .pkg files
//   - Tracks volumes it left mounted in a JSON state file and every install in a SQLite history
func main() {
	cmd.Execute()
}
