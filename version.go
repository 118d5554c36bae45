package agentflow

import _ "embed"

// Version is the release of the library and binaries, read from the VERSION file.
//
//go:embed VERSION
var Version string
