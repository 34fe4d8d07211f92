package version

// Current is the semantic version of this build.
// Overridden at link time via -ldflags "-X .../pkg/version.Current=...".
var Current = "0.4.0"

const (
	AppName = "CriblScope"
	License = "Apache-2.0"
)
