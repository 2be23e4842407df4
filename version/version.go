package version

// Version represents the Major.Minor.Patch version tag
// from GIT, supplied by the Makefile - else 'dev' as a
// default
var Version string = "dev"

// Commit is the GIT revision the binary was built from
var Commit string = "unknown"

// UserAgent identifies the tool to the devices it talks to
func UserAgent() string {
	return "reolink/" + Version
}
