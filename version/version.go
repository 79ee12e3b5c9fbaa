package version

import "fmt"

const (
	appMajor uint = 1
	appMinor uint = 2
	appPatch uint = 0
)

// appBuild is defined as a variable so it can be overridden during the build
// process with '-ldflags "-X github.com/dluxio/hiveonboard/version.appBuild=foo"'.
var appBuild string

var version = "" // string used for memoization of version

// Version returns the application version as a properly formed string
func Version() string {
	if version == "" {
		version = fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
		if appBuild != "" {
			version = fmt.Sprintf("%s-%s", version, appBuild)
		}
	}
	return version
}
