package consts

var (
	// BuildVersion is replaced at build time with the current git tag
	BuildVersion = "master"
	// BuildTime is replaced at build time with the build timestamp
	BuildTime = ""
)
