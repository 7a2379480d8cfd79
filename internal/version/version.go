package version

// Version is the current version of the TFN conference tooling.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/Emmyhack/TFN/internal/version.Version=v1.0.0'"
var Version = "dev"
