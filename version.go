package zspa

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/0x-stone/zspa.Version=...".
var Version = "0.1.0-dev"
