package version

// Version is overridden at build time with
// -ldflags "-X github.com/lendingdesk/backoffice/internal/version.Version=...".
var Version = "dev"
