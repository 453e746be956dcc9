package config

// Version is set at build time:
//
//	go build -ldflags "-X 'github.com/plexlinker/plexlinker/internal/config.Version=v1.2.3'"
var Version = "dev"
