// Package version reports fetchguard build information. Values are set at
// link time and fall back to the module build info:
//
//	go build -ldflags "-X github.com/kbukum/fetchguard/version.Version=1.4.0" ./cmd/fetchguard
package version
