// ABOUTME: Version constants for the soundstage binaries
// ABOUTME: Reported in logs, the monitor hello and --version output
package version

const (
	// Version is the release version of the binaries.
	Version = "0.3.0"

	// Product is the engine name reported to monitors.
	Product = "Soundstage"

	// Manufacturer identifies the project in device registrations.
	Manufacturer = "Soundstage Audio"
)
