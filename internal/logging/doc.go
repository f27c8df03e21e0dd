// Package logging provides opt-in file-based logging with rotation for roux.
// When the --debug flag is set, comprehensive logs are written under the
// vault's cache directory (Config.LogDir(), by default .roux/logs/) for
// debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only.
package logging
