// Package deps checks that the external binaries siactl drives are installed.
package deps
