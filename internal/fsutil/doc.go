// Package fsutil replaces and copies directory trees for origin and destination backends.
package fsutil
