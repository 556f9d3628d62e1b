// Package gitdestination writes squashed migrations as single commits into a local git repository,
// optionally pushing them to a remote branch, and reads migration labels back from commit trailers.
package gitdestination
