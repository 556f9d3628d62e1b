// Package transforms provides the working-directory transformations a migration can apply before the
// content reaches its destination: text replacement, path moves, and path removal.
package transforms
