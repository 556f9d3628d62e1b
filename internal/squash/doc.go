// Package squash implements the squash migration workflow.
//
// A squash migration resolves a single origin reference, materializes its
// content in a working directory, runs the configured transformations over
// it, and hands the result to a destination as one change whose message
// summarizes the origin changes included since the previous migration.
// Origins, destinations, and transformations are capability interfaces with
// backend implementations living in sibling packages.
package squash
