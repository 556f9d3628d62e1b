// Package objectdestination publishes migrated trees into an S3-compatible bucket and records the last
// migrated reference in a state manifest stored next to the content.
package objectdestination
