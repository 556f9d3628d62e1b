// Package folderdestination writes migrated content into a plain directory. It keeps no migration history.
package folderdestination
