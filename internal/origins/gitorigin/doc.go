// Package gitorigin resolves, exports, and reads history from a local git repository
// by driving the git executable through execshell.
package gitorigin
