// Package folderorigin reads migration content from a plain directory.
package folderorigin
