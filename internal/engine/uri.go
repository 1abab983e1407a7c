package engine

import "strings"

const fileScheme = "file://"

// pathFromURI strips the file:// scheme this service uses for every URI it
// stores, returning the plain filesystem path. Non-file URIs are returned
// unchanged (the service never brokers anything else, per spec.md §1).
func pathFromURI(uri string) string {
	return strings.TrimPrefix(uri, fileScheme)
}

// uriFromPath is the inverse of pathFromURI.
func uriFromPath(path string) string {
	if strings.HasPrefix(path, fileScheme) {
		return path
	}

	return fileScheme + path
}
