package model

import "strings"

// Application is a row of the `applications` lookup table. An application
// can be referenced by its id, its full path ("apps/foo") or the trailing
// slug of that path ("foo").
type Application struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	AppKey string `json:"appKey,omitempty"`
	Status string `json:"status"`
}

// Slug returns the segment of the path after the last '/'.
func (a Application) Slug() string { return PathSlug(a.Path) }

// PathSlug returns the segment of p after the last '/'. A path without a
// separator is its own slug.
func PathSlug(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
