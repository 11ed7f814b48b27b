package model

import "strings"

// RouteTree is a nested mapping of path segments. The root path is
// represented by the key "/". Leaves are empty, non-nil trees.
type RouteTree map[string]RouteTree

// Routes is the route inventory of a run.
type Routes struct {
	// PrimaryHosts are the hosts considered in scope, sorted.
	PrimaryHosts []string `json:"primary_hosts"`

	// SeedRoutes are the canonical seed URLs, sorted.
	SeedRoutes []string `json:"seed_routes"`

	// AllRoutes are all canonical route URLs known to the run, sorted.
	AllRoutes []string `json:"all_routes"`

	// AllRoutePaths are the query-independent paths of AllRoutes, sorted and unique.
	AllRoutePaths []string `json:"all_route_paths"`

	// RouteTree is AllRoutePaths as a nested segment mapping.
	RouteTree RouteTree `json:"route_tree"`
}

// Insert adds a route path to the tree.
func (t RouteTree) Insert(path string) {
	parts := make([]string, 0)
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		if _, ok := t["/"]; !ok {
			t["/"] = RouteTree{}
		}
		return
	}

	cursor := t
	for _, part := range parts {
		next, ok := cursor[part]
		if !ok {
			next = RouteTree{}
			cursor[part] = next
		}
		cursor = next
	}
}
