package routes

import (
	"path/filepath"
	"strings"
)

// Mapper translates file system paths under the configured API
// directory into externally visible route paths. It is a pure function
// of its configuration and input; no hidden state.
type Mapper struct {
	apiDir    string
	apiPrefix string
}

// NewMapper creates a mapper for the given API directory and route
// prefix, e.g. ("pages/api", "/api").
func NewMapper(apiDir, apiPrefix string) *Mapper {
	return &Mapper{
		apiDir:    filepath.ToSlash(filepath.Clean(apiDir)),
		apiPrefix: strings.TrimSuffix(apiPrefix, "/"),
	}
}

// PathToRoute maps a route module file to its route path:
//
//	pages/api/index.js        -> /api
//	pages/api/posts.js        -> /api/posts
//	pages/api/posts/[id].js   -> /api/posts/:id
//
// The second return value is false when the file does not live under
// the API directory.
func (mapper *Mapper) PathToRoute(filePath string) (string, bool) {
	if mapper == nil {
		return "", false
	}
	normalized := filepath.ToSlash(filepath.Clean(filePath))

	relative, ok := trimDirPrefix(normalized, mapper.apiDir)
	if !ok {
		return "", false
	}

	relative = strings.TrimSuffix(relative, filepath.Ext(relative))

	segments := strings.Split(relative, "/")
	// a trailing index segment collapses to its parent
	if len(segments) > 0 && segments[len(segments)-1] == "index" {
		segments = segments[:len(segments)-1]
	}
	for i, segment := range segments {
		if strings.HasPrefix(segment, "[") && strings.HasSuffix(segment, "]") && len(segment) > 2 {
			segments[i] = ":" + segment[1:len(segment)-1]
		}
	}

	route := mapper.apiPrefix
	if len(segments) > 0 {
		route += "/" + strings.Join(segments, "/")
	}
	if route == "" {
		route = "/"
	}
	return route, true
}

// trimDirPrefix cuts path down to its part below dir. The match is
// anchored at a path-segment boundary so a directory whose name merely
// ends in dir (mypages/api) never matches.
func trimDirPrefix(path, dir string) (string, bool) {
	if dir == "" || dir == "." {
		return strings.TrimPrefix(path, "/"), true
	}
	if strings.HasPrefix(path, dir+"/") {
		return path[len(dir)+1:], true
	}
	// a relative dir against an absolute path matches below any
	// ancestor, but only on a whole segment
	if index := strings.Index(path, "/"+dir+"/"); index >= 0 {
		return path[index+len(dir)+2:], true
	}
	return "", false
}
