package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RootPath is the well-known path of the repository root shown by the tree.
// The server re-roots every path under it.
const RootPath = "/oh"

// AdminUser is the only user that may add and delete nodes.
const AdminUser = "admin"

// MultipleValues is the placeholder the server sends for multi-valued
// properties. Such properties are read-only in the browser.
const MultipleValues = "[Multiple Values]"

// ErrInvalidName is returned when a node or property name cannot be used.
var ErrInvalidName = errors.New("invalid name")

// NodeSummary is one entry of a child listing.
type NodeSummary struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	HasChildren bool   `json:"hasNodes"`
}

// Validate checks the summary against the listing contract: a non-empty
// name without '/', and an absolute path ending in that name.
func (n NodeSummary) Validate() error {
	if err := ValidateName(n.Name); err != nil {
		return err
	}
	if !strings.HasPrefix(n.Path, "/") {
		return fmt.Errorf("node %q: path %q is not absolute", n.Name, n.Path)
	}
	if Base(n.Path) != n.Name {
		return fmt.Errorf("node %q: path %q does not end in its name", n.Name, n.Path)
	}
	return nil
}

// Properties maps property names to their string values.
type Properties map[string]string

// Names returns the property names in lexical order.
func (p Properties) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsMultiValued reports whether the named property holds several values.
func (p Properties) IsMultiValued(name string) bool {
	return p[name] == MultipleValues
}

// FetchStatus is the per-node cache marker for the child listing.
type FetchStatus int

const (
	NotFetched FetchStatus = iota
	Loading
	Fetched
)

func (s FetchStatus) String() string {
	switch s {
	case NotFetched:
		return "not_fetched"
	case Loading:
		return "loading"
	case Fetched:
		return "fetched"
	default:
		return fmt.Sprintf("fetch_status(%d)", int(s))
	}
}

// Credentials identify the user against the repository API.
type Credentials struct {
	Username string
	Password string
}

// IsAdmin reports whether these credentials carry the admin capability.
func (c Credentials) IsAdmin() bool {
	return c.Username == AdminUser
}

// IsZero reports whether no username was provided.
func (c Credentials) IsZero() bool {
	return strings.TrimSpace(c.Username) == ""
}

// ValidateName checks a node or property name typed by the user.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.Contains(name, "/"):
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidName, name)
	}
	return nil
}

// JoinPath appends a child name to a parent path.
func JoinPath(parent, name string) string {
	if parent == "/" || parent == "" {
		return "/" + name
	}
	return strings.TrimSuffix(parent, "/") + "/" + name
}

// ParentPath returns the parent of an absolute path, or "" for "/".
func ParentPath(path string) string {
	if path == "/" || path == "" {
		return ""
	}
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

// Base returns the last element of a path.
func Base(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}

// NormalizePath maps a user supplied path onto the repository the way the
// server does: "/" and "" become the root, and paths outside the root are
// re-rooted under it.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return RootPath
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == RootPath || strings.HasPrefix(path, RootPath+"/") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		return RootPath + "/" + path
	}
	return RootPath + path
}

// IsRoot reports whether path is the repository root.
func IsRoot(path string) bool {
	return path == RootPath
}

// Depth returns the number of elements below the repository root.
func Depth(path string) int {
	if IsRoot(path) {
		return 0
	}
	rel := strings.TrimPrefix(path, RootPath+"/")
	return strings.Count(rel, "/") + 1
}
