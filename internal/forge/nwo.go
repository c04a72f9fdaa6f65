package forge

import (
	"net/url"
	"strings"
)

// NWO is an (owner, name) pair extracted from a source-hosting URL.
type NWO struct {
	Owner string
	Name  string
}

func (n NWO) String() string {
	return n.Owner + "/" + n.Name
}

// ParseNWO extracts the owner and repository name from a source-hosting
// URL such as https://github.com/owner/repo or
// https://github.com/owner/repo/blob/master/build.cmd. The second return
// value is false when the URL carries no owner/name pair.
func ParseNWO(raw string) (NWO, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return NWO{}, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return NWO{}, false
	}
	name := strings.TrimSuffix(segments[1], ".git")
	if name == "" {
		return NWO{}, false
	}
	return NWO{Owner: segments[0], Name: name}, true
}

// SameRepo reports whether two URLs name the same repository.
func SameRepo(a, b string) bool {
	na, ok := ParseNWO(a)
	if !ok {
		return false
	}
	nb, ok := ParseNWO(b)
	if !ok {
		return false
	}
	return strings.EqualFold(na.Owner, nb.Owner) && strings.EqualFold(na.Name, nb.Name)
}
