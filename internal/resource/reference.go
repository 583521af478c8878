// Package resource models indirect pointers from map attributes to remote
// store resources.
//
// A Reference is absent when its URI is empty or the NoData sentinel. A
// present Reference always resolves to a numeric store id; Parse refuses
// anything else so callers never act on a half-valid link.
package resource

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// NoData marks an attribute whose backing resource was removed.
const NoData = "NODATA"

// NoDetailsAvailable is the local details value shown when a fetch failed.
const NoDetailsAvailable = "NO_DETAILS_AVAILABLE"

var ErrUnresolvable = errors.New("resource: uri does not resolve to an id")

var numericID = regexp.MustCompile(`^\d+$`)

// Reference points from a logical attribute to a remote resource.
type Reference struct {
	URI string
}

// Parse builds a Reference and rejects present URIs that carry no id.
func Parse(uri string) (Reference, error) {
	ref := Reference{URI: strings.TrimSpace(uri)}
	if !ref.Present() {
		return ref, nil
	}
	if _, ok := IDFromURI(ref.URI); !ok {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnresolvable, uri)
	}
	return ref, nil
}

// Absent returns the empty reference.
func Absent() Reference {
	return Reference{}
}

// FromID builds a reference to a store id using the canonical data path.
func FromID(base, id string) Reference {
	return Reference{URI: DataURL(base, id)}
}

// Present reports whether the reference points at backing data.
func (r Reference) Present() bool {
	uri := strings.TrimSpace(r.URI)
	return uri != "" && uri != NoData
}

// ID returns the referenced store id, or "" when absent or unresolvable.
func (r Reference) ID() string {
	if !r.Present() {
		return ""
	}
	id, _ := IDFromURI(r.URI)
	return id
}

func (r Reference) String() string {
	if !r.Present() {
		return NoData
	}
	return r.URI
}

// IDFromURI extracts the numeric id of the last "data/<id>" path segment,
// ignoring any query. Attribute values are stored URL-encoded, sometimes
// twice, so the uri is unescaped until stable.
func IDFromURI(uri string) (string, bool) {
	decoded := uri
	for i := 0; i < 3; i++ {
		next, err := url.QueryUnescape(decoded)
		if err != nil || next == decoded {
			break
		}
		decoded = next
	}
	path, _, _ := strings.Cut(decoded, "?")
	path, _, _ = strings.Cut(path, "#")
	// last data/<id> segment wins
	segs := strings.Split(path, "/")
	for i := len(segs) - 2; i >= 0; i-- {
		if segs[i] == "data" && numericID.MatchString(segs[i+1]) {
			return segs[i+1], true
		}
	}
	return "", false
}

// DataURL is the display/download url of a stored data-uri payload:
// <base>/data/<id>/raw?decode=datauri.
func DataURL(base, id string) string {
	return ThumbnailURL(base, id, "")
}

// ThumbnailURL builds the display url for a resource, appending token as a
// cache-busting "v" parameter when non-empty.
func ThumbnailURL(base, id, token string) string {
	out := strings.TrimRight(strings.TrimSpace(base), "/") + "/data/" + strings.TrimSpace(id) + "/raw?decode=datauri"
	if token = strings.TrimSpace(token); token != "" {
		out += "&v=" + url.QueryEscape(token)
	}
	return out
}

// Encode double-escapes a uri the way the store expects attribute values.
func Encode(uri string) string {
	return url.QueryEscape(url.QueryEscape(uri))
}
