package provider

import (
	"context"
	"errors"
)

// Provenance records how a reference was found.
type Provenance string

const (
	// ProvenanceFingerprint marks an exact content-fingerprint match.
	ProvenanceFingerprint Provenance = "fingerprint"
	// ProvenanceRelease marks a candidate whose release type matches the
	// requester's filename hint.
	ProvenanceRelease Provenance = "release"
	// ProvenanceGeneric marks a plain catalog hit.
	ProvenanceGeneric Provenance = "generic"
)

// Reference is a candidate subtitle location returned by a provider.
// References are never mutated after creation.
type Reference struct {
	Provenance Provenance `json:"provenance"`
	// Locator is an opaque provider handle used to obtain a download link.
	Locator string `json:"locator"`
	// Name is the release/file name the provider advertises, used for
	// release-type classification. May be empty.
	Name string `json:"name,omitempty"`
	// Downloads is the provider popularity signal the catalog was ordered by.
	Downloads int `json:"downloads,omitempty"`
}

// SearchCriteria describes one provider query.
type SearchCriteria struct {
	MediaID     string // e.g. tt0111161
	Season      int    // 0 when not a series
	Episode     int    // 0 when not a series
	Language    string // provider language code, e.g. "en", "pt-br"
	Fingerprint string // content hash, empty when unknown
}

// ErrUnavailable signals that the provider could not be reached or replied
// with garbage. Distinct from "no results", which is an empty slice.
var ErrUnavailable = errors.New("source provider unavailable")

// SourceProvider is the capability the resolver needs from an external
// subtitle database.
type SourceProvider interface {
	// Search returns candidates in the provider's own popularity order.
	// A miss is ([], nil); ErrUnavailable is reserved for transport or
	// decoding failures.
	Search(ctx context.Context, criteria SearchCriteria) ([]Reference, error)
	// FetchLink resolves a reference locator into a downloadable URL.
	FetchLink(ctx context.Context, ref Reference) (string, error)
}
