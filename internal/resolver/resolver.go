package resolver

import (
	"context"

	"github.com/MimeLyc/subtitle-autosync/internal/provider"
	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

const defaultMaxReferences = 3

// Request describes one resolution attempt for a media item.
type Request struct {
	MediaID      string
	Season       int
	Episode      int
	Language     string
	Fingerprint  string // optional content fingerprint
	FilenameHint string // optional release filename from the requester
}

// Resolver ranks and deduplicates candidate references from a source
// provider using a fingerprint → catalog → release-hint cascade.
type Resolver struct {
	provider      provider.SourceProvider
	maxReferences int
}

func New(src provider.SourceProvider, maxReferences int) *Resolver {
	if maxReferences <= 0 {
		maxReferences = defaultMaxReferences
	}
	return &Resolver{
		provider:      src,
		maxReferences: maxReferences,
	}
}

// Resolve returns an ordered, capped list of candidate references.
// "Not found" is an empty list with a nil error; provider.ErrUnavailable is
// passed through so callers can tell outage from miss.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]provider.Reference, error) {
	// Fingerprint tier: an exact hash match beats any popularity ordering.
	if req.Fingerprint != "" {
		refs, err := r.provider.Search(ctx, r.criteria(req, req.Fingerprint))
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if ref.Provenance == provider.ProvenanceFingerprint {
				return []provider.Reference{ref}, nil
			}
		}
		log.Debug("No fingerprint match for %s, falling back to catalog", req.MediaID)
	}

	// Catalog tier: provider popularity order, never reordered here.
	candidates, err := r.provider.Search(ctx, r.criteria(req, ""))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []provider.Reference{}, nil
	}

	// Release disambiguation: when the requester told us what release it is
	// playing, prefer the candidate of the same release type.
	if req.FilenameHint != "" {
		hintType := ClassifyRelease(req.FilenameHint)
		if hintType != ReleaseUnknown {
			for i, candidate := range candidates {
				if ClassifyRelease(candidate.Name) != hintType {
					continue
				}
				chosen := candidate
				chosen.Provenance = provider.ProvenanceRelease
				rest := make([]provider.Reference, 0, len(candidates)-1)
				rest = append(rest, candidates[:i]...)
				rest = append(rest, candidates[i+1:]...)
				return capReferences(append([]provider.Reference{chosen}, rest...), r.maxReferences), nil
			}
		}
	}

	return capReferences(candidates, r.maxReferences), nil
}

// ResolveVariants classifies the catalog results into mutually exclusive
// release categories and keeps at most one representative per category, in
// fixed category-priority order. Uncategorized leftovers fill remaining
// slots up to the cap.
func (r *Resolver) ResolveVariants(ctx context.Context, req Request) ([]provider.Reference, error) {
	candidates, err := r.provider.Search(ctx, r.criteria(req, ""))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []provider.Reference{}, nil
	}

	byCategory := make(map[ReleaseType]provider.Reference)
	var leftovers []provider.Reference
	for _, candidate := range candidates {
		category := ClassifyRelease(candidate.Name)
		if category == ReleaseUnknown {
			leftovers = append(leftovers, candidate)
			continue
		}
		// first-by-popularity wins within a category
		if _, taken := byCategory[category]; !taken {
			byCategory[category] = candidate
		}
	}

	ret := make([]provider.Reference, 0, r.maxReferences)
	for _, category := range variantCategories {
		if len(ret) == r.maxReferences {
			break
		}
		if ref, ok := byCategory[category]; ok {
			ret = append(ret, ref)
		}
	}
	for _, ref := range leftovers {
		if len(ret) == r.maxReferences {
			break
		}
		ret = append(ret, ref)
	}
	return ret, nil
}

func (r *Resolver) criteria(req Request, fingerprint string) provider.SearchCriteria {
	return provider.SearchCriteria{
		MediaID:     req.MediaID,
		Season:      req.Season,
		Episode:     req.Episode,
		Language:    req.Language,
		Fingerprint: fingerprint,
	}
}

func capReferences(refs []provider.Reference, limit int) []provider.Reference {
	if len(refs) <= limit {
		return refs
	}
	return refs[:limit]
}
