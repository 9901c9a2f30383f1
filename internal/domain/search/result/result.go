package result

import "github.com/kailas-cloud/nearby/internal/domain/provider"

// Hit is one ranked search result with its distance from the query origin.
type Hit struct {
	provider   provider.SearchableProvider
	distanceKm float64
}

// NewHit creates a search hit.
func NewHit(p provider.SearchableProvider, distanceKm float64) Hit {
	return Hit{provider: p, distanceKm: distanceKm}
}

// Provider returns the matched row.
func (h *Hit) Provider() provider.SearchableProvider { return h.provider }

// DistanceKm returns the distance from the query origin, computed per query.
func (h *Hit) DistanceKm() float64 { return h.distanceKm }

// Page is one page of ranked hits plus the total match count.
type Page struct {
	items          []Hit
	totalCount     int
	countAvailable bool
}

// NewPage creates a page with an exact total count.
func NewPage(items []Hit, total int) Page {
	return Page{items: nonNil(items), totalCount: total, countAvailable: true}
}

// NewPageWithoutCount creates a page whose count query failed. TotalCount reports -1.
func NewPageWithoutCount(items []Hit) Page {
	return Page{items: nonNil(items), totalCount: -1}
}

// Empty is the page for a query that cannot match anything.
func Empty() Page { return NewPage(nil, 0) }

// Items returns the ranked hits.
func (p *Page) Items() []Hit { return p.items }

// TotalCount returns the number of matches across all pages, or -1 when unavailable.
func (p *Page) TotalCount() int { return p.totalCount }

// CountAvailable reports whether TotalCount is exact.
func (p *Page) CountAvailable() bool { return p.countAvailable }

func nonNil(items []Hit) []Hit {
	if items == nil {
		return []Hit{}
	}
	return items
}
