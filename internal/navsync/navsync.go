// Package navsync keeps the page query parameter of the board address in
// step with the current page.
//
// The address is never authoritative. Inbound, a page value is adopted only
// when it names an existing page; anything else resolves to page 1. Outbound,
// the page parameter is rewritten in place and every other parameter is kept.
// Rewrites are replacements: callers answer them with a redirect rather than
// a new history entry.
package navsync

import (
	"net/url"
	"strconv"
)

// PageParam is the query parameter carrying the page number.
const PageParam = "page"

// ParsePage parses a strict base-10 positive integer.
func ParsePage(raw string) (int, bool) {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

// Resolve validates the page parameter of query against totalPages. It
// returns the page to adopt and whether the parameter was valid as given.
// A repeated parameter adopts its first value but is never valid as given.
func Resolve(query url.Values, totalPages int) (int, bool) {
	raw := query[PageParam]
	if len(raw) == 0 {
		return 1, false
	}

	page, ok := ParsePage(raw[0])
	if !ok || page > totalPages {
		return 1, false
	}
	return page, len(raw) == 1
}

// Mirror returns a copy of address whose page parameter is set to page.
func Mirror(address *url.URL, page int) *url.URL {
	out := cloneURL(address)
	q := out.Query()
	q.Set(PageParam, strconv.Itoa(page))
	out.RawQuery = q.Encode()
	return out
}

// Outcome is the settled result of reconciling an address with a page.
type Outcome struct {
	Page     int
	Address  *url.URL
	Replaced bool
}

// Reconcile makes address carry page. Replaced is false when the address
// already matched, so reconciling a settled pair changes nothing.
func Reconcile(address *url.URL, page int) Outcome {
	if Matches(address, page) {
		return Outcome{Page: page, Address: cloneURL(address)}
	}
	return Outcome{Page: page, Address: Mirror(address, page), Replaced: true}
}

// Inbound resolves an externally supplied address: the page is adopted if
// valid, otherwise page 1 is chosen and the address replaced.
func Inbound(address *url.URL, totalPages int) Outcome {
	address = cloneURL(address)
	page, _ := Resolve(address.Query(), totalPages)
	return Reconcile(address, page)
}

// Matches reports whether address carries exactly one page parameter equal
// to page in canonical form.
func Matches(address *url.URL, page int) bool {
	if address == nil {
		return false
	}
	raw, ok := address.Query()[PageParam]
	return ok && len(raw) == 1 && raw[0] == strconv.Itoa(page)
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	out := *u
	if u.User != nil {
		user := *u.User
		out.User = &user
	}
	return &out
}
