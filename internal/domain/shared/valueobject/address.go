package valueobject

import "strings"

// Address is a postal address as collected by Stripe Checkout
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsEmpty reports whether no field is set
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// String joins the non-empty parts on one line
func (a Address) String() string {
	cityLine := strings.TrimSpace(strings.Join(nonEmpty(a.City, a.State), ", ") + " " + a.PostalCode)
	return strings.Join(nonEmpty(a.Line1, a.Line2, cityLine, a.Country), ", ")
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
