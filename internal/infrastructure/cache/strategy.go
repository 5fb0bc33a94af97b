package cache

import (
	"strings"
	"time"
)

// Type names a family of cached values
type Type string

const (
	TypeProducts   Type = "products"
	TypeCategories Type = "categories"
	TypeOrders     Type = "orders"
	TypeUsers      Type = "users"
	TypeAnalytics  Type = "analytics"
	TypeImages     Type = "images"
)

// keyNamespace prefixes every cache key written by this package
const keyNamespace = "kct:"

// Strategy controls how long a value stays fresh and how long a stale
// value may still be served while it is refreshed.
type Strategy struct {
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
}

// Strategies lists the strategy of every cache type
var Strategies = map[Type]Strategy{
	TypeProducts:   {TTL: 15 * time.Minute, StaleWhileRevalidate: 5 * time.Minute},
	TypeCategories: {TTL: time.Hour, StaleWhileRevalidate: 10 * time.Minute},
	TypeOrders:     {TTL: time.Minute, StaleWhileRevalidate: 30 * time.Second},
	TypeUsers:      {TTL: 5 * time.Minute, StaleWhileRevalidate: time.Minute},
	TypeAnalytics:  {TTL: 30 * time.Minute, StaleWhileRevalidate: 15 * time.Minute},
	TypeImages:     {TTL: 24 * time.Hour, StaleWhileRevalidate: time.Hour},
}

// StrategyFor returns the strategy of t. Unknown types get the memory
// default TTL and no stale window.
func StrategyFor(t Type) Strategy {
	if s, ok := Strategies[t]; ok {
		return s
	}
	return Strategy{TTL: DefaultMemoryTTL}
}

// Key builds a namespaced cache key such as "kct:products:list:page=1"
func Key(t Type, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteString(string(t))
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Prefix returns the key prefix shared by every key of type t
func Prefix(t Type) string {
	return keyNamespace + string(t) + ":"
}

// Entry is a cached value with its freshness window
type Entry struct {
	Value      []byte    `json:"value"`
	StoredAt   time.Time `json:"stored_at"`
	FreshUntil time.Time `json:"fresh_until"`
	StaleUntil time.Time `json:"stale_until"`
}

func newEntry(value []byte, s Strategy, now time.Time) *Entry {
	fresh := now.Add(s.TTL)
	return &Entry{
		Value:      value,
		StoredAt:   now,
		FreshUntil: fresh,
		StaleUntil: fresh.Add(s.StaleWhileRevalidate),
	}
}

// IsFresh reports whether the entry is within its TTL
func (e *Entry) IsFresh(now time.Time) bool {
	return now.Before(e.FreshUntil)
}

// IsUsable reports whether the entry may still be served, fresh or stale
func (e *Entry) IsUsable(now time.Time) bool {
	return now.Before(e.StaleUntil)
}
