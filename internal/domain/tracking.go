package domain

import "time"

// Site identifies a comparison-shopping site that can be tracked
type Site string

const (
	SiteDanawa  Site = "danawa"
	SiteGmarket Site = "gmarket"
)

// AllSites lists every supported site in display order
var AllSites = []Site{SiteDanawa, SiteGmarket}

// DisplayName returns the Korean label used in notifications
func (s Site) DisplayName() string {
	switch s {
	case SiteDanawa:
		return "다나와"
	case SiteGmarket:
		return "지마켓"
	default:
		return string(s)
	}
}

// Valid reports whether s is a supported site
func (s Site) Valid() bool {
	for _, site := range AllSites {
		if s == site {
			return true
		}
	}
	return false
}

// Status is the health of a tracking session
type Status string

const (
	StatusActive            Status = "active"
	StatusNotFound          Status = "not_found"
	StatusNeedsConfirmation Status = "needs_confirmation"
	StatusBlockedSuspected  Status = "blocked_suspected"
)

// Label returns the Korean description of the status
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "정상"
	case StatusNotFound:
		return "검색 결과 없음"
	case StatusNeedsConfirmation:
		return "재확인 필요"
	case StatusBlockedSuspected:
		return "접속 차단 의심"
	default:
		return "알 수 없는 상태"
	}
}

// Allowed interval choices, in minutes
var (
	CrawlIntervals  = []int{1, 15, 30, 60, 120, 240, 480, 720, 1440}
	NotifyIntervals = []int{1, 60, 180, 360, 720, 1440, 4320, 10080}
)

const (
	DefaultCrawlInterval  = 30
	DefaultNotifyInterval = 1440
	DefaultCandidateCount = 10
)

// ValidCrawlInterval reports whether minutes is one of CrawlIntervals
func ValidCrawlInterval(minutes int) bool {
	return containsInt(CrawlIntervals, minutes)
}

// ValidNotifyInterval reports whether minutes is one of NotifyIntervals
func ValidNotifyInterval(minutes int) bool {
	return containsInt(NotifyIntervals, minutes)
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// TrackingState is the single persisted record describing what is tracked.
// Nil timestamps serialize as null, never as an omitted key.
type TrackingState struct {
	Keyword          string          `json:"keyword"`
	SelectedSites    []Site          `json:"selectedSites"`
	CrawlInterval    int             `json:"crawlIntervalMinutes"`
	NotifyInterval   int             `json:"notifyIntervalMinutes"`
	Email            string          `json:"email"`
	SelectedProducts map[Site]string `json:"selectedProducts"`
	LastPrices       map[Site]int64  `json:"lastPrices"`
	LastCrawlAt      *time.Time      `json:"lastCrawlAt"`
	LastNotifyAt     *time.Time      `json:"lastNotifyAt"`
	Status           Status          `json:"status"`
	BackoffCount     int             `json:"backoffCount"`
}

// Clone returns a deep copy so snapshots never alias the live record
func (s TrackingState) Clone() TrackingState {
	out := s
	out.SelectedSites = append([]Site(nil), s.SelectedSites...)
	out.SelectedProducts = make(map[Site]string, len(s.SelectedProducts))
	for k, v := range s.SelectedProducts {
		out.SelectedProducts[k] = v
	}
	out.LastPrices = make(map[Site]int64, len(s.LastPrices))
	for k, v := range s.LastPrices {
		out.LastPrices[k] = v
	}
	if s.LastCrawlAt != nil {
		t := *s.LastCrawlAt
		out.LastCrawlAt = &t
	}
	if s.LastNotifyAt != nil {
		t := *s.LastNotifyAt
		out.LastNotifyAt = &t
	}
	return out
}

// Normalize fills nil maps so the persisted document always carries objects
func (s *TrackingState) Normalize() {
	if s.SelectedSites == nil {
		s.SelectedSites = []Site{}
	}
	if s.SelectedProducts == nil {
		s.SelectedProducts = map[Site]string{}
	}
	if s.LastPrices == nil {
		s.LastPrices = map[Site]int64{}
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
}

// Candidate is a search-result row offered to the user for selection
type Candidate struct {
	ID         string `json:"id"`
	Site       Site   `json:"site"`
	Title      string `json:"title"`
	Price      *int64 `json:"price"`
	ProductURL string `json:"productUrl"`
}

// PriceResult is a successful price fetch. Price is always positive.
type PriceResult struct {
	Site       Site      `json:"site"`
	Title      string    `json:"title"`
	Price      int64     `json:"price"`
	ProductURL string    `json:"productUrl"`
	FetchedAt  time.Time `json:"fetchedAt"`
}
