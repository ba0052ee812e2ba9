package usecase

import (
	"fmt"
	"time"

	"github.com/pricealert/backend/internal/domain"
)

// DefaultBackoffLadder is the escalating retry delay after consecutive
// failed crawl ticks, in minutes: 1 → 5 → 15, then blocked is suspected.
var DefaultBackoffLadder = []int{1, 5, 15}

// Policy holds the tunables of the tracking state machine
type Policy struct {
	BackoffLadder []int
	// AutoRecover restores active after a crawl tick where every site
	// succeeded without an anomaly.
	AutoRecover bool
	// StatusAlerts emits an alert intent when a tick leaves the active status.
	StatusAlerts bool
}

func (p *Policy) defaults() {
	if len(p.BackoffLadder) == 0 {
		p.BackoffLadder = DefaultBackoffLadder
	}
}

// IntentKind is a side effect the loop driver must execute
type IntentKind int

const (
	// IntentPersist saves the attached snapshot
	IntentPersist IntentKind = iota
	// IntentObserve hands the attached snapshot to the observer
	IntentObserve
	// IntentStatusAlert emails the user about a status change
	IntentStatusAlert
)

func (k IntentKind) String() string {
	switch k {
	case IntentPersist:
		return "persist"
	case IntentObserve:
		return "observe"
	case IntentStatusAlert:
		return "status_alert"
	default:
		return fmt.Sprintf("intent(%d)", int(k))
	}
}

// Intent is one side effect with the state snapshot it applies to
type Intent struct {
	Kind    IntentKind
	State   domain.TrackingState
	Message string
}

// SiteOutcome is the raw result of fetching one site in a crawl tick
type SiteOutcome struct {
	Site   domain.Site
	Result *domain.PriceResult
	Err    error
}

// Succeeded reports whether the outcome carries a usable price
func (o SiteOutcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil && o.Result.Price > 0
}

// Anomaly describes why a fetched result was flagged
type Anomaly struct {
	Site     domain.Site
	OldPrice int64
	NewPrice int64
	OldTitle string
	NewTitle string
	Reason   string
}

// CrawlTransition is the outcome of applying one crawl tick
type CrawlTransition struct {
	State     domain.TrackingState
	Intents   []Intent
	Titles    map[domain.Site]string
	Succeeded []domain.Site
	Failed    []domain.Site
	Anomalies []Anomaly
}

// ApplyCrawl folds the outcomes of one crawl tick into state.
//
// Outcomes are processed in the order given. Failures bump the backoff
// counter and escalate to blocked once the ladder is exhausted; suspicious
// successes move the status to needs_confirmation but their price is still
// recorded. Any success resets the backoff counter.
func ApplyCrawl(
	state domain.TrackingState,
	outcomes []SiteOutcome,
	titles map[domain.Site]string,
	policy Policy,
	now time.Time,
) CrawlTransition {
	policy.defaults()

	st := state.Clone()
	st.Normalize()
	startStatus := st.Status

	tr := CrawlTransition{Titles: make(map[domain.Site]string, len(titles))}
	for site, title := range titles {
		tr.Titles[site] = title
	}

	emit := func() {
		tr.Intents = append(tr.Intents,
			Intent{Kind: IntentPersist, State: st.Clone()},
			Intent{Kind: IntentObserve, State: st.Clone()},
		)
	}

	var successes []*domain.PriceResult
	for _, out := range outcomes {
		if !out.Succeeded() {
			tr.Failed = append(tr.Failed, out.Site)
			st.BackoffCount++
			if st.BackoffCount >= len(policy.BackoffLadder) {
				st.Status = domain.StatusBlockedSuspected
			}
			emit()
			continue
		}

		res := out.Result
		tr.Succeeded = append(tr.Succeeded, out.Site)
		successes = append(successes, res)

		if anomaly, ok := validateResult(st, tr.Titles, out.Site, res); ok {
			tr.Anomalies = append(tr.Anomalies, anomaly)
			st.Status = domain.StatusNeedsConfirmation
			emit()
		}
		if res.Title != "" {
			tr.Titles[out.Site] = res.Title
		}
	}

	if len(successes) > 0 {
		for _, res := range successes {
			st.LastPrices[res.Site] = res.Price
		}
		crawledAt := now
		st.LastCrawlAt = &crawledAt
		st.BackoffCount = 0

		clean := len(tr.Failed) == 0 && len(tr.Anomalies) == 0
		if policy.AutoRecover && clean &&
			(st.Status == domain.StatusNeedsConfirmation || st.Status == domain.StatusBlockedSuspected) {
			st.Status = domain.StatusActive
		}
		emit()
	}

	if policy.StatusAlerts && startStatus == domain.StatusActive && st.Status != domain.StatusActive {
		tr.Intents = append(tr.Intents, Intent{
			Kind:    IntentStatusAlert,
			State:   st.Clone(),
			Message: describeTransition(st.Status, tr),
		})
	}

	tr.State = st
	return tr
}

// validateResult checks a fetched result against the last known price and title
func validateResult(st domain.TrackingState, titles map[domain.Site]string, site domain.Site, res *domain.PriceResult) (Anomaly, bool) {
	oldPrice := st.LastPrices[site]
	if CheckAbnormalPriceChange(oldPrice, res.Price) {
		return Anomaly{
			Site:     site,
			OldPrice: oldPrice,
			NewPrice: res.Price,
			Reason:   "abnormal price change",
		}, true
	}

	if oldTitle, ok := titles[site]; ok && oldTitle != "" && res.Title != "" {
		if CheckTokenMismatch(oldTitle, res.Title) {
			return Anomaly{
				Site:     site,
				OldPrice: oldPrice,
				NewPrice: res.Price,
				OldTitle: oldTitle,
				NewTitle: res.Title,
				Reason:   "title mismatch",
			}, true
		}
	}
	return Anomaly{}, false
}

func describeTransition(status domain.Status, tr CrawlTransition) string {
	switch status {
	case domain.StatusNeedsConfirmation:
		if len(tr.Anomalies) > 0 {
			a := tr.Anomalies[0]
			if a.Reason == "title mismatch" {
				return fmt.Sprintf("%s 상품명이 달라졌습니다: %q → %q", a.Site.DisplayName(), a.OldTitle, a.NewTitle)
			}
			return fmt.Sprintf("%s 가격이 급변했습니다: %d원 → %d원", a.Site.DisplayName(), a.OldPrice, a.NewPrice)
		}
		return "가격 변동을 확인해주세요."
	case domain.StatusBlockedSuspected:
		return fmt.Sprintf("가격 조회가 연속으로 실패했습니다 (실패 사이트: %d곳).", len(tr.Failed))
	default:
		return string(status)
	}
}

// NextCrawlDelay returns the minutes until the next crawl tick.
// While any backoff is outstanding the ladder wins over the configured interval.
func NextCrawlDelay(state domain.TrackingState, ladder []int) int {
	if len(ladder) == 0 {
		ladder = DefaultBackoffLadder
	}
	if state.BackoffCount > 0 {
		idx := min(state.BackoffCount-1, len(ladder)-1)
		return ladder[idx]
	}
	return state.CrawlInterval
}

// NotifySkip explains why a notify tick sent nothing
type NotifySkip string

const (
	NotifySkipNone     NotifySkip = ""
	NotifySkipInactive NotifySkip = "status not active"
	NotifySkipNoPrices NotifySkip = "nothing to notify"
)

// PlanNotify builds the price entries for a notify tick, one per tracked
// site with a recorded price, in selectedSites order.
func PlanNotify(state domain.TrackingState, titles map[domain.Site]string, now time.Time) ([]domain.PriceResult, NotifySkip) {
	if state.Status != domain.StatusActive {
		return nil, NotifySkipInactive
	}

	fetchedAt := now
	if state.LastCrawlAt != nil {
		fetchedAt = *state.LastCrawlAt
	}

	var results []domain.PriceResult
	for _, site := range state.SelectedSites {
		url, tracked := state.SelectedProducts[site]
		price := state.LastPrices[site]
		if !tracked || price <= 0 {
			continue
		}
		title := titles[site]
		if title == "" {
			title = fmt.Sprintf("%s (%s)", state.Keyword, site)
		}
		results = append(results, domain.PriceResult{
			Site:       site,
			Title:      title,
			Price:      price,
			ProductURL: url,
			FetchedAt:  fetchedAt,
		})
	}

	if len(results) == 0 {
		return nil, NotifySkipNoPrices
	}
	return results, NotifySkipNone
}

// ApplyNotifySent records a delivered notification
func ApplyNotifySent(state domain.TrackingState, now time.Time) (domain.TrackingState, []Intent) {
	st := state.Clone()
	sentAt := now
	st.LastNotifyAt = &sentAt
	return st, []Intent{
		{Kind: IntentPersist, State: st.Clone()},
		{Kind: IntentObserve, State: st.Clone()},
	}
}

// ApplyConfirm clears a suspicion status after the user checked the product.
// Returns false when there was nothing to confirm.
func ApplyConfirm(state domain.TrackingState) (domain.TrackingState, []Intent, bool) {
	if state.Status != domain.StatusNeedsConfirmation && state.Status != domain.StatusBlockedSuspected {
		return state, nil, false
	}
	st := state.Clone()
	st.Status = domain.StatusActive
	return st, []Intent{
		{Kind: IntentPersist, State: st.Clone()},
		{Kind: IntentObserve, State: st.Clone()},
	}, true
}
