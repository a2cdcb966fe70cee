package reporting

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"barberline/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

// Analytics summarizes a shop's calls over the trailing window. Days is
// clamped to [1, MaxDays]; zero means DefaultDays.
func (s *Service) Analytics(ctx context.Context, req AnalyticsRequest) (Analytics, error) {
	if req.ShopID == "" {
		return Analytics{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Analytics{}, errors.New("reporting: repository not configured")
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	days := clamp(req.Days, DefaultDays, 1, MaxDays)
	since := s.clock().AddDate(0, 0, -days)

	rows, err := s.repo.ListCallLogs(ctx, req.ShopID, since)
	if err != nil {
		return Analytics{}, err
	}

	out := Analytics{ByOutcome: map[calls.Outcome]int{}}
	var (
		durationSum   int
		durationCount int
		dates         = map[string]*DateBucket{}
		hours         = map[int]int{}
	)
	for _, l := range rows {
		out.TotalCalls++
		out.ByOutcome[l.Outcome]++
		booked := l.Outcome == calls.OutcomeBooked
		if booked {
			out.Booked++
		}
		if l.DurationSec != nil {
			durationSum += *l.DurationSec
			durationCount++
		}

		local := l.CreatedAt.In(loc)
		day := local.Format(time.DateOnly)
		b, ok := dates[day]
		if !ok {
			b = &DateBucket{Date: day}
			dates[day] = b
		}
		b.Total++
		if booked {
			b.Booked++
		}
		hours[local.Hour()]++
	}

	if out.TotalCalls > 0 {
		out.ConversionRate = math.Round(float64(out.Booked)/float64(out.TotalCalls)*10000) / 100
	}
	if durationCount > 0 {
		out.AvgDuration = int(math.Round(float64(durationSum) / float64(durationCount)))
	}

	out.ByDate = make([]DateBucket, 0, len(dates))
	for _, b := range dates {
		out.ByDate = append(out.ByDate, *b)
	}
	sort.Slice(out.ByDate, func(i, j int) bool { return out.ByDate[i].Date < out.ByDate[j].Date })

	out.ByHour = make([]HourBucket, 0, len(hours))
	for h, n := range hours {
		out.ByHour = append(out.ByHour, HourBucket{Hour: h, Count: n})
	}
	sort.Slice(out.ByHour, func(i, j int) bool { return out.ByHour[i].Hour < out.ByHour[j].Hour })
	return out, nil
}

// CallLogs returns one page of call history. page is 1-based; limit is
// clamped to [1, MaxPageSize].
func (s *Service) CallLogs(ctx context.Context, shopID string, page, limit int) (CallPage, error) {
	if shopID == "" {
		return CallPage{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallPage{}, errors.New("reporting: repository not configured")
	}
	if page < 1 {
		page = 1
	}
	limit = clamp(limit, DefaultPageSize, 1, MaxPageSize)

	logs, total, err := s.repo.PageCallLogs(ctx, shopID, limit, (page-1)*limit)
	if err != nil {
		return CallPage{}, err
	}
	return CallPage{Calls: logs, Total: total, Page: page, Limit: limit}, nil
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
