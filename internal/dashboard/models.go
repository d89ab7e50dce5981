package dashboard

// Summary is the KPI block returned by GET /dashboard/summary.
type Summary struct {
	TodayTotal  int `json:"today_total"`
	TodayMissed int `json:"today_missed"`
	WeekTotal   int `json:"week_total"`
	WeekMissed  int `json:"week_missed"`

	Inbound  int `json:"inbound"`
	Outbound int `json:"outbound"`

	AvgDurationSeconds         float64 `json:"avg_duration_seconds"`
	AvgInboundDurationSeconds  float64 `json:"avg_inbound_duration_seconds"`
	AvgOutboundDurationSeconds float64 `json:"avg_outbound_duration_seconds"`
}

// HoursPerDay is the number of buckets in an hourly snapshot.
const HoursPerDay = 24

// HourBucket is one entry of GET /dashboard/hourly.
type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// HourlyResponse is the body of GET /dashboard/hourly.
type HourlyResponse struct {
	Buckets []HourBucket `json:"buckets"`
}

// Hourly folds the response into exactly 24 counts. Out-of-range hours and
// negative counts are dropped.
func (r HourlyResponse) Hourly() [HoursPerDay]int {
	var out [HoursPerDay]int
	for _, b := range r.Buckets {
		if b.Hour < 0 || b.Hour >= HoursPerDay || b.Count < 0 {
			continue
		}
		out[b.Hour] += b.Count
	}
	return out
}

// TimeseriesPoint is one day of GET /dashboard/timeseries.
type TimeseriesPoint struct {
	Date   string `json:"date"`
	Total  int    `json:"total"`
	Missed int    `json:"missed"`
}

type Timeseries struct {
	Range  string            `json:"range"`
	Points []TimeseriesPoint `json:"points"`
}
