package sink

import (
	"strconv"
	"time"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// Header is the fixed field order of every stored record.
var Header = []string{
	"pump",
	"start",
	"end",
	"elapsed_ms",
	"flow_rate",
	"volume",
	"total_volume",
	"pulses",
}

// TimeLayout formats record timestamps (local time, microsecond precision).
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatRecord renders r in Header order.
func FormatRecord(r flow.Result) []string {
	return []string{
		r.Channel,
		r.Start.Local().Format(TimeLayout),
		r.End.Local().Format(TimeLayout),
		formatFloat(r.ElapsedMs),
		formatFloat(r.Rate),
		formatFloat(r.Volume),
		formatFloat(r.TotalVolume),
		strconv.FormatUint(r.Pulses, 10),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// dayKey returns the store key for t.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
