package codec

import (
	"time"

	fastwire "github.com/reoring/fastwire"
)

// TimestampMillis returns a Codec between uint64 milliseconds since the
// Unix epoch (the usual wire form of market-data timestamps) and time.Time
// in UTC.
func TimestampMillis() Codec[uint64, time.Time] {
	return timestampMillis{}
}

type timestampMillis struct{}

func (timestampMillis) Decode(w uint64) (time.Time, error) {
	return time.UnixMilli(int64(w)).UTC(), nil
}

func (timestampMillis) Encode(d time.Time) (uint64, error) {
	ms := d.UnixMilli()
	if ms < 0 {
		return 0, fastwire.Issues{
			fastwire.IssueAt("/", fastwire.CodeOverflow, "timestamps before the epoch are not representable"),
		}
	}
	return uint64(ms), nil
}
