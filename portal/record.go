package portal

import (
	"time"

	"wave-portal-tui/rpc"
)

// Record is one wave as displayed. Records are never mutated after creation.
type Record struct {
	Address   string
	Timestamp time.Time
	Message   string
}

// FromRaw converts a contract wave; the on-chain timestamp is in seconds.
func FromRaw(w rpc.RawWave) Record {
	var secs int64
	if w.Timestamp != nil {
		secs = w.Timestamp.Int64()
	}
	return Record{
		Address:   w.Waver.Hex(),
		Timestamp: time.Unix(secs, 0),
		Message:   w.Message,
	}
}

func fromRawList(waves []rpc.RawWave) []Record {
	records := make([]Record, 0, len(waves))
	for _, w := range waves {
		records = append(records, FromRaw(w))
	}
	return records
}
