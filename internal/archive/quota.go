package archive

import (
	"fmt"
	"time"
)

// Quota health buckets, derived from the worst of the three utilization
// ratios against the safety ceilings.
const (
	QuotaHealthy  = "healthy"
	QuotaWarning  = "warning"
	QuotaCritical = "critical"
)

const (
	quotaWarningRatio  = 0.70
	quotaCriticalRatio = 0.80
)

// Limits are the monthly safety ceilings. They default to 80% of the
// storage provider's free allowance so organic growth never reaches the
// billing edge.
type Limits struct {
	MaxObjectBytes int64
	StorageGiB     float64
	ClassAOps      int64
	ClassBOps      int64
}

// QuotaRecord tracks one calendar month of archive consumption. It is
// lazily created in the counter store on first use each month and always
// read and written as a whole record.
type QuotaRecord struct {
	Month         string    `json:"month"` // 2006-01
	StorageGiB    float64   `json:"storage_gib"`
	ClassAOps     int64     `json:"class_a_ops"`
	ClassBOps     int64     `json:"class_b_ops"`
	ArchivedCount int64     `json:"archived_count"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// recomputeStatus refreshes the health bucket from the maximum of the
// three utilization ratios. Called on every touch of the record.
func (q *QuotaRecord) recomputeStatus(limits Limits) {
	ratio := 0.0
	if limits.StorageGiB > 0 {
		ratio = max(ratio, q.StorageGiB/limits.StorageGiB)
	}
	if limits.ClassAOps > 0 {
		ratio = max(ratio, float64(q.ClassAOps)/float64(limits.ClassAOps))
	}
	if limits.ClassBOps > 0 {
		ratio = max(ratio, float64(q.ClassBOps)/float64(limits.ClassBOps))
	}

	switch {
	case ratio >= quotaCriticalRatio:
		q.Status = QuotaCritical
	case ratio >= quotaWarningRatio:
		q.Status = QuotaWarning
	default:
		q.Status = QuotaHealthy
	}
}

// SizeError rejects an object larger than the per-article ceiling before
// any storage or quota call happens.
type SizeError struct {
	Bytes int64
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("archive object of %d bytes exceeds the %d byte limit", e.Bytes, e.Limit)
}

// QuotaError rejects an operation that would push a monthly counter past
// its safety ceiling. It is never retried automatically.
type QuotaError struct {
	Resource string
	Used     float64
	Limit    float64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("monthly %s quota exhausted: %.4f of %.4f used", e.Resource, e.Used, e.Limit)
}
