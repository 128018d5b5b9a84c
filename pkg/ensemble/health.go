package ensemble

// FailureCategory tells which kind of observation made a member unhealthy.
type FailureCategory int

const (
	CategoryNone FailureCategory = iota
	// CategoryConnected is a failure while establishing the first connection.
	CategoryConnected
	// CategoryDisconnected is a session that did not come back in time.
	CategoryDisconnected
	CategoryAuthFailed
)

func (c FailureCategory) String() string {
	switch c {
	case CategoryConnected:
		return "Connected"
	case CategoryDisconnected:
		return "Disconnected"
	case CategoryAuthFailed:
		return "AuthFailed"
	}
	return "None"
}

// HealthRecord is the last known health of one ensemble. The zero value is
// the record of an ensemble that was never observed.
type HealthRecord struct {
	IsHealthy           bool
	ConsecutiveFailures int
	FailureCategory     FailureCategory
	FailureReason       string
}

func (r *HealthRecord) markHealthy() {
	r.IsHealthy = true
	r.ConsecutiveFailures = 0
	r.FailureCategory = CategoryNone
	r.FailureReason = ""
}

func (r *HealthRecord) markFailed(category FailureCategory, reason string) {
	r.IsHealthy = false
	r.ConsecutiveFailures++
	r.FailureCategory = category
	r.FailureReason = reason
}
