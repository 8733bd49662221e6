package dynamo

// DynamoDB attribute names used in update expressions across the session
// repo. Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldSessionID = "session_id"
	fieldUserID    = "user_id"
	fieldTimeIn    = "time_in"
	fieldTimeOut   = "time_out"
	fieldTotalTime = "total_time"
	fieldNotified  = "notified"
	fieldUpdatedAt = "updated_at"
)

// Secondary indexes on the sessions table.
const (
	indexUserID   = "user_id-index"
	indexNotified = "notified-index"
)
