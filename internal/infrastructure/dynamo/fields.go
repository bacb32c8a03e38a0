package dynamo

// DynamoDB attribute names used in update expressions across all repos.
const (
	fieldUserID    = "user_id"
	fieldSessionID = "session_id"
	fieldType      = "type"
	fieldEnable    = "enable"
	fieldUpdatedAt = "updated_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)
