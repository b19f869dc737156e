package common

// RequestIDHeaderName is the HTTP header carrying the per-request id. The
// server echoes it back and attaches it to every log line of the request.
const RequestIDHeaderName = "X-Request-ID"

// Message texts shared by the gateway and the CLI client.
const (
	MsgFormSaved          = "Form saved"
	MsgLoginSuccessful    = "Login successful"
	MsgUserUpdated        = "User updated successfully"
	MsgRiskBucketUpdated  = "Risk bucket updated"
	MsgInvalidCredentials = "Invalid credentials"

	MsgEmptyBody                = "Empty request body"
	MsgMissingUsernameOrProfile = "Missing username or profile"
	MsgUserNotFound             = "User not found"
	MsgNoRiskBucket             = "Risk bucket not computed yet"
	MsgAdvisorUnavailable       = "Risk advisor unavailable"
	MsgTooManyRequests          = "Too many requests"
	MsgInternalError            = "Internal server error"
)
