package auth

// Known OAuth scopes used by the realm backend.
const (
	ScopeRunsWrite     = "runs:write"
	ScopeRunsRead      = "runs:read"
	ScopeProfilesWrite = "profiles:write"
)
