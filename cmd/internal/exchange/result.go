package exchange

// Code is a stable failure code of an exchange.
type Code string

const (
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeOrganisationNotFound Code = "ORGANISATION_NOT_FOUND"
	CodeInvalidSlug          Code = "INVALID_SLUG"
	CodeTeamURLTaken         Code = "TEAM_URL_TAKEN"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeInternalError        Code = "INTERNAL_ERROR"
)

// Request is the validated input of one exchange.
// Credentials is the decoded, still untyped, credentials object.
type Request struct {
	Credentials    map[string]any
	Slug           string
	OrganisationID string
}

// Result is the discriminated outcome of an exchange: APIKey is set iff Success.
type Result struct {
	Success bool
	APIKey  string
	Code    Code
	Error   string
}

func ok(apiKey string) Result {
	return Result{Success: true, APIKey: apiKey}
}

func fail(code Code, msg string) Result {
	return Result{Success: false, Code: code, Error: msg}
}
