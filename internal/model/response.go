package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

type AuthLogoutResponse struct {
	Status string `json:"status"`
}

type AuthMeResponse struct {
	Principal PrincipalView `json:"principal"`
}

type AuthConfigResponse struct {
	AllowSignup bool `json:"allowSignup"`
}

type PrincipalResponse struct {
	Principal PrincipalView `json:"principal"`
}

type AdminLogView struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Detail      map[string]any `json:"detail,omitempty"`
	IP          string         `json:"ip"`
	CreatedAt   string         `json:"createdAt"`
}

type AdminLogsResponse struct {
	Logs []AdminLogView `json:"logs"`
}
