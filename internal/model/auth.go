package model

type LoginRequest struct {
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type CreateAdminRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
	Role     int    `json:"role"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type AuthLockedResponse struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
}

// AuthUser is the verified identity attached to a request.
type AuthUser struct {
	ID       int64
	PublicID string
	Kind     Kind
}

// Tokens is what a successful login or refresh hands back.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// RefreshRecord is the server-side state behind a refresh token.
type RefreshRecord struct {
	PrincipalID int64
	Kind        Kind
	PublicID    string
	Device      string
	Valid       bool
}
