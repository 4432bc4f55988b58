package model

// TokenRequest is the optional body of the token endpoint. It is required
// only when user accounts are configured.
type TokenRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// StatusLoggedOut is the status of a successful logout.
const StatusLoggedOut = "logged_out"

// LogoutResponse confirms that the presented token was revoked.
type LogoutResponse struct {
	Status string `json:"status"`
}
