package domain

import "time"

// Token is the wire shape returned by the auth backend on login, register
// and refresh.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Credential is the locally held access/refresh pair with its computed
// expiry instant. It is a value type: updates replace the whole struct,
// fields are never mutated in place.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewCredential builds a credential from a backend token, anchoring the
// expiry at now + expires_in.
func NewCredential(tok Token, now time.Time) Credential {
	return Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
}

// ExpiredAt reports whether the credential should be treated as expired at
// the given instant, applying the skew margin so a token is considered
// stale slightly before the server would reject it.
func (c Credential) ExpiredAt(now time.Time, skew time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-skew))
}
