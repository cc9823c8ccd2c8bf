package authhttp

import (
	"errors"
	"net/http"
	"time"

	"github.com/hk-meko/hasura-auth/core"
)

type tokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken          string `json:"accessToken"`
	AccessTokenExpiresIn int64  `json:"accessTokenExpiresIn"`
	RefreshToken         string `json:"refreshToken"`
}

// handleTokenPOST exchanges a refresh token (obtained from the sign-in
// redirect) for a signed access token plus a rotated refresh token.
func (s *Service) handleTokenPOST(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		badRequest(w, errInvalidRequest)
		return
	}
	access, exp, newRefresh, err := s.svc.ExchangeRefreshToken(r.Context(), req.RefreshToken, r.UserAgent())
	if err != nil {
		if errors.Is(err, core.ErrInvalidRefreshToken) {
			unauthorized(w, "invalid-refresh-token")
			return
		}
		serverErr(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:          access,
		AccessTokenExpiresIn: int64(time.Until(exp).Seconds()),
		RefreshToken:         newRefresh,
	})
}
