// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/steamvault/steamvault/internal/auth"
	"github.com/steamvault/steamvault/internal/inventory"
	xvlog "github.com/steamvault/steamvault/internal/log"
)

const maxBodyBytes = 64 << 10

// Library defaults mirroring the reference client: CS:GO, community context.
const (
	defaultAppID     = 730
	defaultContextID = 2
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	AuthCode string `json:"auth_code"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type twoFactorRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func toLoginResponse(res auth.LoginResult) loginResponse {
	out := loginResponse{Success: res.Success}
	if !res.Success {
		out.Reason = res.Reason.String()
	}
	return out
}

// decodeBody reads a small JSON body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

// writeLoginError maps coordinator errors onto transport status codes.
// Failed logins are not transport errors; they come back 200 with success
// false and a reason.
func (s *Server) writeLoginError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrLoginInProgress),
		errors.Is(err, auth.ErrNoGuardChallenge),
		errors.Is(err, auth.ErrNoQrChallenge):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrConnectTimeout):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		logger := xvlog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("login request failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleLoginCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, errors.New("invalid JSON body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, errors.New("username and password are required"))
		return
	}

	res, err := s.coord.LoginWithCredentials(r.Context(), req.Username, req.Password, req.AuthCode)
	if err != nil {
		s.writeLoginError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

func (s *Server) handleLoginToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, errors.New("invalid JSON body"))
		return
	}
	if req.Token == "" {
		writeError(w, errors.New("token is required"))
		return
	}

	res, err := s.coord.LoginWithSessionToken(r.Context(), req.Token)
	if err != nil {
		s.writeLoginError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

func (s *Server) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, errors.New("invalid JSON body"))
		return
	}
	if req.Code == "" {
		writeError(w, errors.New("code is required"))
		return
	}

	res, err := s.coord.SubmitTwoFactorCode(r.Context(), req.Code)
	if err != nil {
		s.writeLoginError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

func (s *Server) handleQrChallenge(w http.ResponseWriter, r *http.Request) {
	url, err := s.coord.GenerateQrChallenge(r.Context())
	if err != nil {
		s.writeLoginError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"challenge_url": url})
}

func (s *Server) handleQrLogin(w http.ResponseWriter, r *http.Request) {
	res, err := s.coord.LoginWithQr(r.Context())
	if err != nil {
		s.writeLoginError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"logged_out": s.coord.Logout()})
}

type sessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	SteamID  string `json:"steam_id,omitempty"`
	Persona  string `json:"persona,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{LoggedIn: s.coord.IsLoggedIn()}
	if resp.LoggedIn {
		resp.SteamID = strconv.FormatUint(uint64(s.coord.Session().SteamID()), 10)
		resp.Persona = s.coord.GetPersonaName(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

type inventoryResponse struct {
	Items []inventory.Item `json:"items"`
	Count int              `json:"count"`
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	appID, err := queryUint32(r, "app_id", defaultAppID)
	if err != nil {
		writeError(w, err)
		return
	}
	contextID, err := queryUint32(r, "context_id", defaultContextID)
	if err != nil {
		writeError(w, err)
		return
	}

	cred := inventory.Credential{
		SteamID: uint64(s.coord.Session().SteamID()),
		Token:   s.coord.Session().BearerToken(),
	}
	items := s.inv.GetInventory(r.Context(), cred, appID, contextID)
	writeJSON(w, http.StatusOK, inventoryResponse{Items: items, Count: len(items)})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryUint32(r *http.Request, key string, def uint32) (uint32, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return uint32(v), nil
}
