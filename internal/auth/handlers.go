package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// StatusResp 认证状态
type StatusResp struct {
	NeedSetup bool `json:"need_setup"`
	LoggedIn  bool `json:"logged_in"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var statusOK = map[string]string{"status": "ok"}

// Status 返回当前认证状态。
// NeedSetup 仅在从未设置过主密码时为 true，设置过之后永远为 false。
func (g *Guard) Status(w http.ResponseWriter, r *http.Request) {
	hasPwd, err := g.HasPassword()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !hasPwd {
		writeJSON(w, http.StatusOK, StatusResp{NeedSetup: true})
		return
	}
	_, ok := g.getSession(r)
	writeJSON(w, http.StatusOK, StatusResp{LoggedIn: ok})
}

// SetupReq 首次设置主密码
type SetupReq struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

// Setup 仅首次可用：设置主密码，不创建会话。已存在主密码哈希时返回 409。
func (g *Guard) Setup(w http.ResponseWriter, r *http.Request) {
	hasPwd, err := g.HasPassword()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hasPwd {
		writeError(w, http.StatusConflict, "already set")
		return
	}
	var req SetupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	pwd := strings.TrimSpace(req.Password)
	if pwd != strings.TrimSpace(req.Confirm) {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if err := g.SetPassword(pwd); err != nil {
		g.passwordError(w, err)
		return
	}
	log.Info().Str("component", "auth").Msg("master password set")
	writeJSON(w, http.StatusOK, statusOK)
}

// LoginReq 登录
type LoginReq struct {
	Password string `json:"password"`
}

// Login 验证主密码并创建会话
func (g *Guard) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ok, err := g.VerifyPassword(strings.TrimSpace(req.Password))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		log.Warn().Str("component", "auth").Str("remote_addr", r.RemoteAddr).Msg("failed login")
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	}
	g.createSession(w)
	writeJSON(w, http.StatusOK, statusOK)
}

// Logout 登出
func (g *Guard) Logout(w http.ResponseWriter, r *http.Request) {
	g.destroySession(w, r)
	writeJSON(w, http.StatusOK, statusOK)
}

// ResetReq 重设主密码（需已登录）
type ResetReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	Confirm         string `json:"confirm"`
}

// Reset 校验当前密码后写入新哈希，结束其他会话并为调用方创建新会话
func (g *Guard) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cur := strings.TrimSpace(req.CurrentPassword)
	newPwd := strings.TrimSpace(req.NewPassword)
	if cur == "" {
		writeError(w, http.StatusBadRequest, "current password required")
		return
	}
	ok, err := g.VerifyPassword(cur)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "wrong current password")
		return
	}
	if newPwd != strings.TrimSpace(req.Confirm) {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if err := g.SetPassword(newPwd); err != nil {
		g.passwordError(w, err)
		return
	}
	g.dropAll()
	g.createSession(w)
	log.Info().Str("component", "auth").Msg("master password changed")
	writeJSON(w, http.StatusOK, statusOK)
}

func (g *Guard) passwordError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
