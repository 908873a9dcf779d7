// Package server 通过本地 JSON API 暴露连接列表。
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/samber/lo"

	"conman/internal/auth"
	"conman/internal/launch"
	"conman/internal/manager"
	"conman/internal/models"
)

// ConnectionResp API 返回的连接，不包含密码密文
type ConnectionResp struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	Address     string `json:"address,omitempty"`
	PrivateKey  string `json:"private_key,omitempty"`
	Username    string `json:"username,omitempty"`
	Command     string `json:"command,omitempty"`
	HasPassword bool   `json:"has_password"`
}

// ConnectionBody 新增/编辑请求。Password 为明文；编辑时省略则保留原密码，传 "" 则清除。
// 编辑时忽略 Type。
type ConnectionBody struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Address    string  `json:"address"`
	PrivateKey string  `json:"private_key"`
	Password   *string `json:"password,omitempty"`
	Username   string  `json:"username"`
	Command    string  `json:"command"`
}

func toResp(c models.Connection) ConnectionResp {
	r := ConnectionResp{
		Name:        c.Name,
		Type:        string(c.Kind()),
		Label:       c.Label(),
		HasPassword: c.PasswordToken() != "",
	}
	switch t := c.Target.(type) {
	case models.SSH:
		r.Address, r.PrivateKey = t.Address, t.PrivateKey
	case models.RDP:
		r.Address, r.Username = t.Address, t.Username
	case models.Custom:
		r.Command = t.Command
	}
	return r
}

func (b ConnectionBody) input() (manager.Input, error) {
	in := manager.Input{
		Name:       b.Name,
		Address:    b.Address,
		PrivateKey: b.PrivateKey,
		Password:   b.Password,
		Username:   b.Username,
		Command:    b.Command,
	}
	if b.Type != "" {
		kind, err := models.ParseKind(b.Type)
		if err != nil {
			return in, err
		}
		in.Type = kind
	}
	return in, nil
}

// Server handler 依赖
type Server struct {
	Manager *manager.Manager
	Guard   *auth.Guard
}

// New 创建 Server
func New(m *manager.Manager, g *auth.Guard) *Server {
	return &Server{Manager: m, Guard: g}
}

// Router 注册所有路由
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(Log)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/status", s.Guard.Status)
		r.Post("/setup", s.Guard.Setup)
		r.Post("/login", s.Guard.Login)
		r.Post("/logout", s.Guard.Logout)
		r.With(s.Guard.RequireAuth).Post("/reset", s.Guard.Reset)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.Guard.RequireAuth)
		r.Get("/api/connections", s.listConnections)
		r.Post("/api/connections", s.createConnection)
		r.Put("/api/connections/{name}", s.updateConnection)
		r.Delete("/api/connections/{name}", s.deleteConnection)
		r.Post("/api/connections/{name}/connect", s.connect)
		r.Get("/api/export", s.export)
		r.Post("/api/import", s.importConnections)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor 把 manager 和 models 的错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, manager.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidConnection),
		errors.Is(err, launch.ErrEmptyCommand),
		errors.Is(err, launch.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": lo.Map(s.Manager.List(), func(c models.Connection, _ int) ConnectionResp { return toResp(c) }),
	})
}

func (s *Server) createConnection(w http.ResponseWriter, r *http.Request) {
	var body ConnectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	in, err := body.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.Manager.Add(in)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toResp(c))
}

func (s *Server) updateConnection(w http.ResponseWriter, r *http.Request) {
	var body ConnectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	in, err := body.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.Manager.Edit(chi.URLParam(r, "name"), in)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResp(c))
}

func (s *Server) deleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.Remove(chi.URLParam(r, "name")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// connect 在新终端窗口中启动客户端（rdp 直接启动），200 仅表示进程已启动
func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.Connect(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}
