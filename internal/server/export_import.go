package server

import (
	"encoding/json"
	"net/http"

	"conman/internal/models"
)

// export 导出全部连接（含密码密文），用于备份或迁移。密文只能用同一个密钥文件解开
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="conman-connections.json"`)
	if err := s.Manager.Export(w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ImportReq Replace 为 true 时整体替换，否则按名称合并
type ImportReq struct {
	Connections []models.Connection `json:"connections"`
	Replace     bool                `json:"replace"`
}

func (s *Server) importConnections(w http.ResponseWriter, r *http.Request) {
	var req ImportReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	count, err := s.Manager.Import(req.Connections, req.Replace)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "count": count})
}
