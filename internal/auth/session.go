// Package auth 用主密码和 cookie 会话保护 HTTP API。
package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	cookieName   = "conman_session"
	sessionTTL   = 24 * time.Hour
	cookieMaxAge = 86400
)

// Guard 持有主密码哈希文件和内存中的会话
type Guard struct {
	HashPath string
	// Cost bcrypt 成本，测试中用 bcrypt.MinCost
	Cost int

	mu       sync.RWMutex
	sessions map[string]time.Time
	now      func() time.Time
}

// NewGuard 哈希文件保存在 hashPath
func NewGuard(hashPath string) *Guard {
	return &Guard{HashPath: hashPath, sessions: make(map[string]time.Time), now: time.Now}
}

func (g *Guard) createSession(w http.ResponseWriter) string {
	id := uuid.NewString()
	g.mu.Lock()
	g.sessions[id] = g.now().Add(sessionTTL)
	g.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return id
}

func (g *Guard) getSession(r *http.Request) (string, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	g.mu.RLock()
	exp, ok := g.sessions[c.Value]
	g.mu.RUnlock()
	if !ok || g.now().After(exp) {
		return "", false
	}
	return c.Value, true
}

func (g *Guard) destroySession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		g.mu.Lock()
		delete(g.sessions, c.Value)
		g.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// dropAll 主密码变更后结束所有会话
func (g *Guard) dropAll() {
	g.mu.Lock()
	g.sessions = make(map[string]time.Time)
	g.mu.Unlock()
}
