// Package web serves the operator dashboard: login, job submission and
// progress pages that proxy the public API on the same process.
package web

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/local/pdfsqueeze/internal/config"
	"github.com/local/pdfsqueeze/internal/statuscheck"
)

// DepthFunc reports queue depths (ready, delayed, dlq).
type DepthFunc func(ctx context.Context) (int64, int64, int64, error)

type Web struct {
	tpl     *template.Template
	cfg     config.ServerConfig
	checker *statuscheck.Checker
	depths  DepthFunc
	port    string

	mu       sync.Mutex
	sessions map[string]struct{}
}

func New(cfg config.ServerConfig, checker *statuscheck.Checker, depths DepthFunc) *Web {
	port := "8080"
	if i := strings.LastIndex(cfg.Addr, ":"); i >= 0 && i+1 < len(cfg.Addr) {
		port = cfg.Addr[i+1:]
	}
	if v := os.Getenv("PORT"); v != "" {
		port = v
	}
	return &Web{
		tpl:      template.Must(template.New("web").Parse(pageTemplates)),
		cfg:      cfg,
		checker:  checker,
		depths:   depths,
		port:     port,
		sessions: map[string]struct{}{},
	}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/web/login", w.handleLogin)
	mux.HandleFunc("/web/logout", w.handleLogout)
	mux.HandleFunc("/web/", w.requireAuth(w.handleDashboard))
	mux.HandleFunc("/web/dashboard", w.requireAuth(w.handleDashboard))
	mux.HandleFunc("/web/submit", w.requireAuth(w.handleSubmit))
	mux.HandleFunc("/web/upload", w.requireAuth(w.handleUpload))
	mux.HandleFunc("/web/progress/", w.requireAuth(w.handleProgress))
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	_ = w.tpl.ExecuteTemplate(wr, name, data)
}

func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if w.cfg.DashboardUser == "" || w.cfg.DashboardPassHash == "" {
			http.Error(wr, "dashboard credentials not configured", http.StatusForbidden)
			return
		}
		c, err := r.Cookie("session")
		if err != nil || !w.validSession(c.Value) {
			http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
			return
		}
		next(wr, r)
	}
}

func (w *Web) validSession(token string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.sessions[token]
	return ok
}

func (w *Web) newSession() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)
	w.mu.Lock()
	w.sessions[token] = struct{}{}
	w.mu.Unlock()
	return token
}

func (w *Web) handleLogin(wr http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.render(wr, "login", map[string]any{"Error": r.URL.Query().Get("error")})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Redirect(wr, r, "/web/login?error=invalid+form", http.StatusSeeOther)
			return
		}
		user := r.Form.Get("username")
		pass := r.Form.Get("password")
		if user == w.cfg.DashboardUser &&
			bcrypt.CompareHashAndPassword([]byte(w.cfg.DashboardPassHash), []byte(pass)) == nil {
			http.SetCookie(wr, &http.Cookie{Name: "session", Value: w.newSession(), Path: "/", HttpOnly: true})
			http.Redirect(wr, r, "/web/dashboard", http.StatusSeeOther)
			return
		}
		http.Redirect(wr, r, "/web/login?error=invalid+credentials", http.StatusSeeOther)
	default:
		wr.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (w *Web) handleLogout(wr http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("session"); err == nil {
		w.mu.Lock()
		delete(w.sessions, c.Value)
		w.mu.Unlock()
	}
	http.SetCookie(wr, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
}

func (w *Web) handleDashboard(wr http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Username": w.cfg.DashboardUser,
		"Ready":    int64(0),
		"Delayed":  int64(0),
		"DLQ":      int64(0),
	}
	if w.checker != nil {
		data["Health"] = w.checker.Summary(r.Context())
	}
	if w.depths != nil {
		ready, delayed, dlq, err := w.depths(r.Context())
		if err == nil {
			data["Ready"] = ready
			data["Delayed"] = delayed
			data["DLQ"] = dlq
		}
	}
	w.render(wr, "dashboard", data)
}

// handleSubmit proxies a path/URL submission to the /compress API.
func (w *Web) handleSubmit(wr http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(wr, "invalid form", http.StatusBadRequest)
		return
	}
	body := fmt.Sprintf(`{"file_path":%q,"target_size":%q,"tolerance":%q,"extract_text":%v,"remove_text":%v}`,
		r.Form.Get("file_path"),
		r.Form.Get("target_size"),
		r.Form.Get("tolerance"),
		r.Form.Get("extract_text") == "on",
		r.Form.Get("remove_text") == "on")
	url := fmt.Sprintf("http://127.0.0.1:%s/compress", w.port)
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		http.Error(wr, "request failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

// handleUpload proxies multipart uploads to /compress_upload.
func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(wr, "invalid multipart form", http.StatusBadRequest)
		return
	}

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(wr, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	fw, err := mw.CreateFormFile("file", hdr.Filename)
	if err != nil {
		http.Error(wr, "upload error", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(fw, file); err != nil {
		http.Error(wr, "upload error", http.StatusInternalServerError)
		return
	}
	for _, k := range []string{"target_size", "tolerance"} {
		if v := r.FormValue(k); v != "" {
			_ = mw.WriteField(k, v)
		}
	}
	_ = mw.Close()

	url := fmt.Sprintf("http://127.0.0.1:%s/compress_upload", w.port)
	req, _ := http.NewRequest(http.MethodPost, url, &b)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		http.Error(wr, "request failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

func (w *Web) handleProgress(wr http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/web/progress/")
	url := fmt.Sprintf("http://127.0.0.1:%s/progress/%s", w.port, jobID)
	resp, err := http.Get(url)
	if err != nil {
		http.Error(wr, "progress failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	_, _ = io.Copy(wr, resp.Body)
}
