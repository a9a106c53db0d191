package sheetstore

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ratio1/sheetsync_sdk_go/internal/logger"
)

// DefaultKey is used when a request names no key.
const DefaultKey = "staffride_main"

const (
	actionGet   = "get"
	actionSave  = "save"
	actionClear = "clear"

	actionUnknown = "unknown"

	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeInvalid  = "invalid"
	outcomeFailed   = "failed"

	errBadPassword = "bad password"
)

var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][0-9A-Za-z_$]*(\.[A-Za-z_$][0-9A-Za-z_$]*)*$`)

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Store Store
	// Password guards save and clear. A value starting with "$2" is treated
	// as a bcrypt hash. Empty disables the check.
	Password   string
	DefaultKey string
	Logger     logger.Logger
	Metrics    *Metrics
	Now        func() time.Time
}

// Handler answers the action-based content endpoint.
type Handler struct {
	store      Store
	password   string
	defaultKey string
	log        logger.Logger
	metrics    *Metrics
	now        func() time.Time
}

// response is the wire shape shared by every action.
type response struct {
	OK        bool   `json:"ok"`
	Key       string `json:"key,omitempty"`
	HTML      string `json:"html"`
	UpdatedAt string `json:"updated_at"`
	UpdatedBy string `json:"updated_by"`
	Error     string `json:"error,omitempty"`
}

// writeRequest carries the fields accepted on save and clear.
type writeRequest struct {
	Key      string  `json:"key"`
	HTML     *string `json:"html"`
	Password string  `json:"password"`
	User     string  `json:"user"`
}

// NewHandler builds a Handler. A nil store gets a fresh MemoryStore.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		store:      cfg.Store,
		password:   cfg.Password,
		defaultKey: strings.TrimSpace(cfg.DefaultKey),
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}
	if h.store == nil {
		h.store = NewMemoryStore()
	}
	if h.defaultKey == "" {
		h.defaultKey = DefaultKey
	}
	if h.log == nil {
		h.log = logger.NewNop()
	}
	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}
	return h
}

// Register mounts the endpoint on "/" and "/exec" for GET and POST.
func (h *Handler) Register(r gin.IRoutes) {
	for _, path := range []string{"/", "/exec"} {
		r.GET(path, h.serve)
		r.POST(path, h.serve)
	}
}

// Engine returns a standalone gin engine serving the endpoint.
func (h *Handler) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.Register(engine)
	return engine
}

func (h *Handler) serve(c *gin.Context) {
	started := time.Now()
	action := strings.ToLower(strings.TrimSpace(c.Query("action")))
	callback := strings.TrimSpace(c.Query("callback"))

	if callback != "" && !callbackPattern.MatchString(callback) {
		h.metrics.observe(action, outcomeInvalid, started)
		c.JSON(http.StatusBadRequest, response{Error: "invalid callback name"})
		return
	}

	var (
		status  int
		resp    response
		outcome string
	)
	switch action {
	case actionGet:
		status, resp, outcome = h.get(c)
	case actionSave, actionClear:
		if c.Request.Method != http.MethodPost {
			status, resp, outcome = http.StatusMethodNotAllowed, response{Error: action + " requires POST"}, outcomeInvalid
			break
		}
		status, resp, outcome = h.write(c, action)
	default:
		status, resp, outcome = http.StatusBadRequest, response{Error: fmt.Sprintf("unknown action %q", action)}, outcomeInvalid
	}

	h.metrics.observe(action, outcome, started)
	h.log.Debug("handled request",
		logger.String("action", action),
		logger.String("key", resp.Key),
		logger.String("outcome", outcome),
		logger.Int("status", status),
	)

	if callback != "" && c.Request.Method == http.MethodGet {
		payload, err := json.Marshal(resp)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(status, "application/javascript; charset=utf-8", []byte("/**/"+callback+"("+string(payload)+");"))
		return
	}
	c.JSON(status, resp)
}

func (h *Handler) get(c *gin.Context) (int, response, string) {
	key := h.resolveKey(c.Query("key"))
	doc, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		h.log.Error("store get failed", logger.String("key", key), logger.Error(err))
		return http.StatusInternalServerError, response{Key: key, Error: err.Error()}, outcomeFailed
	}
	if doc == nil {
		return http.StatusOK, response{OK: true, Key: key}, outcomeOK
	}
	return http.StatusOK, documentResponse(doc), outcomeOK
}

func (h *Handler) write(c *gin.Context, action string) (int, response, string) {
	req, err := parseWriteRequest(c.Request)
	if err != nil {
		return http.StatusBadRequest, response{Error: "invalid request body: " + err.Error()}, outcomeInvalid
	}
	key := h.resolveKey(firstNonEmpty(req.Key, c.Query("key")))

	if !h.checkPassword(req.Password) {
		return http.StatusOK, response{Key: key, Error: errBadPassword}, outcomeRejected
	}

	doc := Document{
		Key:       key,
		UpdatedAt: h.now().Format(time.RFC3339),
		UpdatedBy: strings.TrimSpace(req.User),
	}
	if action == actionSave {
		if req.HTML == nil {
			return http.StatusOK, response{Key: key, Error: "html is required"}, outcomeInvalid
		}
		doc.HTML = *req.HTML
	}

	if err := h.store.Put(c.Request.Context(), doc); err != nil {
		h.log.Error("store put failed", logger.String("key", key), logger.String("action", action), logger.Error(err))
		return http.StatusInternalServerError, response{Key: key, Error: err.Error()}, outcomeFailed
	}
	h.metrics.write(action)
	h.log.Info("document written", logger.String("key", key), logger.String("action", action))
	return http.StatusOK, documentResponse(&doc), outcomeOK
}

func (h *Handler) resolveKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return h.defaultKey
	}
	return key
}

func (h *Handler) checkPassword(given string) bool {
	if h.password == "" {
		return true
	}
	if strings.HasPrefix(h.password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(h.password), []byte(given)) == nil
	}
	return given == h.password
}

// parseWriteRequest accepts JSON, form-encoded and text/plain JSON bodies, the
// last being what opaque browser posts tend to send.
func parseWriteRequest(r *http.Request) (writeRequest, error) {
	var req writeRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return req, err
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return req, err
		}
		req.Key = values.Get("key")
		req.Password = values.Get("password")
		req.User = values.Get("user")
		if values.Has("html") {
			html := values.Get("html")
			req.HTML = &html
		}
		return req, nil
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, err
	}
	return req, nil
}

func documentResponse(doc *Document) response {
	return response{
		OK:        true,
		Key:       doc.Key,
		HTML:      doc.HTML,
		UpdatedAt: doc.UpdatedAt,
		UpdatedBy: doc.UpdatedBy,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
