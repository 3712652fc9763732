// Package server wires the request pipeline and HTTP routing, dispatching
// to the resource services and admin/discovery endpoints.
package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pranems/scimserver/auth"
	"github.com/pranems/scimserver/internal/endpoint"
	"github.com/pranems/scimserver/internal/logging"
	"github.com/pranems/scimserver/internal/requestlog"
	"github.com/pranems/scimserver/scim"
)

const slowRequestThreshold = 2 * time.Second

// Pipeline implements the ordered request stages: correlation id,
// authentication, tenant resolution, content-type enforcement, dispatch,
// central error mapping, and audit handoff.
type Pipeline struct {
	auth       auth.PrincipalAuthenticator
	endpoints  *endpoint.Service
	logger     *logging.Logger
	reqlog     *requestlog.Buffer
	corsOrigins []string
}

func NewPipeline(authenticator auth.PrincipalAuthenticator, endpoints *endpoint.Service, logger *logging.Logger, reqlog *requestlog.Buffer, corsOrigins []string) *Pipeline {
	return &Pipeline{auth: authenticator, endpoints: endpoints, logger: logger, reqlog: reqlog, corsOrigins: corsOrigins}
}

// responseRecorder captures status and body so the audit stage can log
// them without the handler needing to know about logging.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Wrap applies the full pipeline around a routed handler.
func (p *Pipeline) Wrap(next http.Handler) http.Handler {
	return p.cors(p.correlate(p.authenticate(p.audit(next))))
}

func (p *Pipeline) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(p.corsOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowed := range p.corsOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,If-Match,If-None-Match,X-Request-Id")
					break
				}
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// correlate implements stages 1-2: adopt or assign X-Request-Id, echo it,
// and install it (plus the logging package's own context key) for every
// downstream log call to pick up.
func (p *Pipeline) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		ctx := withRequestID(r.Context(), reqID)
		ctx = logging.WithRequestID(ctx, reqID)
		ctx = withStartTime(ctx, time.Now())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate implements stage 3: bearer auth, 401 on failure.
func (p *Pipeline) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := p.auth.AuthenticateRequest(r)
		if err != nil {
			p.logger.Warn(r.Context(), logging.CategoryAuth, "authentication failed", map[string]any{"path": r.URL.Path, "error": err.Error()})
			handler := scim.NewHandler("")
			handler.WriteError(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}

		ctx := auth.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicPath(path string) bool {
	return path == "/health" || path == "/healthz"
}

// WithTenant implements stage 4, used by router handlers for
// /scim/endpoints/{endpointId}/... routes.
func (p *Pipeline) WithTenant(w http.ResponseWriter, r *http.Request, endpointID string) (*http.Request, bool) {
	ep, err := p.endpoints.Get(r.Context(), endpointID)
	if err != nil {
		handler := scim.NewHandler("")
		handler.WriteError(w, http.StatusNotFound, "endpoint not found", scim.ScimTypeNoTarget)
		return r, false
	}
	ctx := withEndpoint(r.Context(), ep.ID, ep.Config)
	ctx = logging.WithEndpointID(ctx, ep.ID)
	return r.WithContext(ctx), true
}

// audit implements stages 6-8: dispatch, capture outcome, hand off to the
// request log buffer, detect slow requests.
func (p *Pipeline) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody []byte
		if r.Body != nil {
			reqBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		rec := &responseRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		if duration > slowRequestThreshold {
			p.logger.Warn(r.Context(), logging.CategoryHTTP, "slow request", map[string]any{
				"method": r.Method, "path": r.URL.Path, "durationMs": duration.Milliseconds(),
			})
		}

		if p.reqlog != nil {
			// The tenant context is installed on the inner request by
			// WithTenant, so the endpoint id is taken from the URL here.
			endpointID := EndpointIDFromContext(r.Context())
			if rest, ok := strings.CutPrefix(r.URL.Path, "/scim/endpoints/"); ok && endpointID == "" {
				endpointID, _, _ = strings.Cut(rest, "/")
			}
			p.reqlog.Enqueue(requestlog.Record{
				EndpointID:             endpointID,
				Method:                 r.Method,
				URL:                    r.URL.String(),
				Status:                 rec.status,
				Duration:               duration,
				RequestBody:            string(reqBody),
				ResponseBody:           rec.body.String(),
				ResponseIdentifierHint: identifierHint(rec.body.Bytes()),
				RequestIdentifierHint:  identifierHint(reqBody),
			})
		}

		p.logger.Info(r.Context(), logging.CategoryHTTP, "request completed", map[string]any{
			"method": r.Method, "path": r.URL.Path, "status": rec.status, "durationMs": duration.Milliseconds(),
		})
	})
}

// WriteSCIMError centralizes stage 7's error translation: any *scim.SCIMError
// reaching a handler is mapped straight through; anything else becomes a
// 500 with no leaked detail.
func WriteSCIMError(h *scim.Handler, w http.ResponseWriter, err error) {
	if serr, ok := err.(*scim.SCIMError); ok {
		h.WriteSCIMError(w, serr)
		return
	}
	h.WriteError(w, http.StatusInternalServerError, "internal server error", "")
}
