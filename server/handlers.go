package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/hsp"
	"github.com/refundmyrail/refundmyrail/queue"
)

func newHandlers(resolver *queue.Resolver) *handlers {
	return &handlers{resolver: resolver}
}

type handlers struct {
	resolver *queue.Resolver
}

// Metrics serves interactive service-list queries.
func (h *handlers) Metrics(res http.ResponseWriter, req *http.Request) {
	h.serve(res, req, hsp.KindMetrics)
}

// Details serves interactive service-detail queries.
func (h *handlers) Details(res http.ResponseWriter, req *http.Request) {
	h.serve(res, req, hsp.KindDetails)
}

func (h *handlers) serve(res http.ResponseWriter, req *http.Request, kind string) {
	var payload hsp.Payload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(res, http.StatusBadRequest, "invalid request body")
		return
	}

	raw, fromCache, err := h.resolver.Resolve(req.Context(), kind, payload)
	if err != nil {
		// upstream failures pass through with their original status
		// and body so the client sees what the rail API said
		if uerr, ok := hsp.IsUpstream(err); ok {
			writeUpstreamError(res, uerr)
			return
		}
		if errors.Cause(err) == queue.ErrTimeout {
			writeError(res, http.StatusGatewayTimeout, "timed out waiting for upstream result")
			return
		}
		log.Errorf("server: %s request failed: %s", kind, err)
		writeError(res, http.StatusInternalServerError, "internal server error")
		return
	}

	if fromCache {
		log.Debugf("server: %s request served from cache", kind)
		raw = cache.Tag(raw)
	}
	res.Header().Set("Content-Type", "application/json")
	res.Write(raw)
}

func writeUpstreamError(res http.ResponseWriter, uerr *hsp.Error) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(uerr.Status)
	if json.Valid([]byte(uerr.Body)) {
		res.Write([]byte(uerr.Body))
		return
	}
	json.NewEncoder(res).Encode(map[string]string{"error": uerr.Body})
}

func writeError(res http.ResponseWriter, status int, msg string) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	json.NewEncoder(res).Encode(map[string]string{"error": msg})
}
