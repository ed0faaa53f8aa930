package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/render"
)

// contentTypes maps artifact formats to response content types.
var contentTypes = map[string]string{
	"dot": "text/vnd.graphviz",
	"svg": "image/svg+xml",
	"png": "image/png",
}

// handleArtifact renders a stored run on demand. The grid view is the
// only one a report can reproduce; netlist diagrams need the netlist
// and are a CLI concern.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "svg"
	}
	ct, ok := contentTypes[format]
	if !ok {
		writeError(w, errors.New(errors.ErrCodeInvalidConfig, "unknown artifact format %q", format))
		return
	}

	rep, err := s.store.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}

	dot := render.GridDOT(rep)
	var data []byte
	switch format {
	case "dot":
		data = []byte(dot)
	case "svg":
		data, err = render.SVG(r.Context(), dot)
	case "png":
		data, err = render.PNG(r.Context(), dot)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
