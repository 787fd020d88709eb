package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/dgallion1/treerule/internal/bound"
	"github.com/dgallion1/treerule/internal/clftree"
	"github.com/dgallion1/treerule/internal/dotparse"
	"github.com/dgallion1/treerule/internal/rules"
)

// handleTreeRules extracts leaf rules from a JSON model document.
func (s *Server) handleTreeRules(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	opts, ok := s.walkOptions(w, r)
	if !ok {
		return
	}
	model, err := clftree.DecodeJSON(r.Body)
	if err != nil {
		extractError(w, err)
		return
	}
	table, err := model.Leaves(opts)
	if err != nil {
		extractError(w, err)
		return
	}
	writeTable(w, r, table, nil)
}

// handleDOTRules extracts leaf rules from a graphviz export in the body.
func (s *Server) handleDOTRules(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	src, err := io.ReadAll(r.Body)
	if err != nil {
		extractError(w, err)
		return
	}
	doc, err := dotparse.Parse(string(src))
	if err != nil {
		extractError(w, err)
		return
	}
	table, err := doc.Rules(dotparse.Options{Logger: s.log})
	if err != nil {
		extractError(w, err)
		return
	}
	mismatches := doc.PositionalMismatches()
	if mismatches == nil {
		mismatches = []int{}
	}
	writeTable(w, r, table, mismatches)
}

func (s *Server) walkOptions(w http.ResponseWriter, r *http.Request) (clftree.Options, bool) {
	opts := clftree.Options{MaxDepth: s.cfg.MaxTreeDepth}
	if v := r.URL.Query().Get("max_depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "max_depth must be a positive integer", http.StatusBadRequest)
			return opts, false
		}
		if n < opts.MaxDepth || opts.MaxDepth == 0 {
			opts.MaxDepth = n
		}
	}
	return opts, true
}

// writeTable encodes a rule table, sorted by impurity when ?sort=impurity.
// mismatches is omitted when nil.
func writeTable(w http.ResponseWriter, r *http.Request, table *rules.Table, mismatches []int) {
	switch r.URL.Query().Get("sort") {
	case "", "none":
	case "impurity":
		table = table.SortedByImpurity()
	default:
		jsonError(w, "sort must be impurity or none", http.StatusBadRequest)
		return
	}

	resp := map[string]any{
		"leaves": table.Leaves,
		"count":  table.Len(),
	}
	if mismatches != nil {
		resp["positional_mismatches"] = mismatches
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// extractError maps extraction failures: bad input is 422, an oversized
// body 413, anything else 500.
func extractError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, bound.ErrInvertedBound),
		errors.Is(err, bound.ErrInvalidThreshold),
		errors.Is(err, clftree.ErrInvalidTree),
		errors.Is(err, dotparse.ErrMalformedDocument):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
