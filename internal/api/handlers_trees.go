package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/treerule/internal/pathstore"
	"github.com/go-chi/chi/v5"
)

// handleListLeaves lists the leaf rules published for a tree.
func (s *Server) handleListLeaves(w http.ResponseWriter, r *http.Request) {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "publishing is disabled", http.StatusServiceUnavailable)
		return
	}
	treeID := chi.URLParam(r, "treeID")
	if !validTreeID(treeID) {
		jsonError(w, "invalid tree id", http.StatusBadRequest)
		return
	}

	children, err := ps.ListChildren(r.Context(), pathstore.TreePrefix(treeID)+"/leaves", 10000)
	if err != nil {
		jsonError(w, "failed to list leaves: "+err.Error(), http.StatusBadGateway)
		return
	}
	leaves := make([]map[string]any, 0, len(children))
	for _, child := range children {
		leaves = append(leaves, map[string]any{
			"key":   child.Key,
			"value": child.Value,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tree_id": treeID,
		"leaves":  leaves,
	})
}

// handleDeleteTree removes a tree's meta node and every published leaf.
func (s *Server) handleDeleteTree(w http.ResponseWriter, r *http.Request) {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "publishing is disabled", http.StatusServiceUnavailable)
		return
	}
	treeID := chi.URLParam(r, "treeID")
	if !validTreeID(treeID) {
		jsonError(w, "invalid tree id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	meta, err := ps.GetNode(ctx, pathstore.MetaKey(treeID))
	if err != nil {
		jsonError(w, "failed to read tree: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "tree not found", http.StatusNotFound)
		return
	}
	if err := ps.DeleteNode(ctx, pathstore.TreePrefix(treeID), true); err != nil {
		jsonError(w, "failed to delete tree: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.log.Info("deleted published tree", "tree_id", treeID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tree_id": treeID,
		"deleted": true,
	})
}
