package api

import (
	"net/http"
	"strings"

	"restopos/internal/models"
)

type createTableRequest struct {
	Name     string `json:"name"`
	Category string `json:"type"`
	Status   string `json:"status"`
}

type tableStatusRequest struct {
	Status string `json:"status"`
}

type createCollectionRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type createMenuItemRequest struct {
	Name             string  `json:"name"`
	Price            int64   `json:"price"`
	Category         string  `json:"category"`
	ImageURL         *string `json:"imageUrl"`
	Available        *bool   `json:"available"`
	MenuCollectionID int64   `json:"menuCollectionId"`
}

// Tables

func (s *HTTPServer) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.svc.Catalog.ListTables(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if tables == nil {
		tables = []models.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *HTTPServer) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	table := &models.Table{Name: req.Name, Category: req.Category, Status: req.Status}
	if err := s.svc.Catalog.CreateTable(r.Context(), table); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, table)
}

func (s *HTTPServer) handleUpdateTableStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var req tableStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	table, err := s.svc.Catalog.UpdateTableStatus(r.Context(), id, strings.TrimSpace(req.Status))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *HTTPServer) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Catalog.DeleteTable(r.Context(), id); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Menu collections

func (s *HTTPServer) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.svc.Catalog.ListMenuCollections(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if collections == nil {
		collections = []models.MenuCollection{}
	}
	writeJSON(w, http.StatusOK, collections)
}

func (s *HTTPServer) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	c := &models.MenuCollection{Name: req.Name, Description: req.Description, IsActive: true}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := s.svc.Catalog.CreateMenuCollection(r.Context(), c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *HTTPServer) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var patch models.MenuCollectionPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	c, err := s.svc.Catalog.UpdateMenuCollection(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Catalog.DeleteMenuCollection(r.Context(), id); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Menu items

func (s *HTTPServer) handleListMenuItems(w http.ResponseWriter, r *http.Request) {
	collectionID, err := queryInt(r, "collectionId")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	availableOnly, err := queryBool(r, "available")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	items, err := s.svc.Catalog.ListMenuItems(r.Context(), models.MenuFilter{
		CollectionID:  collectionID,
		Search:        r.URL.Query().Get("search"),
		AvailableOnly: availableOnly,
	})
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleGetMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	item, err := s.svc.Catalog.GetMenuItem(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req createMenuItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	item := &models.MenuItem{
		Name:             strings.TrimSpace(req.Name),
		Price:            req.Price,
		Category:         strings.TrimSpace(req.Category),
		ImageURL:         req.ImageURL,
		Available:        true,
		MenuCollectionID: req.MenuCollectionID,
	}
	if req.Available != nil {
		item.Available = *req.Available
	}
	if err := s.svc.Catalog.CreateMenuItem(r.Context(), item); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleUpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var patch models.MenuItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	item, err := s.svc.Catalog.UpdateMenuItem(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Catalog.DeleteMenuItem(r.Context(), id); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
