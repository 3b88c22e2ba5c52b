package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 20MB; receipt PDFs and XML exports are small)
	maxFormSize := int64(20 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 20MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		jsonError(w, "File is too large. Maximum size is 20MB.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	// Determine content type
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".pdf":
			contentType = "application/pdf"
		case ".xml":
			contentType = "text/xml"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	receipt, err := s.service.ProcessReceipt(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		code := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrDuplicate):
			code = http.StatusConflict
		case errors.Is(err, ErrNoItems):
			code = http.StatusUnprocessableEntity
		case errors.Is(err, ErrUnsupportedFormat):
			code = http.StatusUnsupportedMediaType
		}
		jsonError(w, err.Error(), code)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	receipt, err := s.service.GetReceipt(id)
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the original uploaded document for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetReceiptFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteReceipt(id); err != nil {
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListCategories returns all categories with their items
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.ListCategories()
	if err != nil {
		slog.Error("Error listing categories", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

// handleAssignCategory assigns an item name to a category
func (s *Server) handleAssignCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item     string `json:"item"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Item == "" || req.Category == "" {
		corsError(w, "item and category are required", http.StatusBadRequest)
		return
	}

	if err := s.service.AssignItemCategory(req.Item, req.Category); err != nil {
		slog.Error("Error assigning category", "item", req.Item, "category", req.Category, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRenameCategory renames a category
func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldName string `json:"old_name"`
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OldName == "" || req.NewName == "" {
		corsError(w, "old_name and new_name are required", http.StatusBadRequest)
		return
	}

	if err := s.service.RenameCategory(req.OldName, req.NewName); err != nil {
		slog.Error("Error renaming category", "old", req.OldName, "new", req.NewName, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMoveItem moves an item between categories
func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item string `json:"item"`
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Item == "" || req.To == "" {
		corsError(w, "item and to are required", http.StatusBadRequest)
		return
	}

	if err := s.service.MoveItemToCategory(req.Item, req.From, req.To); err != nil {
		slog.Error("Error moving item", "item", req.Item, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveItem removes an item from a category
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item     string `json:"item"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Item == "" || req.Category == "" {
		corsError(w, "item and category are required", http.StatusBadRequest)
		return
	}

	if err := s.service.RemoveItemFromCategory(req.Item, req.Category); err != nil {
		slog.Error("Error removing item from category", "item", req.Item, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteCategory deletes a category
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		corsError(w, "Category name required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteCategory(name); err != nil {
		corsError(w, "Error deleting category", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCurrentPeriod reports spending for the current billing period
func (s *Server) handleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := s.service.CurrentPeriod()
	if err != nil {
		slog.Error("Error building expense report", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, period)
}

// handleExpensesByPeriod reports spending for the billing period starting in
// the given year and month (?year=2024&month=3)
func (s *Server) handleExpensesByPeriod(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		corsError(w, "year query parameter required", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		corsError(w, "month query parameter must be 1-12", http.StatusBadRequest)
		return
	}

	period, err := s.service.ExpensesByPeriod(year, time.Month(month))
	if err != nil {
		slog.Error("Error building expense report", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, period)
}

// parseRangeQuery reads start/end date query parameters (YYYY-MM-DD)
func parseRangeQuery(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// handleExpensesByRange reports spending between two dates
func (s *Server) handleExpensesByRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRangeQuery(r)
	if err != nil {
		corsError(w, "start and end query parameters required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	period, err := s.service.ExpensesByDateRange(start, end)
	if err != nil {
		slog.Error("Error building expense report", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, period)
}

// handleItemsByRange lists every item purchased between two dates
func (s *Server) handleItemsByRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRangeQuery(r)
	if err != nil {
		corsError(w, "start and end query parameters required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	items, err := s.service.ItemsByDateRange(start, end)
	if err != nil {
		slog.Error("Error listing items", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
