package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/foundkeep/foundkeep/internal/imaging"
	"github.com/foundkeep/foundkeep/internal/lifecycle"
	"github.com/foundkeep/foundkeep/internal/model"
)

// ItemsHandler handles the item catalog and lifecycle endpoints.
type ItemsHandler struct {
	Engine *lifecycle.Engine
}

type claimPayload struct {
	StudentName   string `json:"studentName"`
	RollNumber    string `json:"rollNumber"`
	StudyYear     string `json:"studyYear"`
	ContactNumber string `json:"contactNumber"`
	ClaimedDate   string `json:"claimedDate"`
}

type deliveredRequest struct {
	ClaimedBy *claimPayload `json:"claimedBy"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Engine.ListItems(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		engineError(w, err)
		return
	}
	items = redactItems(r, items)
	jsonList(w, http.StatusOK, items, len(items))
}

// Recent handles GET /api/items/recent.
func (h *ItemsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	items, err := h.Engine.RecentItems(r.Context())
	if err != nil {
		engineError(w, err)
		return
	}
	items = redactItems(r, items)
	jsonList(w, http.StatusOK, items, len(items))
}

// Search handles GET /api/items/search.
func (h *ItemsHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		jsonError(w, http.StatusBadRequest, "please provide a search term")
		return
	}

	items, err := h.Engine.SearchItems(r.Context(), term)
	if err != nil {
		engineError(w, err)
		return
	}
	items = redactItems(r, items)
	jsonList(w, http.StatusOK, items, len(items))
}

// GetStats handles GET /api/items/stats.
func (h *ItemsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusOK, stats)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Engine.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusOK, redactItem(r, *item))
}

// Create handles POST /api/items (multipart, photo required).
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, photo, ok := itemForm(w, r)
	if !ok {
		return
	}
	if photo != nil {
		defer photo.Close()
	}

	item, err := h.Engine.CreateItem(r.Context(), actorFrom(r), input, fileReader(photo))
	if err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id} (multipart, photo optional).
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, photo, ok := itemForm(w, r)
	if !ok {
		return
	}
	if photo != nil {
		defer photo.Close()
	}

	item, err := h.Engine.UpdateItem(r.Context(), actorFrom(r), r.PathValue("id"), input, fileReader(photo))
	if err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusOK, item)
}

// Claim handles PUT /api/items/{id}/claim. Claim forms arrive either as
// JSON or as multipart when the student attaches an ID proof photo.
func (h *ItemsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var payload claimPayload
	var evidence io.ReadCloser

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)
		if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		payload = claimPayload{
			StudentName:   r.FormValue("studentName"),
			RollNumber:    r.FormValue("rollNumber"),
			StudyYear:     r.FormValue("studyYear"),
			ContactNumber: r.FormValue("contactNumber"),
			ClaimedDate:   r.FormValue("claimedDate"),
		}
		if file, _, err := r.FormFile("idProof"); err == nil {
			evidence = file
			defer file.Close()
		}
	} else {
		if err := decodeJSON(r, &payload); err != nil && err != io.EOF {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	claim, ok := partialClaimInput(w, payload)
	if !ok {
		return
	}

	item, err := h.Engine.SubmitClaim(r.Context(), actorFrom(r), r.PathValue("id"), claim, fileReader(evidence))
	if err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusOK, redactItem(r, *item))
}

// Delivered handles PUT /api/items/{id}/delivered. The body may carry
// claimant corrections; anything omitted keeps the values recorded at claim
// time.
func (h *ItemsHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	var req deliveredRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var update lifecycle.ClaimInput
	if req.ClaimedBy != nil {
		var ok bool
		if update, ok = partialClaimInput(w, *req.ClaimedBy); !ok {
			return
		}
	}

	item, err := h.Engine.MarkDelivered(r.Context(), actorFrom(r), r.PathValue("id"), update)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusOK, item)
}

// SetStatus handles PATCH /api/items/{id}/status.
func (h *ItemsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.SetStatus(r.Context(), actorFrom(r), r.PathValue("id"), req.Status)
	if err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteItem(r.Context(), actorFrom(r), r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	jsonData(w, http.StatusOK, struct{}{})
}

// actorFrom maps the optional request identity onto a lifecycle actor.
func actorFrom(r *http.Request) lifecycle.Actor {
	claims := GetClaims(r.Context())
	if claims == nil {
		return lifecycle.Actor{}
	}
	return lifecycle.Actor{Username: claims.Username, Role: claims.Role}
}

// redactItem strips claimant contact details from responses to callers
// without the guard capability. Item URLs circulate publicly, so the claim
// record must not.
func redactItem(r *http.Request, item model.Item) model.Item {
	claims := GetClaims(r.Context())
	if claims != nil && model.RoleAtLeast(claims.Role, model.RoleGuard) {
		return item
	}
	item.ClaimedBy = nil
	return item
}

func redactItems(r *http.Request, items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	out := make([]model.Item, len(items))
	for i, item := range items {
		out[i] = redactItem(r, item)
	}
	return out
}

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "multipart/form-data"
}

// itemForm parses the multipart create/update form. Returns ok=false after
// writing an error response.
func itemForm(w http.ResponseWriter, r *http.Request) (lifecycle.ItemInput, io.ReadCloser, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return lifecycle.ItemInput{}, nil, false
	}

	input := lifecycle.ItemInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Location:    r.FormValue("location"),
	}

	if raw := r.FormValue("foundDate"); raw != "" {
		date, err := parseDate(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "foundDate must be an RFC 3339 timestamp or YYYY-MM-DD")
			return lifecycle.ItemInput{}, nil, false
		}
		input.FoundDate = date
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return input, nil, true
		}
		jsonError(w, http.StatusBadRequest, "invalid image upload")
		return lifecycle.ItemInput{}, nil, false
	}
	return input, file, true
}

func partialClaimInput(w http.ResponseWriter, payload claimPayload) (lifecycle.ClaimInput, bool) {
	claim := lifecycle.ClaimInput{
		StudentName:   payload.StudentName,
		RollNumber:    payload.RollNumber,
		StudyYear:     payload.StudyYear,
		ContactNumber: payload.ContactNumber,
	}
	if payload.ClaimedDate != "" {
		date, err := parseDate(payload.ClaimedDate)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "claimedDate must be an RFC 3339 timestamp or YYYY-MM-DD")
			return lifecycle.ClaimInput{}, false
		}
		claim.ClaimedDate = date
	}
	return claim, true
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format")
}

// fileReader widens a possibly-nil ReadCloser into the engine's reader
// argument without producing a non-nil interface around a nil value.
func fileReader(f io.ReadCloser) io.Reader {
	if f == nil {
		return nil
	}
	return f
}
