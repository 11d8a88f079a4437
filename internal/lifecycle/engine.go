// Package lifecycle is the single authority over item state. Every status
// change and every edit of claim data goes through the Engine, which enforces
// the forward-only transition order and the capability rules around it.
package lifecycle

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foundkeep/foundkeep/internal/model"
	"github.com/foundkeep/foundkeep/internal/store"
)

// RecentLimit is the number of items returned by RecentItems.
const RecentLimit = 8

// Config holds the register's policy switches. Both permissive behaviors of
// the deployed system are opt-in here instead of hardcoded.
type Config struct {
	// PublicClaims allows claim submission without a token.
	PublicClaims bool
	// AllowAnonCreate allows item creation without a token; created items
	// are attributed to DefaultGuard.
	AllowAnonCreate bool
	// DefaultGuard is the addedBy identity for anonymous creations.
	DefaultGuard string
}

// Actor identifies the caller of an operation. The zero Actor is anonymous.
type Actor struct {
	Username string
	Role     string
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool { return a.Username == "" }

// IsGuard reports whether the actor holds the guard capability.
func (a Actor) IsGuard() bool {
	return !a.Anonymous() && model.RoleAtLeast(a.Role, model.RoleGuard)
}

// PhotoStore is the storage facility for item and claim-evidence photos.
type PhotoStore interface {
	Save(r io.Reader) (string, error)
	Release(ref string) error
}

// Engine validates and applies item operations.
type Engine struct {
	DB     *sql.DB
	Photos PhotoStore
	Config Config
}

// ItemInput carries the editable fields of an item.
type ItemInput struct {
	Name        string
	Description string
	Category    string
	Location    string
	FoundDate   time.Time
}

// ClaimInput carries claimant details for claim and delivery operations.
type ClaimInput struct {
	StudentName   string
	RollNumber    string
	StudyYear     string
	ContactNumber string
	ClaimedDate   time.Time
}

// CreateItem registers a new found item with status 'available'. A photo is
// required. Callers need the guard capability unless AllowAnonCreate is set,
// in which case anonymous creations are attributed to the default guard.
func (e *Engine) CreateItem(ctx context.Context, actor Actor, input ItemInput, photo io.Reader) (*model.Item, error) {
	addedBy := actor.Username
	if !actor.IsGuard() {
		if !actor.Anonymous() || !e.Config.AllowAnonCreate {
			return nil, ErrUnauthorized
		}
		addedBy = e.Config.DefaultGuard
	}

	var v validator
	validateFields(&v, input)
	v.check(photo != nil, "image", "a photo must be uploaded")
	if err := v.err(); err != nil {
		return nil, err
	}

	ref, err := e.Photos.Save(photo)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"image": err.Error()}}
	}

	if input.FoundDate.IsZero() {
		input.FoundDate = time.Now().UTC()
	}

	item := &model.Item{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Location:    input.Location,
		FoundDate:   input.FoundDate,
		Image:       ref,
		AddedBy:     addedBy,
	}

	created, err := store.InsertItem(ctx, e.DB, item)
	if err != nil {
		// The row never landed, so the photo has no owner.
		e.release(ref)
		return nil, err
	}
	return created, nil
}

// UpdateItem edits an available item. Items that have been claimed or
// delivered are immutable apart from further lifecycle transitions. When a
// new photo is supplied the old one is released only after the row update
// committed.
func (e *Engine) UpdateItem(ctx context.Context, actor Actor, id string, input ItemInput, photo io.Reader) (*model.Item, error) {
	if !actor.IsGuard() {
		return nil, ErrUnauthorized
	}

	current, err := store.GetItem(ctx, e.DB, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if current.Status != model.StatusAvailable {
		return nil, ErrInvalidTransition
	}

	var v validator
	validateFields(&v, input)
	if err := v.err(); err != nil {
		return nil, err
	}

	image := current.Image
	if photo != nil {
		ref, err := e.Photos.Save(photo)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"image": err.Error()}}
		}
		image = ref
	}

	if input.FoundDate.IsZero() {
		input.FoundDate = current.FoundDate
	}

	next := &model.Item{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Location:    input.Location,
		FoundDate:   input.FoundDate,
		Image:       image,
	}

	updated, err := store.UpdateItemFields(ctx, e.DB, id, next)
	if err != nil {
		if image != current.Image {
			e.release(image)
		}
		return nil, err
	}
	if !updated {
		// The item was claimed or deleted between the read and the update.
		if image != current.Image {
			e.release(image)
		}
		return nil, e.missingOrIllegal(ctx, id)
	}

	if image != current.Image {
		e.release(current.Image)
	}
	return store.GetItem(ctx, e.DB, id)
}

// SubmitClaim transitions an available item to 'claimed' and records the
// claimant. The claimed date defaults to now. The transition is a
// compare-and-set on the stored status: of two concurrent claims exactly one
// succeeds and the other observes ErrInvalidTransition.
func (e *Engine) SubmitClaim(ctx context.Context, actor Actor, id string, claim ClaimInput, evidence io.Reader) (*model.Item, error) {
	if !e.Config.PublicClaims && !actor.IsGuard() {
		return nil, ErrUnauthorized
	}

	var v validator
	v.check(claim.StudentName != "", "studentName", "must be provided")
	v.check(claim.RollNumber != "", "rollNumber", "must be provided")
	v.check(claim.ContactNumber != "", "contactNumber", "must be provided")
	if err := v.err(); err != nil {
		return nil, err
	}

	if claim.ClaimedDate.IsZero() {
		claim.ClaimedDate = time.Now().UTC()
	}

	var evidenceRef string
	if evidence != nil {
		ref, err := e.Photos.Save(evidence)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"idProof": err.Error()}}
		}
		evidenceRef = ref
	}

	record := &model.ClaimRecord{
		StudentName:   claim.StudentName,
		RollNumber:    claim.RollNumber,
		StudyYear:     claim.StudyYear,
		ContactNumber: claim.ContactNumber,
		ClaimedDate:   claim.ClaimedDate,
		EvidenceImage: evidenceRef,
	}

	claimed, err := store.ClaimItem(ctx, e.DB, id, record)
	if err != nil {
		if evidenceRef != "" {
			e.release(evidenceRef)
		}
		return nil, err
	}
	if !claimed {
		if evidenceRef != "" {
			e.release(evidenceRef)
		}
		return nil, e.missingOrIllegal(ctx, id)
	}

	return store.GetItem(ctx, e.DB, id)
}

// MarkDelivered transitions a claimed item to 'delivered'. Fields of update
// that are set overwrite the stored claim record; fields left empty keep the
// values recorded at claim time, so the original claimed date survives a
// delivery with an empty payload.
func (e *Engine) MarkDelivered(ctx context.Context, actor Actor, id string, update ClaimInput) (*model.Item, error) {
	if !actor.IsGuard() {
		return nil, ErrUnauthorized
	}

	record := &model.ClaimRecord{
		StudentName:   update.StudentName,
		RollNumber:    update.RollNumber,
		StudyYear:     update.StudyYear,
		ContactNumber: update.ContactNumber,
		ClaimedDate:   update.ClaimedDate,
	}

	delivered, err := store.DeliverItem(ctx, e.DB, id, record)
	if err != nil {
		return nil, err
	}
	if !delivered {
		return nil, e.missingOrIllegal(ctx, id)
	}

	return store.GetItem(ctx, e.DB, id)
}

// SetStatus is the adapter behind the generic status PATCH. It accepts only
// the single legal forward step for the item's current state. A flip to
// 'claimed' is refused outright: a claim without claimant details would
// break the claim-record invariant, so claims must go through SubmitClaim.
func (e *Engine) SetStatus(ctx context.Context, actor Actor, id, status string) (*model.Item, error) {
	if !actor.IsGuard() {
		return nil, ErrUnauthorized
	}
	if !model.ValidStatus(status) {
		return nil, &ValidationError{Fields: map[string]string{"status": "invalid status value"}}
	}

	if status == model.StatusDelivered {
		return e.MarkDelivered(ctx, actor, id, ClaimInput{})
	}

	item, err := store.GetItem(ctx, e.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return nil, ErrInvalidTransition
}

// DeleteItem removes an item in any state and releases its stored photos.
// Photo release is best-effort: a failed cleanup is logged, never surfaced,
// and never undoes the committed delete.
func (e *Engine) DeleteItem(ctx context.Context, actor Actor, id string) error {
	if !actor.IsGuard() {
		return ErrUnauthorized
	}

	item, err := store.GetItem(ctx, e.DB, id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}

	deleted, err := store.DeleteItem(ctx, e.DB, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	e.release(item.Image)
	if item.ClaimedBy != nil && item.ClaimedBy.EvidenceImage != "" {
		e.release(item.ClaimedBy.EvidenceImage)
	}
	return nil
}

// GetItem returns an item by ID.
func (e *Engine) GetItem(ctx context.Context, id string) (*model.Item, error) {
	item, err := store.GetItem(ctx, e.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// ListItems returns items newest first, optionally filtered by status.
func (e *Engine) ListItems(ctx context.Context, status string) ([]model.Item, error) {
	if status != "" && !model.ValidStatus(status) {
		return nil, &ValidationError{Fields: map[string]string{"status": "invalid status value"}}
	}
	return store.ListItems(ctx, e.DB, status, 0)
}

// RecentItems returns the newest available items for the landing page.
func (e *Engine) RecentItems(ctx context.Context) ([]model.Item, error) {
	return store.ListItems(ctx, e.DB, model.StatusAvailable, RecentLimit)
}

// SearchItems performs a case-insensitive substring search over name,
// description, category, and location.
func (e *Engine) SearchItems(ctx context.Context, term string) ([]model.Item, error) {
	return store.SearchItems(ctx, e.DB, term)
}

// Stats summarizes the register for the guard dashboard.
type Stats struct {
	Available int `json:"available"`
	Claimed   int `json:"claimed"`
	Delivered int `json:"delivered"`
	Total     int `json:"total"`
}

// Stats returns per-status item counts.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	counts, err := store.CountItemsByStatus(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	s := &Stats{
		Available: counts[model.StatusAvailable],
		Claimed:   counts[model.StatusClaimed],
		Delivered: counts[model.StatusDelivered],
	}
	s.Total = s.Available + s.Claimed + s.Delivered
	return s, nil
}

// missingOrIllegal distinguishes a failed conditional update: the item either
// does not exist or is in a state that forbids the transition.
func (e *Engine) missingOrIllegal(ctx context.Context, id string) error {
	item, err := store.GetItem(ctx, e.DB, id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func (e *Engine) release(ref string) {
	if err := e.Photos.Release(ref); err != nil {
		slog.Warn("failed to release stored photo", "ref", ref, "error", err)
	}
}

func validateFields(v *validator, input ItemInput) {
	v.check(input.Name != "", "name", "must be provided")
	v.check(len(input.Name) <= model.MaxNameLength, "name", "must be at most 100 characters")
	v.check(len(input.Description) <= model.MaxDescriptionLength, "description", "must be at most 500 characters")
	v.check(model.ValidCategory(input.Category), "category", "must be one of the allowed categories")
	v.check(model.ValidLocation(input.Location), "location", "must be one of the allowed locations")
}
