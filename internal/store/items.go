package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/foundkeep/foundkeep/internal/model"
)

const itemColumns = `id, name, description, category, location, found_date, status, image,
	claimant_name, claimant_roll, claimant_year, claimant_contact, claimed_at, claim_image,
	added_by, created_at, updated_at`

// InsertItem persists a new item. The caller assigns the ID and found date;
// status defaults to 'available'.
func InsertItem(ctx context.Context, db *sql.DB, item *model.Item) (*model.Item, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO items (id, name, description, category, location, found_date, image, added_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Description, item.Category, item.Location,
		item.FoundDate, item.Image, item.AddedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting item: %w", err)
	}

	return GetItem(ctx, db, item.ID)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items newest first, optionally filtered by status.
// A limit of 0 means no limit.
func ListItems(ctx context.Context, db *sql.DB, status string, limit int) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// SearchItems performs a case-insensitive substring search over name,
// description, category, and location, newest first.
func SearchItems(ctx context.Context, db *sql.DB, term string) ([]model.Item, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE lower(name) LIKE ?
		    OR lower(coalesce(description, '')) LIKE ?
		    OR lower(category) LIKE ?
		    OR lower(location) LIKE ?
		 ORDER BY created_at DESC, id`,
		pattern, pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// UpdateItemFields updates an available item's editable fields. The UPDATE is
// conditioned on status = 'available', so an item claimed in the meantime is
// left untouched and the caller sees updated = false.
func UpdateItemFields(ctx context.Context, db *sql.DB, id string, item *model.Item) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET name = ?, description = ?, category = ?, location = ?, found_date = ?, image = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'available'`,
		item.Name, item.Description, item.Category, item.Location, item.FoundDate, item.Image, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating item: %w", err)
	}
	return rowsAffected(result)
}

// ClaimItem transitions an item from 'available' to 'claimed' and records the
// claimant in the same statement. The status condition makes the transition a
// compare-and-set: of two concurrent claims exactly one sees updated = true.
func ClaimItem(ctx context.Context, db *sql.DB, id string, claim *model.ClaimRecord) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET status = 'claimed',
		     claimant_name = ?, claimant_roll = ?, claimant_year = ?, claimant_contact = ?,
		     claimed_at = ?, claim_image = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'available'`,
		claim.StudentName, claim.RollNumber, claim.StudyYear, claim.ContactNumber,
		claim.ClaimedDate, claim.EvidenceImage, id,
	)
	if err != nil {
		return false, fmt.Errorf("claiming item: %w", err)
	}
	return rowsAffected(result)
}

// DeliverItem transitions an item from 'claimed' to 'delivered'. Non-empty
// fields of update overwrite the stored claim record; empty fields keep the
// values written at claim time, so a delivery with no payload never erases
// the original claim data.
func DeliverItem(ctx context.Context, db *sql.DB, id string, update *model.ClaimRecord) (bool, error) {
	if update == nil {
		update = &model.ClaimRecord{}
	}

	var claimedAt any
	if !update.ClaimedDate.IsZero() {
		claimedAt = update.ClaimedDate
	}

	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET status = 'delivered',
		     claimant_name = coalesce(nullif(?, ''), claimant_name),
		     claimant_roll = coalesce(nullif(?, ''), claimant_roll),
		     claimant_year = coalesce(nullif(?, ''), claimant_year),
		     claimant_contact = coalesce(nullif(?, ''), claimant_contact),
		     claimed_at = coalesce(?, claimed_at),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'claimed'`,
		update.StudentName, update.RollNumber, update.StudyYear, update.ContactNumber,
		claimedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("delivering item: %w", err)
	}
	return rowsAffected(result)
}

// DeleteItem removes an item. Items are hard-deleted; the caller is
// responsible for releasing stored images afterwards.
func DeleteItem(ctx context.Context, db *sql.DB, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return rowsAffected(result)
}

// CountItemsByStatus returns the number of items per status.
func CountItemsByStatus(ctx context.Context, db *sql.DB) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM items GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.Item, error) {
	item := &model.Item{}
	var description, claimName, claimRoll, claimYear, claimContact, claimImage sql.NullString
	var claimedAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.Name, &description, &item.Category, &item.Location,
		&item.FoundDate, &item.Status, &item.Image,
		&claimName, &claimRoll, &claimYear, &claimContact, &claimedAt, &claimImage,
		&item.AddedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	if claimedAt.Valid {
		item.ClaimedBy = &model.ClaimRecord{
			StudentName:   claimName.String,
			RollNumber:    claimRoll.String,
			StudyYear:     claimYear.String,
			ContactNumber: claimContact.String,
			ClaimedDate:   claimedAt.Time,
			EvidenceImage: claimImage.String,
		}
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}
