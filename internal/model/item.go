package model

import "time"

// Item represents a found object entered into the register.
type Item struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category"`
	Location    string       `json:"location"`
	FoundDate   time.Time    `json:"foundDate"`
	Status      string       `json:"status"`
	Image       string       `json:"image"`
	ClaimedBy   *ClaimRecord `json:"claimedBy,omitempty"`
	AddedBy     string       `json:"addedBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ClaimRecord holds the details of the student who claimed an item.
// Once written it is only ever merged into, never replaced wholesale.
type ClaimRecord struct {
	StudentName   string    `json:"studentName"`
	RollNumber    string    `json:"rollNumber"`
	StudyYear     string    `json:"studyYear,omitempty"`
	ContactNumber string    `json:"contactNumber"`
	ClaimedDate   time.Time `json:"claimedDate"`
	EvidenceImage string    `json:"evidenceImage,omitempty"`
}

// Item statuses. Transitions are forward-only.
const (
	StatusAvailable = "available"
	StatusClaimed   = "claimed"
	StatusDelivered = "delivered"
)

// Field limits.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
)

// Categories lists the allowed item categories.
var Categories = []string{
	"Electronics",
	"Clothing",
	"Study Material",
	"Accessories",
	"ID Cards",
	"Keys",
	"Other",
}

// Locations lists the allowed found locations.
var Locations = []string{
	"Main Building",
	"Canteen Area",
	"Library",
	"Computer Lab",
	"Auditorium",
	"Sports Field",
	"Parking Lot",
	"Other",
}

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	return s == StatusAvailable || s == StatusClaimed || s == StatusDelivered
}

// ValidCategory reports whether c is an allowed category.
func ValidCategory(c string) bool {
	return contains(Categories, c)
}

// ValidLocation reports whether l is an allowed location.
func ValidLocation(l string) bool {
	return contains(Locations, l)
}

// CanTransition reports whether an item may move from one status to another.
// The only legal steps are available→claimed and claimed→delivered; nothing
// skips a state and nothing moves backwards.
func CanTransition(from, to string) bool {
	switch from {
	case StatusAvailable:
		return to == StatusClaimed
	case StatusClaimed:
		return to == StatusDelivered
	default:
		return false
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
