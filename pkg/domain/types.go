package domain

import "time"

type Role string

const (
	RoleReader   Role = "Reader"
	RoleLibrary  Role = "Library"
	RoleBookshop Role = "Bookshop"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleLibrary, RoleBookshop:
		return true
	}
	return false
}

type OwnerKind string

const (
	OwnerIndividual OwnerKind = "Individual"
	OwnerLibrary    OwnerKind = "Library"
	OwnerBookshop   OwnerKind = "Bookshop"
)

// OwnerKindForRole maps a principal role to the kind stamped on its listings.
func OwnerKindForRole(r Role) OwnerKind {
	switch r {
	case RoleLibrary:
		return OwnerLibrary
	case RoleBookshop:
		return OwnerBookshop
	default:
		return OwnerIndividual
	}
}

type Condition string

const (
	ConditionNew  Condition = "New"
	ConditionGood Condition = "Good"
	ConditionWorn Condition = "Worn"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionWorn:
		return true
	}
	return false
}

type Availability string

const (
	StatusAvailable Availability = "Available"
	StatusLent      Availability = "Lent"
)

type LoanStatus string

const (
	LoanRequested LoanStatus = "Requested"
	LoanActive    LoanStatus = "Active"
	LoanCompleted LoanStatus = "Completed"
	LoanRejected  LoanStatus = "Rejected"
)

// LoanPeriod is the fixed lending window applied to every request.
const LoanPeriod = 14 * 24 * time.Hour

// Principal is the authenticated user of the client.
type Principal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Owner is a snapshot of the lending principal taken when a listing is created.
// It is not updated when the principal's profile changes later.
type Owner struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       OwnerKind `json:"type"`
	Location   GeoPoint  `json:"location"`
	DistanceKm float64   `json:"distance"`
}

type BookListing struct {
	ID          string       `json:"id"`
	ISBN        string       `json:"isbn,omitempty"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Condition   Condition    `json:"condition"`
	Status      Availability `json:"status"`
	Description string       `json:"description"`
	CoverURL    string       `json:"coverUrl"`
	Owner       Owner        `json:"owner"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// LoanRecord links one listing to one requesting principal.
type LoanRecord struct {
	ID          string      `json:"id"`
	BookID      string      `json:"bookId"`
	Book        BookListing `json:"book"`
	RequesterID string      `json:"requesterId"`
	OwnerID     string      `json:"ownerId"`
	Status      LoanStatus  `json:"status"`
	RequestedAt time.Time   `json:"requestDate"`
	DueDate     time.Time   `json:"dueDate"`
	ReturnedAt  *time.Time  `json:"returnDate,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Open reports whether the loan still occupies its listing or awaits a decision.
func (l LoanRecord) Open() bool {
	return l.Status == LoanRequested || l.Status == LoanActive
}

type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Message struct {
	ID       string    `json:"id"`
	SenderID string    `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"timestamp"`
}

// Conversation is a message thread between a borrower and a lender about one listing.
type Conversation struct {
	ID           string         `json:"id"`
	BookID       string         `json:"bookId"`
	BookTitle    string         `json:"bookTitle"`
	CoverURL     string         `json:"coverUrl"`
	Participants [2]Participant `json:"participants"`
	Messages     []Message      `json:"messages"`
	Unread       map[string]int `json:"unread"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Counterpart returns the participant that is not principalID.
func (c Conversation) Counterpart(principalID string) Participant {
	if c.Participants[0].ID == principalID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// LastMessage returns the most recent message, if any.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
