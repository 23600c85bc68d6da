package domain

import "time"

const (
	MatchModePrivate = "private"
	MatchModePublic  = "public"

	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusRejected = "rejected"
	MatchStatusBlocked  = "blocked"

	NegotiationStatusPending  = "pending"
	NegotiationStatusAccepted = "accepted"
	NegotiationStatusRejected = "rejected"
)

// DateLayout is the wire format for calendar dates (periods, due dates).
const DateLayout = "2006-01-02"

type User struct {
	ID                 string `json:"id"`
	Nickname           string `json:"nickname"`
	BirthDate          string `json:"birth_date" format:"date"`
	IsActive           bool   `json:"is_active"`
	IsPublicModeActive bool   `json:"is_public_mode_active"`
	CreatedAt          string `json:"created_at" format:"date-time"`
}

// IsAdult reports whether the user is 18 or older at the given instant.
func (u User) IsAdult(now time.Time) bool {
	born, err := time.Parse(DateLayout, u.BirthDate)
	if err != nil {
		return false
	}
	return !born.AddDate(18, 0, 0).After(now)
}

type Category struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	IsAdult            bool   `json:"is_adult"`
	MaxWishesPerPeriod int    `json:"max_wishes_per_period"`
	MinDaysToComplete  int    `json:"min_days_to_complete"`
	MaxDaysToComplete  int    `json:"max_days_to_complete"`
	IsActive           bool   `json:"is_active"`
	CreatedAt          string `json:"created_at" format:"date-time"`
}

type Wish struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	CategoryID  string `json:"category_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Match links two users. User1ID is always the lower of the two IDs so a
// pair can never exist twice in reciprocal order.
type Match struct {
	ID                 string   `json:"id"`
	User1ID            string   `json:"user1_id"`
	User2ID            string   `json:"user2_id"`
	Mode               string   `json:"mode" enum:"private,public"`
	Status             string   `json:"status" enum:"pending,accepted,rejected,blocked"`
	PrivateCategoryIDs []string `json:"private_category_ids,omitempty"`
	PrivatePeriodDays  *int     `json:"private_period_days,omitempty"`
	CreatedAt          string   `json:"created_at" format:"date-time"`
	UpdatedAt          string   `json:"updated_at" format:"date-time"`
}

// Other returns the counterpart of the given participant, or "" when the
// user is not part of the match.
func (m Match) Other(userID string) string {
	switch userID {
	case m.User1ID:
		return m.User2ID
	case m.User2ID:
		return m.User1ID
	}
	return ""
}

// Period is a date range [StartDate, EndDate). MatchID is nil for the
// global period that serves all public-mode users.
type Period struct {
	ID        string  `json:"id"`
	MatchID   *string `json:"match_id,omitempty"`
	StartDate string  `json:"start_date" format:"date"`
	EndDate   string  `json:"end_date" format:"date"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type Assignment struct {
	ID          string `json:"id"`
	PeriodID    string `json:"period_id"`
	WishID      string `json:"wish_id"`
	AssignedTo  string `json:"assigned_to"`
	AssignedAt  string `json:"assigned_at" format:"date-time"`
	DueDate     string `json:"due_date" format:"date"`
	IsCompleted bool   `json:"is_completed"`
	IsRejected  bool   `json:"is_rejected"`
}

type Negotiation struct {
	ID              string  `json:"id"`
	AssignmentID    string  `json:"assignment_id"`
	ProposedBy      string  `json:"proposed_by"`
	ProposedDate    string  `json:"proposed_date" format:"date"`
	ProposedTime    *string `json:"proposed_time,omitempty"`
	Message         string  `json:"message,omitempty"`
	Status          string  `json:"status" enum:"pending,accepted,rejected"`
	ResponseMessage string  `json:"response_message,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

type Execution struct {
	ID                string  `json:"id"`
	AssignmentID      string  `json:"assignment_id"`
	CompletedDate     string  `json:"completed_date" format:"date"`
	CompletedTime     *string `json:"completed_time,omitempty"`
	Rating            int     `json:"rating" minimum:"1" maximum:"5"`
	CommentByCreator  string  `json:"comment_by_creator,omitempty"`
	CommentByExecutor string  `json:"comment_by_executor,omitempty"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
}

// RankingEntry is one leaderboard row. Besides the identity columns only
// the field for the requested metric is meaningful.
type RankingEntry struct {
	UserID            string   `json:"user_id"`
	Nickname          string   `json:"nickname"`
	TotalCompleted    int      `json:"total_completed"`
	AverageRating     *float64 `json:"average_rating,omitempty"`
	AvgCompletionDays *float64 `json:"avg_completion_days,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
