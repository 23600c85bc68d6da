package server

import (
	"encoding/json"

	"wishline/internal/domain"
)

// Request payloads

type CreateUserRequest struct {
	Nickname           string `json:"nickname"`
	BirthDate          string `json:"birth_date" format:"date"`
	IsPublicModeActive bool   `json:"is_public_mode_active,omitempty"`
}

type UpdateUserRequest struct {
	IsActive           *bool `json:"is_active,omitempty"`
	IsPublicModeActive *bool `json:"is_public_mode_active,omitempty"`
}

type CreateCategoryRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	IsAdult            bool   `json:"is_adult,omitempty"`
	MaxWishesPerPeriod int    `json:"max_wishes_per_period" minimum:"1"`
	MinDaysToComplete  int    `json:"min_days_to_complete" minimum:"1"`
	MaxDaysToComplete  int    `json:"max_days_to_complete" minimum:"1"`
}

type CreateWishRequest struct {
	CategoryID  string `json:"category_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateWishRequest struct {
	IsActive *bool `json:"is_active,omitempty"`
}

type CreateMatchRequest struct {
	// UserID is the counterpart; the authenticated caller is the other side.
	UserID             string   `json:"user_id"`
	Mode               string   `json:"mode" enum:"private,public"`
	PrivateCategoryIDs []string `json:"private_category_ids,omitempty"`
	PrivatePeriodDays  *int     `json:"private_period_days,omitempty" minimum:"1"`
}

type MatchAgreementRequest struct {
	CategoryIDs []string `json:"category_ids"`
	PeriodDays  *int     `json:"period_days,omitempty" minimum:"1"`
}

type RunPeriodRequest struct {
	Days      int    `json:"days,omitempty" minimum:"1"`
	StartDate string `json:"start_date,omitempty" format:"date"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

type ProposeNegotiationRequest struct {
	ProposedDate string  `json:"proposed_date" format:"date"`
	ProposedTime *string `json:"proposed_time,omitempty"`
	Message      string  `json:"message,omitempty"`
}

type RespondNegotiationRequest struct {
	ResponseMessage string `json:"response_message,omitempty"`
}

type RecordExecutionRequest struct {
	CompletedDate     string  `json:"completed_date" format:"date"`
	CompletedTime     *string `json:"completed_time,omitempty"`
	Rating            int     `json:"rating" minimum:"1" maximum:"5"`
	CommentByCreator  string  `json:"comment_by_creator,omitempty"`
	CommentByExecutor string  `json:"comment_by_executor,omitempty"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type UserResponse struct {
	ID                 string `json:"id"`
	Nickname           string `json:"nickname"`
	BirthDate          string `json:"birth_date" format:"date"`
	IsAdult            bool   `json:"is_adult"`
	IsActive           bool   `json:"is_active"`
	IsPublicModeActive bool   `json:"is_public_mode_active"`
	CreatedAt          string `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	TS         string         `json:"ts" format:"date-time"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type listBody[T any] struct {
	Items []T `json:"items"`
}

func eventResponse(e domain.Event) EventResponse {
	resp := EventResponse{
		ID:         e.ID,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		TS:         e.TS,
	}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &resp.Payload)
	}
	return resp
}

func userResponse(u domain.User, adult bool) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Nickname:           u.Nickname,
		BirthDate:          u.BirthDate,
		IsAdult:            adult,
		IsActive:           u.IsActive,
		IsPublicModeActive: u.IsPublicModeActive,
		CreatedAt:          u.CreatedAt,
	}
}
