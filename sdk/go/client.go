package wishlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Wishline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents the API user model.
type User struct {
	ID                 string `json:"id"`
	Nickname           string `json:"nickname"`
	BirthDate          string `json:"birth_date"`
	IsAdult            bool   `json:"is_adult"`
	IsActive           bool   `json:"is_active"`
	IsPublicModeActive bool   `json:"is_public_mode_active"`
	CreatedAt          string `json:"created_at"`
}

// Wish represents a wish owned by a user.
type Wish struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	CategoryID  string `json:"category_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Match links two users.
type Match struct {
	ID                 string   `json:"id"`
	User1ID            string   `json:"user1_id"`
	User2ID            string   `json:"user2_id"`
	Mode               string   `json:"mode"`
	Status             string   `json:"status"`
	PrivateCategoryIDs []string `json:"private_category_ids,omitempty"`
	PrivatePeriodDays  *int     `json:"private_period_days,omitempty"`
}

// Assignment is a wish drawn for an executor.
type Assignment struct {
	ID          string `json:"id"`
	PeriodID    string `json:"period_id"`
	WishID      string `json:"wish_id"`
	AssignedTo  string `json:"assigned_to"`
	DueDate     string `json:"due_date"`
	IsCompleted bool   `json:"is_completed"`
	IsRejected  bool   `json:"is_rejected"`
}

// Negotiation is a date/time proposal on an assignment.
type Negotiation struct {
	ID              string  `json:"id"`
	AssignmentID    string  `json:"assignment_id"`
	ProposedBy      string  `json:"proposed_by"`
	ProposedDate    string  `json:"proposed_date"`
	ProposedTime    *string `json:"proposed_time,omitempty"`
	Message         string  `json:"message,omitempty"`
	Status          string  `json:"status"`
	ResponseMessage string  `json:"response_message,omitempty"`
}

// Execution closes an assignment with a rating.
type Execution struct {
	ID                string  `json:"id"`
	AssignmentID      string  `json:"assignment_id"`
	CompletedDate     string  `json:"completed_date"`
	CompletedTime     *string `json:"completed_time,omitempty"`
	Rating            int     `json:"rating"`
	CommentByCreator  string  `json:"comment_by_creator,omitempty"`
	CommentByExecutor string  `json:"comment_by_executor,omitempty"`
}

// RankingEntry is one leaderboard row.
type RankingEntry struct {
	UserID            string   `json:"user_id"`
	Nickname          string   `json:"nickname"`
	TotalCompleted    int      `json:"total_completed"`
	AverageRating     *float64 `json:"average_rating,omitempty"`
	AvgCompletionDays *float64 `json:"avg_completion_days,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// RunSummary reports an allocation run.
type RunSummary struct {
	StartDate               string `json:"start_date"`
	DryRun                  bool   `json:"dry_run"`
	GlobalPeriodCreated     bool   `json:"global_period_created"`
	PrivateMatchesProcessed int    `json:"private_matches_processed"`
	PublicUsersProcessed    int    `json:"public_users_processed"`
	TotalAssignments        int    `json:"total_assignments"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevLogin mints a development bearer token and stores it on the client.
func (c *Client) DevLogin(ctx context.Context, userID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v1/auth/dev/login", map[string]any{"user_id": userID}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// CreateUser registers a user.
func (c *Client) CreateUser(ctx context.Context, nickname, birthDate string, publicMode bool) (User, error) {
	body := map[string]any{
		"nickname":              nickname,
		"birth_date":            birthDate,
		"is_public_mode_active": publicMode,
	}
	var resp User
	err := c.do(ctx, http.MethodPost, "v1/users", body, &resp)
	return resp, err
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "v1/users/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateWish creates a wish owned by the authenticated caller.
func (c *Client) CreateWish(ctx context.Context, categoryID, title, description string) (Wish, error) {
	body := map[string]any{
		"category_id": categoryID,
		"title":       title,
		"description": description,
	}
	var resp Wish
	err := c.do(ctx, http.MethodPost, "v1/wishes", body, &resp)
	return resp, err
}

// CreateMatch proposes a match with the given counterpart.
func (c *Client) CreateMatch(ctx context.Context, userID, mode string, categoryIDs []string, periodDays *int) (Match, error) {
	body := map[string]any{
		"user_id":              userID,
		"mode":                 mode,
		"private_category_ids": categoryIDs,
		"private_period_days":  periodDays,
	}
	var resp Match
	err := c.do(ctx, http.MethodPost, "v1/matches", body, &resp)
	return resp, err
}

// AcceptMatch accepts a pending match.
func (c *Client) AcceptMatch(ctx context.Context, id string) (Match, error) {
	var resp Match
	err := c.do(ctx, http.MethodPost, "v1/matches/"+url.PathEscape(id)+"/accept", nil, &resp)
	return resp, err
}

// RunPeriod triggers one allocation cycle.
func (c *Client) RunPeriod(ctx context.Context, days int, startDate string, dryRun bool) (RunSummary, error) {
	body := map[string]any{
		"days":       days,
		"start_date": startDate,
		"dry_run":    dryRun,
	}
	var resp RunSummary
	err := c.do(ctx, http.MethodPost, "v1/periods/run", body, &resp)
	return resp, err
}

// Assignments lists the caller's assignments; role is "owner" or "executor".
func (c *Client) Assignments(ctx context.Context, role string, openOnly bool) ([]Assignment, error) {
	endpoint := "v1/assignments"
	params := url.Values{}
	if role != "" {
		params.Set("role", role)
	}
	if openOnly {
		params.Set("open", "true")
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp struct {
		Items []Assignment `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// RejectAssignment rejects an assignment in a public match.
func (c *Client) RejectAssignment(ctx context.Context, id string) (Assignment, error) {
	var resp Assignment
	err := c.do(ctx, http.MethodPost, "v1/assignments/"+url.PathEscape(id)+"/reject", nil, &resp)
	return resp, err
}

// ProposeNegotiation opens a date/time proposal on an assignment.
func (c *Client) ProposeNegotiation(ctx context.Context, assignmentID, date string, timeOfDay *string, message string) (Negotiation, error) {
	body := map[string]any{
		"proposed_date": date,
		"proposed_time": timeOfDay,
		"message":       message,
	}
	var resp Negotiation
	endpoint := fmt.Sprintf("v1/assignments/%s/negotiations", url.PathEscape(assignmentID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RespondNegotiation accepts or rejects a pending proposal.
func (c *Client) RespondNegotiation(ctx context.Context, id string, accept bool, message string) (Negotiation, error) {
	action := "reject"
	if accept {
		action = "accept"
	}
	body := map[string]any{"response_message": message}
	var resp Negotiation
	endpoint := fmt.Sprintf("v1/negotiations/%s/%s", url.PathEscape(id), action)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RecordExecution closes an assignment with a rating.
func (c *Client) RecordExecution(ctx context.Context, assignmentID, date string, rating int, creatorComment, executorComment string) (Execution, error) {
	body := map[string]any{
		"completed_date":      date,
		"rating":              rating,
		"comment_by_creator":  creatorComment,
		"comment_by_executor": executorComment,
	}
	var resp Execution
	endpoint := fmt.Sprintf("v1/assignments/%s/execution", url.PathEscape(assignmentID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Ranking returns one leaderboard; metric is "most-completed", "best-rated",
// or "fastest-completion".
func (c *Client) Ranking(ctx context.Context, metric string) ([]RankingEntry, error) {
	var resp struct {
		Items []RankingEntry `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v1/rankings/"+url.PathEscape(metric), nil, &resp)
	return resp.Items, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v1/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
