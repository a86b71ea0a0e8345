package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const DefaultPlanTitle = "未命名行程"

// TravelPlan is a saved itinerary. Plans are soft-deleted through IsActive.
type TravelPlan struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Title        string          `json:"title"`
	Origin       *string         `json:"origin,omitempty"`
	Destination  string          `json:"destination"`
	StartDate    *string         `json:"start_date,omitempty"`
	Days         *int            `json:"days,omitempty"`
	Budget       *float64        `json:"budget,omitempty"`
	Travelers    *int            `json:"travelers,omitempty"`
	Preferences  []string        `json:"preferences"`
	WithChildren bool            `json:"with_children"`
	Language     string          `json:"language"`
	PlanData     json.RawMessage `json:"plan_data"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreatePlanRequest is the body of POST /plans.
type CreatePlanRequest struct {
	Title        string          `json:"title,omitempty"`
	Origin       string          `json:"origin,omitempty"`
	Destination  string          `json:"destination"`
	StartDate    string          `json:"startDate,omitempty"`
	Days         *int            `json:"days,omitempty"`
	Budget       *float64        `json:"budget,omitempty"`
	Travelers    *int            `json:"travelers,omitempty"`
	Preferences  Preferences     `json:"preferences,omitempty"`
	WithChildren bool            `json:"withChildren,omitempty"`
	Language     string          `json:"language,omitempty"`
	PlanData     json.RawMessage `json:"planData,omitempty"`
}

type PlansResponse struct {
	Plans []TravelPlan `json:"plans"`
}

type PlanResponse struct {
	Plan *TravelPlan `json:"plan"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
