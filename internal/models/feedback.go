package models

import (
	"strings"
	"time"

	apperr "risklock/internal/errors"
)

// FeedbackType distinguishes ideas from complaints.
type FeedbackType string

const (
	FeedbackIdea      FeedbackType = "IDEA"
	FeedbackComplaint FeedbackType = "COMPLAINT"
)

// FeedbackStatus is the admin workflow state of a feedback record.
type FeedbackStatus string

const (
	FeedbackReceived    FeedbackStatus = "RECEIVED"
	FeedbackUnderReview FeedbackStatus = "UNDER_REVIEW"
	FeedbackPlanned     FeedbackStatus = "PLANNED"
	FeedbackResolved    FeedbackStatus = "RESOLVED"
	FeedbackRejected    FeedbackStatus = "REJECTED"
)

// FeedbackStatuses lists the workflow states in order.
var FeedbackStatuses = []FeedbackStatus{
	FeedbackReceived, FeedbackUnderReview, FeedbackPlanned, FeedbackResolved, FeedbackRejected,
}

// FeedbackSeverities are the accepted severity values.
var FeedbackSeverities = []string{"Low", "Medium", "High"}

// FeedbackCategories are the accepted category values.
var FeedbackCategories = []string{"UI", "Risk", "Reports", "AI", "Performance", "Other"}

// Feedback is an idea or complaint submitted by a user.
type Feedback struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	Type        FeedbackType   `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	Status      FeedbackStatus `json:"status"`
	AdminNotes  string         `json:"admin_notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// FeedbackInput is the body of a new feedback submission.
type FeedbackInput struct {
	Type        FeedbackType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category,omitempty"`
	Severity    string       `json:"severity,omitempty"`
}

// Validate checks the input before it is sent.
func (in FeedbackInput) Validate() error {
	if in.Type != FeedbackIdea && in.Type != FeedbackComplaint {
		return apperr.NewValidationError("type", in.Type, "must be IDEA or COMPLAINT")
	}
	if strings.TrimSpace(in.Title) == "" {
		return apperr.NewValidationError("title", in.Title, "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return apperr.NewValidationError("description", in.Description, "is required")
	}
	if in.Severity != "" && !contains(FeedbackSeverities, in.Severity) {
		return apperr.NewValidationError("severity", in.Severity, "must be Low, Medium or High")
	}
	if in.Category != "" && !contains(FeedbackCategories, in.Category) {
		return apperr.NewValidationError("category", in.Category, "unknown category")
	}
	return nil
}

// FeedbackUpdate is the admin patch body. Nil fields are left unchanged.
type FeedbackUpdate struct {
	Status     *FeedbackStatus `json:"status,omitempty"`
	AdminNotes *string         `json:"admin_notes,omitempty"`
}

// Validate checks the patch before it is sent.
func (u FeedbackUpdate) Validate() error {
	if u.Status == nil && u.AdminNotes == nil {
		return apperr.NewValidationError("update", nil, "nothing to update")
	}
	if u.Status != nil {
		for _, s := range FeedbackStatuses {
			if *u.Status == s {
				return nil
			}
		}
		return apperr.NewValidationError("status", *u.Status, "unknown status")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
