package model

import "time"

// RequestStatus is the review state of an AccessRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// AccessRequest is a row of the `access_requests` table. It is created
// pending and moves exactly once to approved or rejected.
type AccessRequest struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	Name            string        `json:"name"`
	Phone           string        `json:"phone"`
	AppID           string        `json:"appId"`
	AppKey          string        `json:"appKey"`
	AppPath         string        `json:"appPath"`
	AppName         string        `json:"appName"`
	Status          RequestStatus `json:"status"`
	RequestedAt     time.Time     `json:"requestedAt"`
	ReviewedAt      *time.Time    `json:"reviewedAt,omitempty"`
	ReviewedBy      string        `json:"reviewedBy,omitempty"`
	RejectionReason string        `json:"rejectionReason,omitempty"`
}

// RequestReview is the pending to Status transition of one request.
// Reason is only kept for rejections.
type RequestReview struct {
	RequestID string
	Status    RequestStatus
	Reviewer  string
	Reason    string
	At        time.Time
}
