package types

// Post is a user-authored piece of content pending or already delivered.
// It is created once by an API mutation and is immutable from the point of
// view of the scheduling pipeline.
type Post struct {
	ID           string    `json:"id"`
	Entity       string    `json:"entity,omitempty"`
	Content      string    `json:"content"`
	UserID       string    `json:"userId"`
	ImageURLs    []string  `json:"imageUrls,omitempty"`
	SchedulePost bool      `json:"schedulePost"`
	Schedule     *Schedule `json:"schedule,omitempty"`
	CreatedOn    int64     `json:"createdOn"`
	UpdatedOn    *int64    `json:"updatedOn,omitempty"`
}

// Schedule is a naive wall-clock moment with no timezone of its own.
// Month is 1-based.
type Schedule struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// PostInput is the caller-supplied portion of a new Post. The store assigns
// the identifier, keys and timestamps.
type PostInput struct {
	Content      string    `json:"content" validate:"required"`
	UserID       string    `json:"userId" validate:"required"`
	ImageURLs    []string  `json:"imageUrls,omitempty" validate:"omitempty,dive,required"`
	SchedulePost bool      `json:"schedulePost"`
	Schedule     *Schedule `json:"schedule,omitempty"`
}
