package model

import "time"

type Facility struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	Capacity    int       `json:"capacity,omitempty" bson:"capacity,omitempty" validate:"omitempty,min=1,max=10000"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=200"`
	ImageURL    string    `json:"image_url,omitempty" bson:"image_url,omitempty" validate:"omitempty,url"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type FacilityUpdate struct {
	Name        string  `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Capacity    *int    `json:"capacity,omitempty" validate:"omitempty,min=1,max=10000"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=200"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
}
