package models

import "time"

type Location struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Address   string    `json:"address,omitempty" yaml:"address"`
	Postcode  string    `json:"postcode,omitempty" yaml:"postcode"`
	Latitude  *float64  `json:"latitude,omitempty" yaml:"latitude"`
	Longitude *float64  `json:"longitude,omitempty" yaml:"longitude"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}
