package model

import "time"

// Document is the metadata record of one uploaded file.
// This is a pure domain model with no database-specific dependencies or tags.
// Filepath is the server-relative storage key ("uploads/<generated name>") and is unique;
// Filename is whatever the client sent and may repeat.
type Document struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	Filesize  int64     `json:"filesize"`
	CreatedAt time.Time `json:"created_at"`
}
