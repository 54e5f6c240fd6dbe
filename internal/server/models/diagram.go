package models

import (
	"encoding/json"
	"time"
)

// DefaultDiagramTitle is used when a diagram is created without a title.
const DefaultDiagramTitle = "Untitled diagram"

// Diagram is a user-owned flowchart document. Content is an opaque JSON
// document produced by the editor; ShareUUID is set once the owner shares it.
type Diagram struct {
	ID        int64
	UserID    int64
	Title     string
	Content   json.RawMessage
	ShareUUID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
