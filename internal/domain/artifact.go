package domain

import (
	"net/url"
	"slices"
	"strings"
	"time"
)

// ArtifactKind classifies a linked artifact.
type ArtifactKind string

// ArtifactKind values.
const (
	ArtifactDoc        ArtifactKind = "doc"
	ArtifactDashboard  ArtifactKind = "dashboard"
	ArtifactQuery      ArtifactKind = "query"
	ArtifactRepo       ArtifactKind = "repo"
	ArtifactFile       ArtifactKind = "file"
	ArtifactTicketLink ArtifactKind = "ticket_link"
)

var validArtifactKinds = []ArtifactKind{ArtifactDoc, ArtifactDashboard, ArtifactQuery, ArtifactRepo, ArtifactFile, ArtifactTicketLink}

// Artifact links an external resource to a work item.
type Artifact struct {
	ID              string       `json:"artifact_id"`
	WorkItemID      string       `json:"work_id"`
	Kind            ArtifactKind `json:"kind"`
	Title           string       `json:"title"`
	URL             string       `json:"url"`
	CreatedByUserID string       `json:"created_by_user_id"`
	CreatedAt       time.Time    `json:"created_at"`
}

// ArtifactInput holds input values for artifact creation.
type ArtifactInput struct {
	ID              string
	WorkItemID      string
	Kind            ArtifactKind
	Title           string
	URL             string
	CreatedByUserID string
}

// NewArtifact constructs a validated artifact link.
func NewArtifact(in ArtifactInput, now time.Time) (Artifact, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.WorkItemID = strings.TrimSpace(in.WorkItemID)
	in.Kind = ArtifactKind(strings.TrimSpace(strings.ToLower(string(in.Kind))))
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	in.CreatedByUserID = strings.TrimSpace(in.CreatedByUserID)
	if in.ID == "" || in.WorkItemID == "" {
		return Artifact{}, ErrInvalidID
	}
	if !slices.Contains(validArtifactKinds, in.Kind) {
		return Artifact{}, ErrInvalidArtifactKind
	}
	if in.Title == "" {
		return Artifact{}, ErrInvalidTitle
	}
	if !isAbsoluteHTTPURL(in.URL) {
		return Artifact{}, ErrInvalidURL
	}
	if in.CreatedByUserID == "" {
		return Artifact{}, ErrInvalidActor
	}
	return Artifact{
		ID:              in.ID,
		WorkItemID:      in.WorkItemID,
		Kind:            in.Kind,
		Title:           in.Title,
		URL:             in.URL,
		CreatedByUserID: in.CreatedByUserID,
		CreatedAt:       now.UTC(),
	}, nil
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
