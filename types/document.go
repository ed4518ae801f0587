package types

import "time"

// Document types an applicant uploads.
const (
	DocPhoto      = "photo"
	DocIDCard     = "id_card"
	DocTranscript = "transcript"
	DocNameChange = "name_change"
)

// RequiredDocuments must all be present in an upload batch.
var RequiredDocuments = []string{DocPhoto, DocIDCard, DocTranscript}

// OptionalDocuments may accompany the required ones.
var OptionalDocuments = []string{DocNameChange}

// Document describes an uploaded admission document held in object storage.
type Document struct {
	// Key is the object key, "<citizen_id>_<first>-<last>_<doc_type><ext>".
	Key string `json:"key"`

	// CitizenID is parsed back from the key.
	CitizenID string `json:"citizen_id"`

	// DocType is one of the Doc* constants, or "unknown".
	DocType string `json:"doc_type"`

	Size int64 `json:"size"`

	ContentType string `json:"content_type,omitempty"`

	Modified time.Time `json:"modified"`
}
