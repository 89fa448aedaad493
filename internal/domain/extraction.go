package domain

import "time"

// MediaKind es el tipo de contenido del post extraído
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaPhoto MediaKind = "photo"
)

// UnknownAuthor se usa cuando la plataforma no devuelve autor
const UnknownAuthor = "unknown"

// ExtractionResult es el resultado entregado al llamador. Se construye una vez y no se modifica.
type ExtractionResult struct {
	Success      bool      `json:"success"`
	Caption      string    `json:"caption"`
	Comments     []string  `json:"comments"`
	VideoURL     string    `json:"videoUrl,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	PostURL      string    `json:"postUrl"`
	Username     string    `json:"username"`
	MediaType    MediaKind `json:"mediaType"`
}

// Extraction es el registro histórico de un intento de extracción
type Extraction struct {
	ID           string
	URL          string
	Shortcode    string
	AccountID    *int64
	Outcome      string
	ErrorMessage string
	DurationMS   int64
	CreatedAt    time.Time
}

// OutcomeSuccess marca una extracción completa
const OutcomeSuccess = "success"

// Succeeded retorna true si la extracción terminó bien
func (e *Extraction) Succeeded() bool {
	return e.Outcome == OutcomeSuccess
}

// ExtractionStats resume el histórico por resultado
type ExtractionStats struct {
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"byOutcome"`
}
