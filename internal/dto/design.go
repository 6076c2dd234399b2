package dto

import (
	"encoding/json"
	"time"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
)

// DesignResponse is one uploaded design with public URLs.
type DesignResponse struct {
	ID               int64           `json:"id"`
	SessionID        string          `json:"session_id"`
	ProductID        int64           `json:"product_id"`
	OriginalFilename string          `json:"original_filename"`
	StoredFilename   string          `json:"stored_filename"`
	FileURL          string          `json:"file_url"`
	PreviewURL       string          `json:"preview_url"`
	FileSize         int64           `json:"file_size"`
	MimeType         string          `json:"mime_type,omitempty"`
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	DPI              int             `json:"dpi"`
	DesignConfig     json.RawMessage `json:"design_config,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DesignListResponse wraps a session's designs.
type DesignListResponse struct {
	Count   int              `json:"count"`
	Designs []DesignResponse `json:"designs"`
}

// NewDesignResponse maps a design entity.
func NewDesignResponse(design *entity.Design, st config.Storage) DesignResponse {
	resp := DesignResponse{
		ID:               design.ID,
		SessionID:        design.SessionID,
		ProductID:        design.ProductID,
		OriginalFilename: design.OriginalFilename,
		StoredFilename:   design.StoredFilename,
		FileURL:          st.PublicURL(design.FilePath),
		PreviewURL:       st.PublicURL(design.PreviewPath),
		FileSize:         design.FileSize,
		MimeType:         design.MimeType,
		Width:            design.Width,
		Height:           design.Height,
		DPI:              design.DPI,
		Status:           design.Status,
		CreatedAt:        design.CreatedAt,
		UpdatedAt:        design.UpdatedAt,
	}
	if design.DesignConfig != "" {
		resp.DesignConfig = json.RawMessage(design.DesignConfig)
	}
	return resp
}

// NewDesignListResponse maps a design listing.
func NewDesignListResponse(designs []*entity.Design, st config.Storage) DesignListResponse {
	out := DesignListResponse{Count: len(designs), Designs: make([]DesignResponse, 0, len(designs))}
	for _, d := range designs {
		out.Designs = append(out.Designs, NewDesignResponse(d, st))
	}
	return out
}
