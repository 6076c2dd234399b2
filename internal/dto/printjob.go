// Package dto defines the JSON shapes served by the HTTP and gRPC surfaces.
package dto

import (
	"fmt"
	"time"

	"github.com/printmill/printmill/internal/config"
	"github.com/printmill/printmill/internal/entity"
)

// PrintJobResponse is one production job with its denormalized context.
type PrintJobResponse struct {
	ID                   int64                  `json:"id"`
	Status               string                 `json:"status"`
	Priority             int                    `json:"priority"`
	PrintFile            string                 `json:"print_file,omitempty"`
	PrintFileURL         string                 `json:"print_file_url,omitempty"`
	PrintFileDownloadURL string                 `json:"print_file_download_url,omitempty"`
	Notes                []PrintJobNoteResponse `json:"notes"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
	Order                *PrintJobOrder         `json:"order,omitempty"`
	OrderItem            *PrintJobOrderItem     `json:"order_item,omitempty"`
	Product              *PrintJobProduct       `json:"product,omitempty"`
	Design               *PrintJobDesign        `json:"design,omitempty"`
}

// PrintJobNoteResponse is one annotation entry, oldest-first.
type PrintJobNoteResponse struct {
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// PrintJobOrder summarizes the parent order.
type PrintJobOrder struct {
	ID                int64  `json:"id"`
	ExternalOrderID   int64  `json:"external_order_id"`
	ExternalOrderNum  string `json:"external_order_number"`
	OrderStatus       string `json:"order_status"`
	FulfillmentStatus string `json:"fulfillment_status"`
}

// PrintJobOrderItem summarizes the purchased line.
type PrintJobOrderItem struct {
	ID         int64   `json:"id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// PrintJobProduct summarizes the printable product.
type PrintJobProduct struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ProductType string `json:"product_type,omitempty"`
}

// PrintJobDesign summarizes the artwork behind the job.
type PrintJobDesign struct {
	ID               int64  `json:"id"`
	OriginalFilename string `json:"original_filename"`
	PreviewURL       string `json:"preview_url,omitempty"`
}

// PrintJobListResponse wraps a job listing.
type PrintJobListResponse struct {
	Count int                `json:"count"`
	Jobs  []PrintJobResponse `json:"jobs"`
}

// NewPrintJobResponse maps a print job entity with whatever relations were
// loaded.
func NewPrintJobResponse(job *entity.PrintJob, st config.Storage) PrintJobResponse {
	resp := PrintJobResponse{
		ID:        job.ID,
		Status:    job.Status,
		Priority:  job.Priority,
		PrintFile: job.PrintFilePath,
		Notes:     make([]PrintJobNoteResponse, 0, len(job.Notes)),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.PrintFilePath != "" {
		resp.PrintFileURL = st.PublicURL(job.PrintFilePath)
		resp.PrintFileDownloadURL = fmt.Sprintf("/print-jobs/%d/file", job.ID)
	}
	for _, note := range job.Notes {
		resp.Notes = append(resp.Notes, PrintJobNoteResponse{
			Note:      note.Note,
			CreatedAt: note.CreatedAt,
		})
	}
	if item := job.OrderItem; item != nil {
		resp.OrderItem = &PrintJobOrderItem{
			ID:         item.ID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		}
		if order := item.Order; order != nil {
			resp.Order = &PrintJobOrder{
				ID:                order.ID,
				ExternalOrderID:   order.ExternalOrderID,
				ExternalOrderNum:  order.ExternalOrderNum,
				OrderStatus:       order.OrderStatus,
				FulfillmentStatus: order.FulfillmentStatus,
			}
		}
		if product := item.Product; product != nil {
			resp.Product = &PrintJobProduct{
				ID:          product.ID,
				Name:        product.Name,
				ProductType: product.ProductType,
			}
		}
	}
	if design := job.Design; design != nil {
		resp.Design = &PrintJobDesign{
			ID:               design.ID,
			OriginalFilename: design.OriginalFilename,
			PreviewURL:       st.PublicURL(design.PreviewPath),
		}
	}
	return resp
}

// NewPrintJobListResponse maps a listing.
func NewPrintJobListResponse(jobs []*entity.PrintJob, st config.Storage) PrintJobListResponse {
	out := PrintJobListResponse{Count: len(jobs), Jobs: make([]PrintJobResponse, 0, len(jobs))}
	for _, job := range jobs {
		out.Jobs = append(out.Jobs, NewPrintJobResponse(job, st))
	}
	return out
}
