package handler

import "github.com/subledger/backend/internal/interfaces/http/dto"

// APIResponse represents a typed API response
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// ReceiptSentData confirms a receipt delivery acknowledgement
type ReceiptSentData struct {
	PaymentID   string `json:"payment_id"`
	ReceiptSent bool   `json:"receipt_sent"`
}

// ReportLinkData is returned instead of the workbook when ?link=true
type ReportLinkData struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
