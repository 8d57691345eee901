package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique crawl job ID with the "job_" prefix.
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewExportJobID generates a unique export job ID with the "export_" prefix.
func NewExportJobID() string {
	return "export_" + uuid.New().String()
}

// NewProgressID generates a unique progress record ID with the "prog_" prefix.
func NewProgressID() string {
	return "prog_" + uuid.New().String()
}

// NewExportLogID generates a unique export log ID with the "explog_" prefix.
func NewExportLogID() string {
	return "explog_" + uuid.New().String()
}

// NewBusinessID generates a fallback business ID. Normal inserts instead
// use models.BusinessKey as the store key; this exists for code paths that
// need an ID before the (domain, page_url) identity is known.
func NewBusinessID() string {
	return "biz_" + uuid.New().String()
}
