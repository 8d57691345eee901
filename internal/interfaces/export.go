package interfaces

import (
	"context"

	"github.com/joshfom/yello-crawl/internal/models"
)

// ExportPipeline is the export control surface named in spec §6.
type ExportPipeline interface {
	Create(ctx context.Context, config models.ExportConfig, autoStart bool) (*models.ExportJob, error)
	Start(ctx context.Context, jobID string) error
	Stop(ctx context.Context, jobID string) error
	Delete(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*models.ExportJob, error)
	List(ctx context.Context, limit, offset int) ([]*models.ExportJob, error)
	GetLogs(ctx context.Context, jobID string) ([]*models.ExportLog, error)
	TestConnection(ctx context.Context, endpointURL, authToken string) error
}
