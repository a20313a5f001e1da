package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/config"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

// RunStatus represents the current state of a recalculation run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Trigger names what started a run.
const (
	TriggerImport   = "import"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// RecalculationRun tracks a single recalculation of one client
type RecalculationRun struct {
	ID                uuid.UUID
	ClientID          string
	Trigger           string
	Status            RunStatus
	TotalProducts     int
	ProcessedProducts int
	FailedProducts    int
	StartedAt         time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
	ReportKey         string
}

// RunStats aggregates recent runs for monitoring
type RunStats struct {
	Runs              int64
	FailedRuns        int64
	ProductsProcessed int64
	ProductsFailed    int64
	LastCompletedAt   *time.Time
}

// RunStore persists run tracking records.
type RunStore interface {
	CreateRun(ctx context.Context, run *RecalculationRun) error
	UpdateRun(ctx context.Context, run *RecalculationRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*RecalculationRun, error)
	ListRecentRuns(ctx context.Context, clientID string, limit int) ([]*RecalculationRun, error)
}

// Config holds the orchestrator settings.
type Config struct {
	WorkerCount int
	Scheme      usage.TierScheme
	// Defaults fill client settings that are not configured.
	Defaults     domain.ReorderPolicy
	TargetWeeks  float64
	LeadWeeks    float64
	ReportPrefix string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:  4,
		Scheme:       usage.ClassicScheme,
		Defaults:     domain.DefaultReorderPolicy(),
		TargetWeeks:  usage.DefaultTargetWeeks,
		LeadWeeks:    usage.DefaultLeadWeeks,
		ReportPrefix: "recalculation-reports",
	}
}

// ProductFailure describes a product that could not be updated.
type ProductFailure struct {
	ProductID string `json:"product_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// Report is the outcome of recalculating one client. Processed counts
// products whose derived fields were written.
type Report struct {
	RunID       string           `json:"run_id,omitempty"`
	ClientID    string           `json:"client_id"`
	Total       int              `json:"total"`
	Processed   int              `json:"processed"`
	Errors      []string         `json:"errors"`
	Succeeded   []string         `json:"succeeded"`
	Failed      []ProductFailure `json:"failed"`
	Snapshots   int              `json:"snapshots"`
	Canceled    bool             `json:"canceled,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Invalidator drops cached estimates for products.
type Invalidator interface {
	Invalidate(ctx context.Context, productIDs ...string) error
}

// Observer receives run and product measurements.
type Observer interface {
	ObserveRun(status string, d time.Duration)
	ObserveProduct(tier domain.Tier, ok bool, d time.Duration)
}

// ConfigFromSettings builds an orchestrator config from the usage settings.
func ConfigFromSettings(settings config.UsageConfig, reportPrefix string) (Config, error) {
	scheme, err := usage.SchemeByName(settings.TierScheme)
	if err != nil {
		return Config{}, err
	}

	defaults := domain.DefaultReorderPolicy()
	if settings.LeadTimeDays > 0 {
		defaults.LeadTimeDays = settings.LeadTimeDays
	}
	if settings.SafetyStockWeeks >= 0 {
		defaults.SafetyStockWeeks = settings.SafetyStockWeeks
	}
	if settings.ServiceLevel > 0 {
		defaults.ServiceLevel = settings.ServiceLevel
	}
	if err := domain.ValidatePolicy(defaults); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.Scheme = scheme
	cfg.Defaults = defaults
	if settings.WorkerCount > 0 {
		cfg.WorkerCount = settings.WorkerCount
	}
	if settings.TargetWeeks > 0 {
		cfg.TargetWeeks = settings.TargetWeeks
	}
	if settings.LeadWeeks > 0 {
		cfg.LeadWeeks = settings.LeadWeeks
	}
	if reportPrefix != "" {
		cfg.ReportPrefix = reportPrefix
	}
	return cfg, nil
}
