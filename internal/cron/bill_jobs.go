package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/internal/reporting"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
)

const (
	JobRebuildBills         = "rebuild-bills"
	JobRecomputeAllocations = "recompute-allocations"
	JobExportBillReport     = "export-bill-report"
)

type billBatchRunner interface {
	RebuildAll(ctx context.Context) (*bills.BatchReport, error)
	RecomputeAllAllocations(ctx context.Context) (*bills.BatchReport, error)
}

type reportExporter interface {
	Export(ctx context.Context, from, to time.Time) (*reporting.ExportReport, error)
}

type BillBatchJobParams struct {
	Logger *logger.Logger
	Bills  billBatchRunner
}

// NewRebuildBillsJob re-derives drifted appointment bills.
func NewRebuildBillsJob(params BillBatchJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &billBatchJob{name: JobRebuildBills, logg: params.Logger, run: params.Bills.RebuildAll}, nil
}

// NewRecomputeAllocationsJob re-splits every payment with the current rules.
// It overwrites explicit allocations, so it is registered as a manual job.
func NewRecomputeAllocationsJob(params BillBatchJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &billBatchJob{name: JobRecomputeAllocations, logg: params.Logger, run: params.Bills.RecomputeAllAllocations}, nil
}

func (p BillBatchJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.Bills == nil {
		return fmt.Errorf("bill service required")
	}
	return nil
}

type billBatchJob struct {
	name string
	logg *logger.Logger
	run  func(ctx context.Context) (*bills.BatchReport, error)
}

func (j *billBatchJob) Name() string { return j.name }

func (j *billBatchJob) Run(ctx context.Context) error {
	report, err := j.run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	if report == nil {
		return nil
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed": report.Processed,
		"changed":   report.Changed,
		"failed":    report.Failed,
	})
	j.logg.Info(logCtx, "bill batch finished")
	if report.Err != nil {
		return fmt.Errorf("%s: %d bills failed: %w", j.name, report.Failed, report.Err)
	}
	return nil
}

type ReportExportJobParams struct {
	Logger   *logger.Logger
	Exporter reportExporter
}

// NewReportExportJob ships the previous UTC day's bills to the warehouse.
func NewReportExportJob(params ReportExportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Exporter == nil {
		return nil, fmt.Errorf("report exporter required")
	}
	return &reportExportJob{logg: params.Logger, exporter: params.Exporter, now: time.Now}, nil
}

type reportExportJob struct {
	logg     *logger.Logger
	exporter reportExporter
	now      func() time.Time
}

func (j *reportExportJob) Name() string { return JobExportBillReport }

func (j *reportExportJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -1)

	report, err := j.exporter.Export(ctx, from, to)
	if err != nil {
		return fmt.Errorf("export bill report: %w", err)
	}
	if report != nil && report.Err != nil {
		return fmt.Errorf("export bill report: %d rows failed: %w", report.Failed, report.Err)
	}
	return nil
}
