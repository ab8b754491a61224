// Package reporting ships the bill report to BigQuery.
package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
)

const (
	defaultPageSize = 200
	// matches the bill report's own row cap
	maxPageSize = 500
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type billLister interface {
	List(ctx context.Context, actor auth.Actor, query bills.ListQuery) ([]bills.ReportRow, error)
}

// Exporter copies report rows for a time window into the bills table.
type Exporter struct {
	client   tableInserter
	table    string
	bills    billLister
	logg     *logger.Logger
	pageSize int
	now      func() time.Time
}

// ExportReport describes one export run. Err aggregates failed page inserts.
type ExportReport struct {
	Rows   int
	Pages  int
	Failed int
	Err    error
}

// NewExporter builds an exporter writing to table.
func NewExporter(client tableInserter, table string, lister billLister, logg *logger.Logger) (*Exporter, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if lister == nil {
		return nil, fmt.Errorf("bill lister required")
	}
	return &Exporter{
		client:   client,
		table:    strings.TrimSpace(table),
		bills:    lister,
		logg:     logg,
		pageSize: defaultPageSize,
		now:      time.Now,
	}, nil
}

// WithPageSize overrides the rows read per page, clamped to the report cap.
func (e *Exporter) WithPageSize(size int) *Exporter {
	if size <= 0 {
		return e
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	e.pageSize = size
	return e
}

// Export pages through bills created in [from, to) as the system actor. A page
// that fails to insert is recorded and skipped; a failed read stops the run.
func (e *Exporter) Export(ctx context.Context, from, to time.Time) (*ExportReport, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("export window is empty")
	}
	report := &ExportReport{}
	exportedAt := e.now().UTC()

	for offset := 0; ; offset += e.pageSize {
		rows, err := e.bills.List(ctx, auth.SystemActor, bills.ListQuery{
			From:   &from,
			To:     &to,
			Sort:   bills.SortCreatedAt,
			Limit:  e.pageSize,
			Offset: offset,
		})
		if err != nil {
			return report, fmt.Errorf("list bills at offset %d: %w", offset, err)
		}
		if len(rows) == 0 {
			break
		}
		report.Pages++

		batch := make([]any, 0, len(rows))
		for _, row := range rows {
			batch = append(batch, newBillRow(row, exportedAt))
		}
		if err := e.client.InsertRows(ctx, e.table, batch); err != nil {
			report.Failed += len(rows)
			report.Err = multierr.Append(report.Err, fmt.Errorf("insert page at offset %d: %w", offset, err))
			if e.logg != nil {
				e.logg.Error(e.logg.WithField(ctx, "offset", offset), "failed to insert bill report page", err)
			}
		} else {
			report.Rows += len(rows)
		}
		if len(rows) < e.pageSize {
			break
		}
	}

	if e.logg != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{
			"from":   from.Format(time.RFC3339),
			"to":     to.Format(time.RFC3339),
			"rows":   report.Rows,
			"failed": report.Failed,
		})
		e.logg.Info(logCtx, "bill report exported")
	}
	return report, nil
}
