package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/predictops/autoscaler/pkg/models"
)

type ScalingEventRepository struct {
	db *sql.DB
}

func NewScalingEventRepository(db *sql.DB) *ScalingEventRepository {
	return &ScalingEventRepository{db: db}
}

const scalingEventColumns = `id, target_id, timestamp, action, replicas_before, replicas_after,
	   forecast, trigger_reason, surplus_removed, status`

func scanScalingEvents(rows *sql.Rows) ([]models.ScalingEvent, error) {
	var events []models.ScalingEvent
	for rows.Next() {
		var e models.ScalingEvent
		err := rows.Scan(
			&e.ID, &e.TargetID, &e.Timestamp, &e.Action,
			&e.ReplicasBefore, &e.ReplicasAfter, &e.Forecast,
			&e.TriggerReason, &e.SurplusRemoved, &e.Status,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *ScalingEventRepository) GetByTarget(ctx context.Context, targetID string, from, to time.Time, limit int) ([]models.ScalingEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + scalingEventColumns + `
		FROM scaling_events
		WHERE target_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, targetID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScalingEvents(rows)
}

func (r *ScalingEventRepository) GetRecent(ctx context.Context, limit int) ([]models.ScalingEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + scalingEventColumns + `
		FROM scaling_events
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScalingEvents(rows)
}

func (r *ScalingEventRepository) GetStats(ctx context.Context, targetID string, from, to time.Time) (*ScalingStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE action = 'scale_out') AS scale_out_count,
			COUNT(*) FILTER (WHERE action = 'scale_in') AS scale_in_count,
			COUNT(*) FILTER (WHERE status = 'success') AS success_count,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed_count,
			COALESCE(SUM(surplus_removed), 0) AS surplus_removed_total
		FROM scaling_events
		WHERE target_id = $1 AND timestamp >= $2 AND timestamp <= $3`

	var stats ScalingStats
	err := r.db.QueryRowContext(ctx, query, targetID, from, to).Scan(
		&stats.ScaleOutCount, &stats.ScaleInCount,
		&stats.SuccessCount, &stats.FailedCount, &stats.SurplusRemovedTotal,
	)

	if err != nil {
		return nil, err
	}

	stats.TargetID = targetID
	stats.From = from
	stats.To = to

	return &stats, nil
}

func (r *ScalingEventRepository) Insert(ctx context.Context, event *models.ScalingEvent) error {
	query := `
		INSERT INTO scaling_events
			(target_id, timestamp, action, replicas_before, replicas_after,
			 forecast, trigger_reason, surplus_removed, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		event.TargetID,
		event.Timestamp,
		event.Action,
		event.ReplicasBefore,
		event.ReplicasAfter,
		event.Forecast,
		event.TriggerReason,
		event.SurplusRemoved,
		event.Status,
	).Scan(&event.ID)
}

type ScalingStats struct {
	TargetID            string    `json:"target_id"`
	From                time.Time `json:"from"`
	To                  time.Time `json:"to"`
	ScaleOutCount       int       `json:"scale_out_count"`
	ScaleInCount        int       `json:"scale_in_count"`
	SuccessCount        int       `json:"success_count"`
	FailedCount         int       `json:"failed_count"`
	SurplusRemovedTotal int       `json:"surplus_removed_total"`
}
