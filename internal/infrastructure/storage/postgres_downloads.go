package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"StandardsCrawler/internal/domain"
)

// GetDownload loads the acquisition history for pk.
func (r *PostgresRepository) GetDownload(ctx context.Context, pk string) (domain.DownloadRecord, error) {
	query, args, err := psql.Select(
		"pk",
		"COALESCE(standard_code, '') AS standard_code",
		"COALESCE(file_path, '') AS file_path",
		"COALESCE(file_size, 0) AS file_size",
		"download_status",
		"COALESCE(captcha_text, '') AS captcha_text",
		"COALESCE(download_token, '') AS download_token",
		"retry_count",
		"COALESCE(error_message, '') AS error_message",
		"download_time",
	).
		From("standard_document").
		Where(sq.Eq{"pk": pk}).
		ToSql()
	if err != nil {
		return domain.DownloadRecord{}, fmt.Errorf("build download lookup: %w", err)
	}

	var record domain.DownloadRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DownloadRecord{}, fmt.Errorf("download %s: %w", pk, domain.ErrNotFound)
		}
		return domain.DownloadRecord{}, fmt.Errorf("get download %s: %w", pk, err)
	}
	return record, nil
}

// SaveAttempt upserts one attempt's outcome by pk. retry_count starts at zero and is left untouched on update.
func (r *PostgresRepository) SaveAttempt(ctx context.Context, record domain.DownloadRecord) (domain.DownloadRecord, error) {
	query, args, err := psql.Insert("standard_document").
		Columns("pk", "standard_code", "file_path", "file_size", "download_status", "captcha_text",
			"download_token", "retry_count", "error_message", "download_time", "create_by", "update_by").
		Values(record.PK, nullable(record.StandardCode), nullable(record.FilePath), record.FileSize, string(record.Status),
			nullable(record.CaptchaText), nullable(record.DownloadToken), 0, nullable(record.ErrorMessage),
			record.DownloadTime, auditUser, auditUser).
		Suffix(`ON CONFLICT (pk) DO UPDATE
              SET standard_code = EXCLUDED.standard_code,
                  file_path = EXCLUDED.file_path,
                  file_size = EXCLUDED.file_size,
                  download_status = EXCLUDED.download_status,
                  captcha_text = EXCLUDED.captcha_text,
                  download_token = EXCLUDED.download_token,
                  error_message = EXCLUDED.error_message,
                  download_time = EXCLUDED.download_time,
                  update_by = EXCLUDED.update_by,
                  update_time = NOW()
              RETURNING retry_count`).
		ToSql()
	if err != nil {
		return domain.DownloadRecord{}, fmt.Errorf("build download upsert: %w", err)
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&record.RetryCount); err != nil {
		return domain.DownloadRecord{}, fmt.Errorf("save download %s: %w", record.PK, err)
	}
	return record, nil
}

// IncrementRetry bumps retry_count while it is below limit.
func (r *PostgresRepository) IncrementRetry(ctx context.Context, pk string, limit int) error {
	query, args, err := psql.Update("standard_document").
		Set("retry_count", sq.Expr("retry_count + 1")).
		Set("update_time", sq.Expr("NOW()")).
		Where(sq.Eq{"pk": pk}).
		Where(sq.Lt{"retry_count": limit}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build retry increment: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("increment retry %s: %w", pk, err)
	}
	return nil
}

// PendingPKs returns the worklist page ordered by pk.
func (r *PostgresRepository) PendingPKs(ctx context.Context, q domain.WorklistQuery, offset, limit int) ([]string, error) {
	base, key, err := worklistBase(q)
	if err != nil {
		return nil, err
	}

	query, args, err := base.Columns(key).
		OrderBy(key).
		Limit(uint64(max(limit, 0))).
		Offset(uint64(max(offset, 0))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s worklist: %w", q.Kind, err)
	}

	var pks []string
	if err := r.db.SelectContext(ctx, &pks, query, args...); err != nil {
		return nil, fmt.Errorf("query %s worklist: %w", q.Kind, err)
	}
	return pks, nil
}

// CountPending counts the worklist, ignoring any cursor.
func (r *PostgresRepository) CountPending(ctx context.Context, q domain.WorklistQuery) (int64, error) {
	q.After = ""
	base, _, err := worklistBase(q)
	if err != nil {
		return 0, err
	}

	query, args, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s count: %w", q.Kind, err)
	}

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count %s worklist: %w", q.Kind, err)
	}
	return count, nil
}

// worklistBase builds the FROM/WHERE part of a worklist query and names its pk column.
func worklistBase(q domain.WorklistQuery) (sq.SelectBuilder, string, error) {
	var (
		base sq.SelectBuilder
		key  string
	)

	switch q.Kind {
	case domain.WorklistDetail:
		key = "d.pk"
		base = psql.Select().
			From("industry_standard_detail d").
			Where("NOT EXISTS (SELECT 1 FROM industry_standard_detail_info i WHERE i.pk = d.pk)")
	case domain.WorklistDownload:
		key = "d.pk"
		base = psql.Select().
			From("industry_standard_detail d").
			LeftJoin("standard_document sd ON d.pk = sd.pk").
			Where("sd.pk IS NULL")
	case domain.WorklistRetry:
		key = "sd.pk"
		base = psql.Select().
			From("standard_document sd").
			Where(sq.Eq{"sd.download_status": []string{string(domain.DownloadFailed), string(domain.DownloadPending)}}).
			Where(sq.Lt{"sd.retry_count": q.MaxRetries})
	default:
		return sq.SelectBuilder{}, "", fmt.Errorf("unknown worklist %q", q.Kind)
	}

	if q.After != "" {
		base = base.Where(sq.Gt{key: q.After})
	}
	return base, key, nil
}
