package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/ports"
)

const (
	auditUser = "system"
	// insertChunk bounds the rows per multi-value INSERT.
	insertChunk = 500
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists the crawl state into Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

var _ ports.Store = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sqlx.DB implementation.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// UpsertCategories inserts or refreshes categories by (industry_code, title) and returns them with ids.
func (r *PostgresRepository) UpsertCategories(ctx context.Context, categories []domain.Category) ([]domain.Category, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	saved := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		query, args, err := psql.Insert("industry_category").
			Columns("industry_code", "industry_name", "title", "standard_count", "data_trade", "create_by", "update_by").
			Values(c.Code, c.Name, c.Title, c.StandardCount, c.DataTrade, auditUser, auditUser).
			Suffix(`ON CONFLICT (industry_code, title) DO UPDATE
              SET industry_name = EXCLUDED.industry_name,
                  standard_count = EXCLUDED.standard_count,
                  data_trade = EXCLUDED.data_trade,
                  update_by = EXCLUDED.update_by,
                  update_time = NOW()
              RETURNING id`).
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("build category upsert: %w", err)
		}

		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&c.ID); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("upsert category %s: %w", c.Code, err)
		}
		saved = append(saved, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit categories: %w", err)
	}
	return saved, nil
}

// ListCategories returns every stored category ordered by id.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query, args, err := psql.Select("id", "industry_code", "industry_name", "title", "standard_count", "data_trade").
		From("industry_category").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build category list: %w", err)
	}

	var categories []domain.Category
	if err := r.db.SelectContext(ctx, &categories, query, args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// UpsertStandards writes record summaries keyed by pk; later duplicates in the batch win.
func (r *PostgresRepository) UpsertStandards(ctx context.Context, standards []domain.Standard) (int, error) {
	unique := dedupe(standards, func(s domain.Standard) string { return s.PK })

	for start := 0; start < len(unique); start += insertChunk {
		end := min(start+insertChunk, len(unique))

		insert := psql.Insert("industry_standard_detail").Columns(
			"pk", "industry_category_id", "code", "ch_name", "industry", "charge_dept", "status",
			"issue_date", "act_date", "record_date", "record_no", "revise_std_codes", "empty",
			"other_result_columns", "fz_date", "create_by", "update_by",
		)
		for _, s := range unique[start:end] {
			insert = insert.Values(
				s.PK, s.CategoryID, s.Code, s.Name, s.Industry, s.ChargeDept, s.Status,
				s.IssueDate, s.ActDate, s.RecordDate, s.RecordNo, s.ReviseStdCodes, s.Empty,
				nullable(s.OtherColumns), s.AbolishDate, auditUser, auditUser,
			)
		}

		query, args, err := insert.Suffix(`ON CONFLICT (pk) DO UPDATE
              SET industry_category_id = EXCLUDED.industry_category_id,
                  code = EXCLUDED.code,
                  ch_name = EXCLUDED.ch_name,
                  industry = EXCLUDED.industry,
                  charge_dept = EXCLUDED.charge_dept,
                  status = EXCLUDED.status,
                  issue_date = EXCLUDED.issue_date,
                  act_date = EXCLUDED.act_date,
                  record_date = EXCLUDED.record_date,
                  record_no = EXCLUDED.record_no,
                  revise_std_codes = EXCLUDED.revise_std_codes,
                  empty = EXCLUDED.empty,
                  other_result_columns = EXCLUDED.other_result_columns,
                  fz_date = EXCLUDED.fz_date,
                  update_by = EXCLUDED.update_by,
                  update_time = NOW()`).ToSql()
		if err != nil {
			return start, fmt.Errorf("build standard upsert: %w", err)
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return start, fmt.Errorf("upsert standards: %w", err)
		}
	}

	return len(unique), nil
}

// GetStandard loads the fields the download stage needs.
func (r *PostgresRepository) GetStandard(ctx context.Context, pk string) (domain.Standard, error) {
	query, args, err := psql.Select("pk", "industry_category_id", "COALESCE(code, '') AS code", "COALESCE(ch_name, '') AS ch_name").
		From("industry_standard_detail").
		Where(sq.Eq{"pk": pk}).
		ToSql()
	if err != nil {
		return domain.Standard{}, fmt.Errorf("build standard lookup: %w", err)
	}

	var standard domain.Standard
	if err := r.db.GetContext(ctx, &standard, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Standard{}, fmt.Errorf("standard %s: %w", pk, domain.ErrNotFound)
		}
		return domain.Standard{}, fmt.Errorf("get standard %s: %w", pk, err)
	}
	return standard, nil
}

var detailInfoColumns = []string{
	"pk", "publish_date", "implement_date", "abolish_status", "standard_code", "revision_type",
	"replace_standard", "china_classification", "international_classification", "technical_committee",
	"approval_department", "industry_classification", "standard_category", "record_number",
	"record_date", "record_bulletin", "scope", "drafting_units", "drafting_persons",
}

// UpsertDetailInfos writes detail rows in one statement per chunk; a row's presence marks enrichment done.
func (r *PostgresRepository) UpsertDetailInfos(ctx context.Context, infos []domain.DetailInfo) (int, error) {
	unique := dedupe(infos, func(d domain.DetailInfo) string { return d.PK })

	for start := 0; start < len(unique); start += insertChunk {
		end := min(start+insertChunk, len(unique))

		insert := psql.Insert("industry_standard_detail_info").Columns(append(detailInfoColumns, "create_by", "update_by")...)
		for _, d := range unique[start:end] {
			insert = insert.Values(
				d.PK, d.PublishDate, d.ImplementDate, d.AbolishStatus, d.StandardCode, d.RevisionType,
				d.ReplaceStandard, d.ChinaClassification, d.InternationalClassification, d.TechnicalCommittee,
				d.ApprovalDepartment, d.IndustryClassification, d.StandardCategory, d.RecordNumber,
				d.RecordDate, d.RecordBulletin, d.Scope, d.DraftingUnits, d.DraftingPersons,
				auditUser, auditUser,
			)
		}

		query, args, err := insert.Suffix(excludedUpdate("pk", detailInfoColumns[1:])).ToSql()
		if err != nil {
			return start, fmt.Errorf("build detail upsert: %w", err)
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return start, fmt.Errorf("upsert detail infos: %w", err)
		}
	}

	return len(unique), nil
}

// GetDetailInfo loads the detail row for pk.
func (r *PostgresRepository) GetDetailInfo(ctx context.Context, pk string) (domain.DetailInfo, error) {
	query, args, err := psql.Select(detailInfoColumns...).
		From("industry_standard_detail_info").
		Where(sq.Eq{"pk": pk}).
		ToSql()
	if err != nil {
		return domain.DetailInfo{}, fmt.Errorf("build detail lookup: %w", err)
	}

	var info domain.DetailInfo
	if err := r.db.GetContext(ctx, &info, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DetailInfo{}, fmt.Errorf("detail info %s: %w", pk, domain.ErrNotFound)
		}
		return domain.DetailInfo{}, fmt.Errorf("get detail info %s: %w", pk, err)
	}
	return info, nil
}

func excludedUpdate(key string, columns []string) string {
	clause := "ON CONFLICT (" + key + ") DO UPDATE SET "
	for _, c := range columns {
		clause += c + " = EXCLUDED." + c + ", "
	}
	return clause + "update_by = EXCLUDED.update_by, update_time = NOW()"
}

// dedupe keeps the last item per key, preserving first-seen order.
// Postgres rejects an ON CONFLICT statement that touches one key twice.
func dedupe[T any](items []T, key func(T) string) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
