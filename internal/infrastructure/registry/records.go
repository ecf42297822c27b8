package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"StandardsCrawler/internal/config"
	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/pause"
	"StandardsCrawler/internal/ports"
)

// queryEnvelope is the listing endpoint response.
type queryEnvelope struct {
	Records []json.RawMessage `json:"records"`
	Pages   int               `json:"pages"`
	Total   int               `json:"total"`
}

type recordJSON struct {
	PK                 string          `json:"pk"`
	Code               string          `json:"code"`
	ChName             string          `json:"chName"`
	Industry           string          `json:"industry"`
	ChargeDept         string          `json:"chargeDept"`
	Status             string          `json:"status"`
	IssueDate          *int64          `json:"issueDate"`
	ActDate            *int64          `json:"actDate"`
	RecordDate         *int64          `json:"recordDate"`
	RecordNo           string          `json:"recordNo"`
	ReviseStdCodes     string          `json:"reviseStdCodes"`
	Empty              *bool           `json:"empty"`
	OtherResultColumns json.RawMessage `json:"otherResultColumns"`
	FzDate             *int64          `json:"fzDate"`
}

// RecordHarvester pages through the listing endpoint one category at a time.
type RecordHarvester struct {
	client    *Client
	pageSize  int
	pageDelay time.Duration
	pause     pause.Func
	logger    *slog.Logger
}

var _ ports.RecordSource = (*RecordHarvester)(nil)

// NewRecordHarvester builds a harvester; a nil pause uses a real sleep.
func NewRecordHarvester(client *Client, cfg config.HarvestConfig, p pause.Func, logger *slog.Logger) *RecordHarvester {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	if logger == nil {
		logger = client.logger
	}
	return &RecordHarvester{
		client:    client,
		pageSize:  pageSize,
		pageDelay: cfg.PageDelay,
		pause:     pause.OrSleep(p),
		logger:    logger,
	}
}

// HarvestByCategory requests page 1, then pages 2..pages with a fixed delay.
// A failed later page is logged and skipped; a failed first page is an error.
// When ctx is cancelled during a delay, the records read so far are returned with ctx's error.
func (h *RecordHarvester) HarvestByCategory(ctx context.Context, industry string) ([]domain.Standard, error) {
	first, err := h.queryPage(ctx, industry, 1)
	if err != nil {
		return nil, fmt.Errorf("industry %s page 1: %w", industry, err)
	}

	standards := h.parseRecords(first.Records, industry)
	h.logger.Info("industry listing",
		"industry", industry, "pages", first.Pages, "total", first.Total)

	for page := 2; page <= first.Pages; page++ {
		if err := h.pause(ctx, h.pageDelay); err != nil {
			return standards, err
		}

		envelope, err := h.queryPage(ctx, industry, page)
		if err != nil {
			h.logger.Error("skip listing page", "industry", industry, "page", page, "error", err)
			continue
		}

		standards = append(standards, h.parseRecords(envelope.Records, industry)...)
		h.logger.Debug("listing page done", "industry", industry, "page", page, "pages", first.Pages)
	}

	h.logger.Info("industry harvested", "industry", industry, "records", len(standards), "total", first.Total)
	return standards, nil
}

func (h *RecordHarvester) queryPage(ctx context.Context, industry string, page int) (queryEnvelope, error) {
	form := url.Values{}
	form.Set("current", strconv.Itoa(page))
	form.Set("size", strconv.Itoa(h.pageSize))
	form.Set("industry", industry)

	body, err := h.client.postForm(ctx, h.client.endpoint(h.client.cfg.QueryPath), form)
	if err != nil {
		return queryEnvelope{}, err
	}
	defer body.Close()

	var envelope queryEnvelope
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return queryEnvelope{}, fmt.Errorf("%w: decode listing: %v", domain.ErrParse, err)
	}
	return envelope, nil
}

func (h *RecordHarvester) parseRecords(raw []json.RawMessage, industry string) []domain.Standard {
	standards := make([]domain.Standard, 0, len(raw))
	for _, item := range raw {
		standard, err := parseRecord(item)
		if err != nil {
			h.logger.Warn("skip listing record", "industry", industry, "error", err)
			continue
		}
		standards = append(standards, standard)
	}
	return standards
}

func parseRecord(raw json.RawMessage) (domain.Standard, error) {
	var rec recordJSON
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Standard{}, fmt.Errorf("decode record: %w", err)
	}
	if rec.PK == "" {
		return domain.Standard{}, fmt.Errorf("record without pk")
	}

	standard := domain.Standard{
		PK:             rec.PK,
		Code:           rec.Code,
		Name:           rec.ChName,
		Industry:       rec.Industry,
		ChargeDept:     rec.ChargeDept,
		Status:         rec.Status,
		IssueDate:      fromMillis(rec.IssueDate),
		ActDate:        fromMillis(rec.ActDate),
		RecordDate:     fromMillis(rec.RecordDate),
		RecordNo:       rec.RecordNo,
		ReviseStdCodes: rec.ReviseStdCodes,
		Empty:          rec.Empty,
		AbolishDate:    fromMillis(rec.FzDate),
	}

	if len(rec.OtherResultColumns) > 0 && string(rec.OtherResultColumns) != "null" {
		standard.OtherColumns = string(rec.OtherResultColumns)
	}

	return standard, nil
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
