package domain

import "time"

// Category is a top-level industry classification harvested from the registry.
type Category struct {
	ID            int64  `db:"id"`
	Code          string `db:"industry_code"`
	Name          string `db:"industry_name"`
	Title         string `db:"title"`
	StandardCount int    `db:"standard_count"`
	DataTrade     string `db:"data_trade"`
}

// Standard is the raw record summary returned by the paginated listing.
type Standard struct {
	PK             string     `db:"pk"`
	CategoryID     *int64     `db:"industry_category_id"`
	Code           string     `db:"code"`
	Name           string     `db:"ch_name"`
	Industry       string     `db:"industry"`
	ChargeDept     string     `db:"charge_dept"`
	Status         string     `db:"status"`
	IssueDate      *time.Time `db:"issue_date"`
	ActDate        *time.Time `db:"act_date"`
	RecordDate     *time.Time `db:"record_date"`
	RecordNo       string     `db:"record_no"`
	ReviseStdCodes string     `db:"revise_std_codes"`
	Empty          *bool      `db:"empty"`
	OtherColumns   string     `db:"other_result_columns"`
	AbolishDate    *time.Time `db:"fz_date"`
}

// DetailInfo holds the fields only present on a standard's detail page.
// Nil means the field could not be recovered from the markup.
type DetailInfo struct {
	PK                          string  `db:"pk"`
	PublishDate                 *string `db:"publish_date"`
	ImplementDate               *string `db:"implement_date"`
	AbolishStatus               *string `db:"abolish_status"`
	StandardCode                *string `db:"standard_code"`
	RevisionType                *string `db:"revision_type"`
	ReplaceStandard             *string `db:"replace_standard"`
	ChinaClassification         *string `db:"china_classification"`
	InternationalClassification *string `db:"international_classification"`
	TechnicalCommittee          *string `db:"technical_committee"`
	ApprovalDepartment          *string `db:"approval_department"`
	IndustryClassification      *string `db:"industry_classification"`
	StandardCategory            *string `db:"standard_category"`
	RecordNumber                *string `db:"record_number"`
	RecordDate                  *string `db:"record_date"`
	RecordBulletin              *string `db:"record_bulletin"`
	Scope                       *string `db:"scope"`
	DraftingUnits               *string `db:"drafting_units"`
	DraftingPersons             *string `db:"drafting_persons"`
}
