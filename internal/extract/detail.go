// Package extract recovers standard detail fields from loosely structured registry markup.
//
// Every rule is independent: a missing block, an unknown label or an empty
// paragraph leaves the corresponding field nil and never fails the whole page.
package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"StandardsCrawler/internal/domain"
)

const (
	sectionFiling          = "备案信息"
	sectionScope           = "适用范围"
	sectionDraftingUnits   = "起草单位"
	sectionDraftingPersons = "起草人"

	abolishedStatus = "已废止"
)

var isoDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

type fieldRef func(*domain.DetailInfo) **string

// basicInfoLabels maps the two-column info block labels to DetailInfo fields.
var basicInfoLabels = map[string]fieldRef{
	"标准号":     func(d *domain.DetailInfo) **string { return &d.StandardCode },
	"发布日期":    func(d *domain.DetailInfo) **string { return &d.PublishDate },
	"实施日期":    func(d *domain.DetailInfo) **string { return &d.ImplementDate },
	"制修订":     func(d *domain.DetailInfo) **string { return &d.RevisionType },
	"代替标准":    func(d *domain.DetailInfo) **string { return &d.ReplaceStandard },
	"中国标准分类号": func(d *domain.DetailInfo) **string { return &d.ChinaClassification },
	"国际标准分类号": func(d *domain.DetailInfo) **string { return &d.InternationalClassification },
	"技术归口":    func(d *domain.DetailInfo) **string { return &d.TechnicalCommittee },
	"批准发布部门":  func(d *domain.DetailInfo) **string { return &d.ApprovalDepartment },
	"行业分类":    func(d *domain.DetailInfo) **string { return &d.IndustryClassification },
	"标准类别":    func(d *domain.DetailInfo) **string { return &d.StandardCategory },
}

// filingPrefixes maps line prefixes inside the filing section to fields.
// The bulletin line is handled separately because it prefers link text.
var filingPrefixes = []struct {
	prefix string
	field  fieldRef
}{
	{"备案号", func(d *domain.DetailInfo) **string { return &d.RecordNumber }},
	{"备案日期", func(d *domain.DetailInfo) **string { return &d.RecordDate }},
}

const bulletinPrefix = "备案月报"

var isSectionMarker = All(TagIs("div"), HasClass("para-title"))

// ExtractHTML parses r and extracts the detail fields for pk.
func ExtractHTML(r io.Reader, pk string) (domain.DetailInfo, error) {
	root, err := Parse(r)
	if err != nil {
		return domain.DetailInfo{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return Extract(root, pk), nil
}

// Extract pulls every recognizable field out of the detail page rooted at root.
func Extract(root Node, pk string) domain.DetailInfo {
	info := domain.DetailInfo{PK: pk}
	if root == nil {
		return info
	}

	extractTimeline(root, &info)
	extractBasicInfo(root, &info)
	extractFiling(root, &info)

	info.Scope = firstParagraph(root, sectionScope)
	info.DraftingUnits = firstParagraph(root, sectionDraftingUnits)
	info.DraftingPersons = firstParagraph(root, sectionDraftingPersons)

	return info
}

// extractTimeline reads the dated events strip; basic info may later override the dates.
func extractTimeline(root Node, info *domain.DetailInfo) {
	for _, timeline := range FindAll(root, HasClass("timeline")) {
		for _, events := range FindAll(timeline, HasClass("events")) {
			for _, item := range FindAll(events, TagIs("li")) {
				for _, link := range FindAll(item, TagIs("a")) {
					text := link.Text()
					switch {
					case strings.Contains(text, "发布"):
						info.PublishDate = optional(extractDate(text))
					case strings.Contains(text, "实施"):
						info.ImplementDate = optional(extractDate(text))
					case strings.Contains(text, "废止"):
						info.AbolishStatus = optional(abolishedStatus)
					}
				}
			}
		}
	}
}

func extractBasicInfo(root Node, info *domain.DetailInfo) {
	for _, class := range []string{"basicInfo-left", "basicInfo-right"} {
		for _, block := range FindAll(root, HasClass(class)) {
			for _, label := range FindAll(block, HasClass("name")) {
				value := label.NextSibling()
				if value == nil || !value.HasClass("value") {
					continue
				}
				ref, ok := basicInfoLabels[label.Text()]
				if !ok {
					continue
				}
				if v := optional(value.Text()); v != nil {
					*ref(info) = v
				}
			}
		}
	}
}

func extractFiling(root Node, info *domain.DetailInfo) {
	for _, p := range sectionParagraphs(root, sectionFiling) {
		text := p.Text()

		if rest, ok := cutLabel(text, bulletinPrefix); ok {
			if link := FindFirst(p, TagIs("a")); link != nil {
				if v := optional(link.Text()); v != nil {
					info.RecordBulletin = v
					continue
				}
			}
			info.RecordBulletin = optional(rest)
			continue
		}

		for _, f := range filingPrefixes {
			if rest, ok := cutLabel(text, f.prefix); ok {
				*f.field(info) = optional(rest)
				break
			}
		}
	}
}

// sectionParagraphs walks forward from the section heading titled title,
// collecting <p> siblings until the next heading.
func sectionParagraphs(root Node, title string) []Node {
	heading := FindFirst(root, All(isSectionMarker, TextContains(title)))
	if heading == nil {
		return nil
	}

	var paragraphs []Node
	for _, n := range FollowingUntil(heading, isSectionMarker) {
		if TagIs("p")(n) {
			paragraphs = append(paragraphs, n)
		}
	}
	return paragraphs
}

func firstParagraph(root Node, title string) *string {
	paragraphs := sectionParagraphs(root, title)
	if len(paragraphs) == 0 {
		return nil
	}
	return optional(paragraphs[0].Text())
}

// cutLabel strips "label：" or "label:" from the start of text.
func cutLabel(text, label string) (string, bool) {
	rest, ok := strings.CutPrefix(text, label)
	if !ok {
		return "", false
	}
	for _, sep := range []string{"：", ":"} {
		if after, found := strings.CutPrefix(rest, sep); found {
			return strings.TrimSpace(after), true
		}
	}
	return "", false
}

func extractDate(text string) string {
	if match := isoDate.FindString(text); match != "" {
		return match
	}
	return text
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
