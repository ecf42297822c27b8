package extract

import (
	"errors"
	"strings"
	"testing"

	"StandardsCrawler/internal/domain"
)

const detailPage = `
<html><body>
<div class="timeline">
  <ul class="events">
    <li><a>2023-01-05 发布</a></li>
    <li><a>2023-07-01 实施</a></li>
  </ul>
</div>
<div class="basicInfo-left">
  <dl>
    <dt class="name">标准号</dt><dd class="value">AQ 1001-2023</dd>
    <dt class="name">制修订</dt><dd class="value">修订</dd>
    <dt class="name">代替标准</dt><dd class="value">AQ 1001-2010</dd>
    <dt class="name">未知字段</dt><dd class="value">ignored</dd>
  </dl>
</div>
<div class="basicInfo-right">
  <dl>
    <dt class="name">中国标准分类号</dt><dd class="value">C68</dd>
    <dt class="name">国际标准分类号</dt><dd class="value">13.100</dd>
    <dt class="name">技术归口</dt><dd class="value">全国安全生产标准化技术委员会</dd>
    <dt class="name">批准发布部门</dt><dd class="value">应急管理部</dd>
    <dt class="name">行业分类</dt><dd class="value">安全生产</dd>
    <dt class="name">标准类别</dt><dd class="value">安全</dd>
    <dt class="name">实施日期</dt><dd class="value">2023-08-01</dd>
  </dl>
</div>
<div class="content">
  <div class="para-title">备案信息</div>
  <p>备案号：12345-2023</p>
  <p>备案日期：2023-02-10</p>
  <p>备案月报：<a href="/bulletin/2">2023年第2号</a></p>
  <div class="para-title">适用范围</div>
  <p>本标准规定了安全生产的基本要求。</p>
  <p>second paragraph is ignored</p>
  <div class="para-title">起草单位</div>
  <p>中国安全生产科学研究院</p>
  <div class="para-title">起草人</div>
  <p>张三、李四</p>
</div>
</body></html>`

func value(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestExtractFullPage(t *testing.T) {
	t.Parallel()

	info, err := ExtractHTML(strings.NewReader(detailPage), "P1")
	if err != nil {
		t.Fatalf("ExtractHTML error: %v", err)
	}

	checks := map[string]struct {
		got  *string
		want string
	}{
		"publish":       {info.PublishDate, "2023-01-05"},
		"implement":     {info.ImplementDate, "2023-08-01"},
		"code":          {info.StandardCode, "AQ 1001-2023"},
		"revision":      {info.RevisionType, "修订"},
		"replaced":      {info.ReplaceStandard, "AQ 1001-2010"},
		"china":         {info.ChinaClassification, "C68"},
		"international": {info.InternationalClassification, "13.100"},
		"committee":     {info.TechnicalCommittee, "全国安全生产标准化技术委员会"},
		"approval":      {info.ApprovalDepartment, "应急管理部"},
		"industry":      {info.IndustryClassification, "安全生产"},
		"category":      {info.StandardCategory, "安全"},
		"recordNumber":  {info.RecordNumber, "12345-2023"},
		"recordDate":    {info.RecordDate, "2023-02-10"},
		"bulletin":      {info.RecordBulletin, "2023年第2号"},
		"scope":         {info.Scope, "本标准规定了安全生产的基本要求。"},
		"units":         {info.DraftingUnits, "中国安全生产科学研究院"},
		"persons":       {info.DraftingPersons, "张三、李四"},
	}

	for name, c := range checks {
		if value(c.got) != c.want {
			t.Errorf("%s: expected %q, got %q", name, c.want, value(c.got))
		}
	}

	if info.PK != "P1" {
		t.Fatalf("unexpected pk: %s", info.PK)
	}
	if info.AbolishStatus != nil {
		t.Fatalf("expected no abolish status, got %q", *info.AbolishStatus)
	}
}

func TestExtractMissingSectionsLeaveFieldsNil(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<div class="timeline"><ul class="events"><li><a>2020-01-01 废止</a></li></ul></div>
	<div class="basicInfo-left"><dl><dt class="name">标准号</dt><dd class="value">  </dd></dl></div>
	<div class="para-title">起草单位</div><p>&nbsp;</p>
	</body></html>`

	info, err := ExtractHTML(strings.NewReader(html), "P2")
	if err != nil {
		t.Fatalf("ExtractHTML error: %v", err)
	}

	if value(info.AbolishStatus) != "已废止" {
		t.Fatalf("expected abolished status, got %q", value(info.AbolishStatus))
	}
	for name, field := range map[string]*string{
		"code":     info.StandardCode,
		"scope":    info.Scope,
		"units":    info.DraftingUnits,
		"persons":  info.DraftingPersons,
		"record":   info.RecordNumber,
		"bulletin": info.RecordBulletin,
	} {
		if field != nil {
			t.Errorf("%s: expected nil, got %q", name, *field)
		}
	}
}

func TestExtractFilingStopsAtNextSection(t *testing.T) {
	t.Parallel()

	html := `<div>
	<div class="para-title">备案信息</div>
	<p>备案日期: 2021-03-03</p>
	<p>备案月报：2021年第3号</p>
	<div class="para-title">适用范围</div>
	<p>备案号：should-not-be-read</p>
	</div>`

	info, err := ExtractHTML(strings.NewReader(html), "P3")
	if err != nil {
		t.Fatalf("ExtractHTML error: %v", err)
	}

	if info.RecordNumber != nil {
		t.Fatalf("record number leaked from next section: %q", *info.RecordNumber)
	}
	if value(info.RecordDate) != "2021-03-03" {
		t.Fatalf("unexpected record date: %q", value(info.RecordDate))
	}
	if value(info.RecordBulletin) != "2021年第3号" {
		t.Fatalf("unexpected bulletin: %q", value(info.RecordBulletin))
	}
	if value(info.Scope) != "备案号：should-not-be-read" {
		t.Fatalf("unexpected scope: %q", value(info.Scope))
	}
}

func TestExtractNilRoot(t *testing.T) {
	t.Parallel()

	info := Extract(nil, "P4")
	if info != (domain.DetailInfo{PK: "P4"}) {
		t.Fatalf("expected empty detail info, got %+v", info)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestExtractHTMLReportsParseError(t *testing.T) {
	t.Parallel()

	_, err := ExtractHTML(failingReader{}, "P5")
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestFollowingUntil(t *testing.T) {
	t.Parallel()

	root, err := Parse(strings.NewReader(`<div><h2 id="a">A</h2><p>1</p><p>2</p><h2>B</h2><p>3</p></div>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	start := FindFirst(root, All(TagIs("h2"), TextContains("A")))
	if start == nil || start.Tag() != "h2" {
		t.Fatalf("expected h2 start, got %v", start)
	}

	got := FollowingUntil(start, TagIs("h2"))
	if len(got) != 2 || got[0].Text() != "1" || got[1].Text() != "2" {
		t.Fatalf("unexpected siblings: %d", len(got))
	}
}
