package order

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"taskdesk/domain"
)

var ErrValidation = errors.New("表单校验失败")

const (
	MinParagraphRunes = 10
	MaxParagraphRunes = 2000
	MaxArticleBytes   = 20 << 20
)

// Fixed values the rewrite orders send for fields they do not ask about.
const (
	defaultField          = "未指定"
	defaultDataStatus     = "不需要"
	defaultCitationFormat = "不需要文献"
	defaultDeliveryType   = "论文"
)

var dataStatusText = map[string]string{
	"none":         "不需要",
	"need_no_data": "需要，但没数据",
	"in_files":     "数据在资料中",
}

var citationFormatText = map[string]string{
	"gbt":  "GBT7714",
	"apa":  "APA",
	"none": "不需要文献",
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

type ParagraphForm struct {
	Content string
}

// BuildParagraph validates a paragraph rewrite. Length counts characters, not bytes.
func BuildParagraph(f ParagraphForm) (domain.OrderRequest, error) {
	content := strings.TrimSpace(f.Content)
	n := utf8.RuneCountInString(content)
	switch {
	case content == "":
		return domain.OrderRequest{}, invalid("请输入待降重的段落内容")
	case n < MinParagraphRunes:
		return domain.OrderRequest{}, invalid("段落内容太短，建议至少10个字符")
	case n > MaxParagraphRunes:
		return domain.OrderRequest{}, invalid("段落内容过长，建议不超过2000个字符")
	}
	return domain.OrderRequest{
		Title:               "段落降重",
		Field:               defaultField,
		DataStatus:          defaultDataStatus,
		CitationFormat:      defaultCitationFormat,
		DeliveryTypes:       []string{defaultDeliveryType},
		WritingRequirements: "对段落进行降重处理",
		ParagraphContent:    content,
		OrderType:           domain.OrderTypeParagraphRewrite,
	}, nil
}

// LocalFile is a document picked from disk.
type LocalFile struct {
	Path string
	Name string
	Size int64
}

func statFiles(paths []string) ([]LocalFile, error) {
	out := make([]LocalFile, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			return nil, invalid(fmt.Sprintf("无法读取文件 %q", filepath.Base(p)))
		}
		if fi.IsDir() {
			return nil, invalid(fmt.Sprintf("%q 不是文件", filepath.Base(p)))
		}
		out = append(out, LocalFile{Path: p, Name: filepath.Base(p), Size: fi.Size()})
	}
	return out, nil
}

type ArticleForm struct {
	Files []string
}

// ValidateArticle checks the picked documents; at least one, each at most 20 MiB.
func ValidateArticle(f ArticleForm) ([]LocalFile, error) {
	files, err := statFiles(f.Files)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, invalid("请上传待降重的文档")
	}
	if big, ok := lo.Find(files, func(lf LocalFile) bool { return lf.Size > MaxArticleBytes }); ok {
		return nil, invalid(fmt.Sprintf("文件 \"%s\" 超过20MB限制", big.Name))
	}
	return files, nil
}

// BuildArticle turns validated files into the order body. paperURL is empty
// when no upload store is configured.
func BuildArticle(files []LocalFile, paperURL string, uploaded []domain.OrderFile) domain.OrderRequest {
	return domain.OrderRequest{
		Title:               "文章降重 - " + files[0].Name,
		Field:               defaultField,
		DataStatus:          defaultDataStatus,
		CitationFormat:      defaultCitationFormat,
		DeliveryTypes:       []string{defaultDeliveryType},
		WritingRequirements: "对上传的文章进行降重处理",
		Files:               uploaded,
		PaperURL:            &paperURL,
		OrderType:           domain.OrderTypeArticleRewrite,
	}
}

type EssayForm struct {
	Title               string
	Field               string
	TargetWords         int
	DataStatus          string
	CitationFormat      string
	DeliveryTypes       []string
	WritingRequirements string
	Files               []string
}

// ValidateEssay checks the essay form in page order and returns the request
// without file URLs, plus the optional attachments.
func ValidateEssay(f EssayForm) (domain.OrderRequest, []LocalFile, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return domain.OrderRequest{}, nil, invalid("请输入论文标题")
	}
	field := strings.TrimSpace(f.Field)
	if field == "" {
		return domain.OrderRequest{}, nil, invalid("请输入专业领域")
	}
	if f.TargetWords <= 0 {
		return domain.OrderRequest{}, nil, invalid("请输入有效的目标字数（大于0）")
	}
	delivery := lo.Uniq(lo.Compact(lo.Map(f.DeliveryTypes, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if len(delivery) == 0 {
		return domain.OrderRequest{}, nil, invalid("请至少选择一种交付文件类型")
	}
	req := strings.TrimSpace(f.WritingRequirements)
	if req == "" {
		return domain.OrderRequest{}, nil, invalid("请填写写作与特殊要求")
	}
	files, err := statFiles(f.Files)
	if err != nil {
		return domain.OrderRequest{}, nil, err
	}

	return domain.OrderRequest{
		Title:               title,
		Field:               field,
		TargetWords:         f.TargetWords,
		DataStatus:          mapOrKeep(dataStatusText, f.DataStatus),
		CitationFormat:      mapOrKeep(citationFormatText, f.CitationFormat),
		DeliveryTypes:       delivery,
		WritingRequirements: req,
		OrderType:           domain.OrderTypeEssayGeneration,
	}, files, nil
}

// mapOrKeep translates select values; unknown values pass through as typed
// and an empty value means "none".
func mapOrKeep(m map[string]string, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		v = "none"
	}
	if t, ok := m[v]; ok {
		return t
	}
	return v
}
