package document

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/docuhub/vector-go/internal/errors"
)

var validate = validator.New()

// Document 统一的已校验文档元数据视图
type Document interface {
	DocType() Type
	DocTitle() string
	// Fields 返回拍平后的front-matter字段，供chunk元数据使用
	Fields() map[string]interface{}
}

// baseDocument 所有文档类型共享的字段
type baseDocument struct {
	Type  Type   `yaml:"type" validate:"required"`
	Title string `yaml:"title" validate:"required"`

	raw map[string]interface{}
}

func (d *baseDocument) DocType() Type    { return d.Type }
func (d *baseDocument) DocTitle() string { return d.Title }

func (d *baseDocument) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(d.raw))
	for k, v := range d.raw {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// ExperienceDocument 工作经历文档
type ExperienceDocument struct {
	baseDocument `yaml:",inline"`
	Company      string   `yaml:"company" validate:"required"`
	DateStart    string   `yaml:"date_start" validate:"required"`
	DateEnd      string   `yaml:"date_end" validate:"required"`
	Skills       []string `yaml:"skills" validate:"required,min=1"`
	Industry     string   `yaml:"industry" validate:"required"`
	Location     string   `yaml:"location" validate:"required"`
}

// EducationDocument 教育经历文档
type EducationDocument struct {
	baseDocument   `yaml:",inline"`
	Institution    string   `yaml:"institution" validate:"required"`
	Degree         string   `yaml:"degree" validate:"required"`
	Field          string   `yaml:"field" validate:"required"`
	GraduationDate string   `yaml:"graduation_date" validate:"required"`
	Honors         []string `yaml:"honors"`
	KeyCourses     []string `yaml:"key_courses"`
}

// ProjectDocument 项目文档，子类型决定额外必填字段
type ProjectDocument struct {
	baseDocument `yaml:",inline"`
	SubType      ProjectSubtype `yaml:"sub_type" validate:"required"`
	DateStart    string         `yaml:"date_start" validate:"required"`
	DateEnd      string         `yaml:"date_end" validate:"required"`
	Organization string         `yaml:"organization" validate:"required"`
	ImpactScope  string         `yaml:"impact_scope" validate:"required"`

	TechStack      []string `yaml:"tech_stack"`
	Deployment     string   `yaml:"deployment"`
	Stakeholders   []string `yaml:"stakeholders"`
	ProcessType    []string `yaml:"process_type"`
	Metrics        []string `yaml:"metrics"`
	Supports       []string `yaml:"supports"`
	Demonstrates   []string `yaml:"demonstrates"`
	EvolutionStage string   `yaml:"evolution_stage"`
	Exemplifies    []string `yaml:"exemplifies"`
}

// validateSubtype 按子类型校验必填字段
func (d *ProjectDocument) validateSubtype() error {
	if _, err := ParseProjectSubtype(string(d.SubType)); err != nil {
		return err
	}
	missing := func(field string) error {
		return apperrors.NewValidationError(
			fmt.Sprintf("%s required for %s project", field, d.SubType))
	}
	switch d.SubType {
	case ProjectProduct:
		if len(d.TechStack) == 0 {
			return missing("tech_stack")
		}
		if d.Deployment == "" {
			return missing("deployment")
		}
	case ProjectProcess:
		if len(d.Stakeholders) == 0 || len(d.ProcessType) == 0 || len(d.Metrics) == 0 {
			return missing("stakeholders, process_type and metrics")
		}
	case ProjectInfrastructure:
		if len(d.TechStack) == 0 {
			return missing("tech_stack")
		}
		if len(d.Supports) == 0 {
			return missing("supports")
		}
	case ProjectSelfReferential:
		if len(d.Demonstrates) == 0 || d.EvolutionStage == "" || len(d.Exemplifies) == 0 {
			return missing("demonstrates, evolution_stage and exemplifies")
		}
	}
	return nil
}

// OtherDocument other类文档，子类型决定必填字段
type OtherDocument struct {
	baseDocument `yaml:",inline"`
	SubType      OtherSubtype `yaml:"sub_type" validate:"required"`

	// cover-letter
	Target                 string   `yaml:"target"`
	Role                   string   `yaml:"role"`
	DesiredCharacteristics []string `yaml:"desired_characteristics"`
	Highlights             []string `yaml:"highlights"`

	// publication-speaking
	Date   string   `yaml:"date"`
	Venue  string   `yaml:"venue"`
	Format string   `yaml:"format"`
	Topics []string `yaml:"topics"`

	// recommendation
	AuthorName           string   `yaml:"author_name"`
	StrengthsHighlighted []string `yaml:"strengths_highlighted"`

	// thought-leadership
	Domain        string   `yaml:"domain"`
	KeyPrinciples []string `yaml:"key_principles"`
	Applications  []string `yaml:"applications"`
}

func (d *OtherDocument) validateSubtype() error {
	if _, err := ParseOtherSubtype(string(d.SubType)); err != nil {
		return err
	}
	missing := func(field string) error {
		return apperrors.NewValidationError(
			fmt.Sprintf("%s required for %s document", field, d.SubType))
	}
	switch d.SubType {
	case OtherCoverLetter:
		if d.Target == "" || d.Role == "" {
			return missing("target and role")
		}
		if len(d.DesiredCharacteristics) == 0 || len(d.Highlights) == 0 {
			return missing("desired_characteristics and highlights")
		}
	case OtherPublicationSpeaking:
		if d.Date == "" || d.Venue == "" || d.Format == "" {
			return missing("date, venue and format")
		}
		if len(d.Topics) == 0 {
			return missing("topics")
		}
	case OtherRecommendation:
		if d.AuthorName == "" {
			return missing("author_name")
		}
		if len(d.StrengthsHighlighted) == 0 {
			return missing("strengths_highlighted")
		}
	case OtherThoughtLeadership:
		if d.Domain == "" {
			return missing("domain")
		}
		if len(d.KeyPrinciples) == 0 || len(d.Applications) == 0 {
			return missing("key_principles and applications")
		}
	}
	return nil
}

// NewDocument 根据front-matter构造并校验文档。
// type字段决定具体schema，未知类型或缺少必填字段时拒绝。
func NewDocument(frontMatter []byte) (Document, error) {
	var probe struct {
		Type string `yaml:"type"`
	}
	if err := yaml.Unmarshal(frontMatter, &probe); err != nil {
		return nil, apperrors.NewValidationErrorWithCode(
			apperrors.ErrCodeInvalidFrontMatter,
			fmt.Sprintf("invalid front matter: %v", err))
	}

	docType, err := ParseType(probe.Type)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(frontMatter, &raw); err != nil {
		return nil, apperrors.NewValidationErrorWithCode(
			apperrors.ErrCodeInvalidFrontMatter,
			fmt.Sprintf("invalid front matter: %v", err))
	}

	decode := func(dst interface{}) error {
		if err := yaml.Unmarshal(frontMatter, dst); err != nil {
			return apperrors.NewValidationErrorWithCode(
				apperrors.ErrCodeInvalidFrontMatter,
				fmt.Sprintf("invalid front matter: %v", err))
		}
		if err := validate.Struct(dst); err != nil {
			return apperrors.NewValidationError(
				fmt.Sprintf("front matter validation failed: %v", err))
		}
		return nil
	}

	switch docType {
	case TypeExperience:
		doc := &ExperienceDocument{}
		if err := decode(doc); err != nil {
			return nil, err
		}
		doc.raw = raw
		return doc, nil
	case TypeEducation:
		doc := &EducationDocument{}
		if err := decode(doc); err != nil {
			return nil, err
		}
		doc.raw = raw
		return doc, nil
	case TypeProject:
		doc := &ProjectDocument{}
		if err := decode(doc); err != nil {
			return nil, err
		}
		if err := doc.validateSubtype(); err != nil {
			return nil, err
		}
		doc.raw = raw
		return doc, nil
	case TypeOther:
		doc := &OtherDocument{}
		if err := decode(doc); err != nil {
			return nil, err
		}
		if err := doc.validateSubtype(); err != nil {
			return nil, err
		}
		doc.raw = raw
		return doc, nil
	}

	return nil, apperrors.NewValidationErrorWithCode(
		apperrors.ErrCodeUnknownDocumentType,
		fmt.Sprintf("unknown document type: %q", docType))
}
