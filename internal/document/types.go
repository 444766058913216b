package document

import (
	"fmt"

	apperrors "github.com/docuhub/vector-go/internal/errors"
)

// Type 文档主类型，取值范围固定
type Type string

const (
	TypeExperience Type = "experience"
	TypeEducation  Type = "education"
	TypeProject    Type = "project"
	TypeOther      Type = "other"
)

// ProjectSubtype 项目文档子类型
type ProjectSubtype string

const (
	ProjectProduct         ProjectSubtype = "product"
	ProjectProcess         ProjectSubtype = "process"
	ProjectInfrastructure  ProjectSubtype = "infrastructure"
	ProjectSelfReferential ProjectSubtype = "self_referential"
)

// OtherSubtype other文档子类型
type OtherSubtype string

const (
	OtherCoverLetter         OtherSubtype = "cover-letter"
	OtherPublicationSpeaking OtherSubtype = "publication-speaking"
	OtherRecommendation      OtherSubtype = "recommendation"
	OtherThoughtLeadership   OtherSubtype = "thought-leadership"
)

// ParseType 解析文档类型，未知类型返回验证错误
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeExperience, TypeEducation, TypeProject, TypeOther:
		return Type(s), nil
	}
	return "", apperrors.NewValidationErrorWithCode(
		apperrors.ErrCodeUnknownDocumentType,
		fmt.Sprintf("unknown document type: %q", s),
	)
}

// ParseProjectSubtype 解析项目子类型
func ParseProjectSubtype(s string) (ProjectSubtype, error) {
	switch ProjectSubtype(s) {
	case ProjectProduct, ProjectProcess, ProjectInfrastructure, ProjectSelfReferential:
		return ProjectSubtype(s), nil
	}
	return "", apperrors.NewValidationErrorWithCode(
		apperrors.ErrCodeUnknownDocumentType,
		fmt.Sprintf("unknown project subtype: %q", s),
	)
}

// ParseOtherSubtype 解析other子类型
func ParseOtherSubtype(s string) (OtherSubtype, error) {
	switch OtherSubtype(s) {
	case OtherCoverLetter, OtherPublicationSpeaking, OtherRecommendation, OtherThoughtLeadership:
		return OtherSubtype(s), nil
	}
	return "", apperrors.NewValidationErrorWithCode(
		apperrors.ErrCodeUnknownDocumentType,
		fmt.Sprintf("unknown other subtype: %q", s),
	)
}

// ValidateSubtypeApplicability 校验类型与子类型的组合是否合法。
// project文档不允许携带other子类型，other文档不允许携带project子类型。
func ValidateSubtypeApplicability(docType Type, projectSubtype, otherSubtype string) error {
	if projectSubtype != "" && docType != TypeProject {
		return apperrors.NewValidationError(
			fmt.Sprintf("project_subtype is not applicable for %q documents", docType))
	}
	if otherSubtype != "" && docType != TypeOther {
		return apperrors.NewValidationError(
			fmt.Sprintf("other_subtype is not applicable for %q documents", docType))
	}
	if projectSubtype != "" {
		if _, err := ParseProjectSubtype(projectSubtype); err != nil {
			return err
		}
	}
	if otherSubtype != "" {
		if _, err := ParseOtherSubtype(otherSubtype); err != nil {
			return err
		}
	}
	return nil
}
