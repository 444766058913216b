package document

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuhub/vector-go/internal/errors"
)

func TestSplitFrontMatter(t *testing.T) {
	fm, body, err := SplitFrontMatter("---\ntitle: X\n---\nbody text")
	require.NoError(t, err)
	assert.Contains(t, string(fm), "title: X")
	assert.Equal(t, "body text", body)
}

func TestSplitFrontMatterMissingDelimiters(t *testing.T) {
	cases := []string{
		"no front matter",
		"---\nonly opened",
		"",
	}
	for _, content := range cases {
		_, _, err := SplitFrontMatter(content)
		assert.True(t, apperrors.IsValidation(err), "content %q", content)
	}
}

func TestParseInfersTypeFromParentDir(t *testing.T) {
	content := `---
title: Some Degree
institution: TU Berlin
degree: MSc
field: Computer Science
graduation_date: "2018-09"
---
Thesis on distributed systems.`

	doc, body, err := Parse(content, "/documents/education/degree.md")
	require.NoError(t, err)
	assert.Equal(t, TypeEducation, doc.DocType())
	assert.Equal(t, "Some Degree", doc.DocTitle())
	assert.Equal(t, "Thesis on distributed systems.", body)
}

func TestParseExplicitTypeWinsOverPath(t *testing.T) {
	content := `---
type: experience
title: Role
company: Acme
date_start: "2020-01"
date_end: "2021-01"
skills: [go]
industry: software
location: Berlin
---
body`

	doc, _, err := Parse(content, "/documents/education/role.md")
	require.NoError(t, err)
	assert.Equal(t, TypeExperience, doc.DocType())
}

func TestParseUnknownTypeRejected(t *testing.T) {
	content := "---\ntitle: X\n---\nbody"
	_, _, err := Parse(content, "/documents/recipes/cake.md")
	assert.True(t, apperrors.IsValidation(err))
}

func TestExperienceRequiredFields(t *testing.T) {
	fm := []byte(`
type: experience
title: Role
company: Acme
date_start: "2020-01"
skills: [go]
industry: software
location: Berlin
`)
	// 缺少date_end
	_, err := NewDocument(fm)
	assert.True(t, apperrors.IsValidation(err))
}

func TestProjectSubtypeFieldRequirements(t *testing.T) {
	base := `
type: project
title: Pipeline Revamp
sub_type: %s
date_start: "2022-01"
date_end: "2022-06"
organization: Acme
impact_scope: team
%s`

	cases := []struct {
		name    string
		subType string
		extra   string
		wantErr bool
	}{
		{"product complete", "product", "tech_stack: [go]\ndeployment: kubernetes", false},
		{"product missing deployment", "product", "tech_stack: [go]", true},
		{"process complete", "process", "stakeholders: [ops]\nprocess_type: [ci]\nmetrics: [lead-time]", false},
		{"process missing metrics", "process", "stakeholders: [ops]\nprocess_type: [ci]", true},
		{"infrastructure complete", "infrastructure", "tech_stack: [terraform]\nsupports: [search]", false},
		{"self referential complete", "self_referential", "demonstrates: [design]\nevolution_stage: v2\nexemplifies: [rigor]", false},
		{"unknown subtype", "research", "tech_stack: [go]", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fm := []byte(fmt.Sprintf(base, tc.subType, tc.extra))
			_, err := NewDocument(fm)
			if tc.wantErr {
				assert.True(t, apperrors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOtherSubtypeFieldRequirements(t *testing.T) {
	coverLetter := []byte(`
type: other
title: Letter
sub_type: cover-letter
target: Acme
role: Staff Engineer
desired_characteristics: [ownership]
highlights: [pipeline work]
`)
	_, err := NewDocument(coverLetter)
	assert.NoError(t, err)

	incomplete := []byte(`
type: other
title: Letter
sub_type: cover-letter
target: Acme
`)
	_, err = NewDocument(incomplete)
	assert.True(t, apperrors.IsValidation(err))
}

func TestValidateSubtypeApplicability(t *testing.T) {
	assert.NoError(t, ValidateSubtypeApplicability(TypeProject, "product", ""))
	assert.NoError(t, ValidateSubtypeApplicability(TypeOther, "", "recommendation"))
	assert.NoError(t, ValidateSubtypeApplicability(TypeExperience, "", ""))

	// 类型与子类型错配是调用方错误
	err := ValidateSubtypeApplicability(TypeOther, "product", "")
	assert.True(t, apperrors.IsValidation(err))
	err = ValidateSubtypeApplicability(TypeProject, "", "recommendation")
	assert.True(t, apperrors.IsValidation(err))
	err = ValidateSubtypeApplicability(TypeProject, "research", "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestFieldsDropsNilValues(t *testing.T) {
	fm := []byte(`
type: experience
title: Role
company: Acme
date_start: "2020-01"
date_end: "2021-01"
skills: [go]
industry: software
location: Berlin
notes:
`)
	doc, err := NewDocument(fm)
	require.NoError(t, err)

	fields := doc.Fields()
	assert.Equal(t, "Acme", fields["company"])
	_, hasNotes := fields["notes"]
	assert.False(t, hasNotes)
}
