package domain

import (
	"sort"
	"strings"
)

// Field: имя поля записи о возможности.
type Field string

const (
	FieldDeadline        Field = "deadline"
	FieldOrganization    Field = "organization"
	FieldEligibility     Field = "eligibility"
	FieldRole            Field = "role"
	FieldOpportunityType Field = "opportunity_type"
	FieldRoleField       Field = "role_field"
	FieldLocation        Field = "location"
	FieldWorkMode        Field = "work_mode"
	FieldDuration        Field = "duration"
	FieldTimeCommitment  Field = "time_commitment"
	FieldStipend         Field = "stipend"
	FieldRequiredSkills  Field = "required_skills"
	FieldDescription     Field = "description"
	FieldApplicationLink Field = "application_link"
)

// AllFields: фиксированный набор полей в порядке отображения.
var AllFields = []Field{
	FieldRole,
	FieldOrganization,
	FieldDeadline,
	FieldEligibility,
	FieldOpportunityType,
	FieldRoleField,
	FieldLocation,
	FieldWorkMode,
	FieldDuration,
	FieldTimeCommitment,
	FieldStipend,
	FieldRequiredSkills,
	FieldDescription,
	FieldApplicationLink,
}

// RequiredFields без которых запись не считается валидной.
var RequiredFields = []Field{FieldRole, FieldOrganization}

var fieldLabels = map[Field]string{
	FieldDeadline:        "Application Deadline",
	FieldOrganization:    "Institution/Company",
	FieldEligibility:     "Eligibility",
	FieldRole:            "Role Title",
	FieldOpportunityType: "Opportunity Type",
	FieldRoleField:       "Role Field",
	FieldLocation:        "Location",
	FieldWorkMode:        "Work Mode",
	FieldDuration:        "Duration",
	FieldTimeCommitment:  "Time Commitment",
	FieldStipend:         "Stipend Details",
	FieldRequiredSkills:  "Required Skills",
	FieldDescription:     "Job Description (JD)",
	FieldApplicationLink: "Application Link",
}

var fieldAliases = func() map[string]Field {
	m := make(map[string]Field, len(fieldLabels)*2+2)
	for f, label := range fieldLabels {
		m[normalizeKey(string(f))] = f
		m[normalizeKey(label)] = f
	}
	m[normalizeKey("Company/Institution")] = FieldOrganization
	m[normalizeKey("company")] = FieldOrganization
	m[normalizeKey("title")] = FieldRole
	return m
}()

// Label возвращает человекочитаемое название поля.
func (f Field) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

// Valid сообщает, входит ли поле в фиксированный набор.
func (f Field) Valid() bool {
	_, ok := fieldLabels[f]
	return ok
}

// ParseField распознаёт поле по ключу JSON или по подписи колонки.
func ParseField(key string) (Field, bool) {
	f, ok := fieldAliases[normalizeKey(key)]
	return f, ok
}

func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SortFields упорядочивает поля в каноническом порядке и убирает дубли.
func SortFields(fields []Field) []Field {
	order := make(map[Field]int, len(AllFields))
	for i, f := range AllFields {
		order[f] = i
	}
	seen := make(map[Field]struct{}, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// FieldView: поле записи с отметкой об изменении для отображения.
type FieldView struct {
	Field   Field  `json:"field"`
	Label   string `json:"label"`
	Value   string `json:"value"`
	Changed bool   `json:"changed"`
}

// Highlight строит представление записи, подсвечивая изменённые поля.
func Highlight(rec Record, changed []Field) []FieldView {
	set := make(map[Field]struct{}, len(changed))
	for _, f := range changed {
		set[f] = struct{}{}
	}
	views := make([]FieldView, 0, len(AllFields))
	for _, f := range AllFields {
		v, ok := rec.Value(f)
		if !ok {
			continue
		}
		_, isChanged := set[f]
		views = append(views, FieldView{Field: f, Label: f.Label(), Value: v, Changed: isChanged})
	}
	return views
}
