package types

import (
	"encoding/json"
	"strconv"
	"strings"

	"talent-copilot/internal/constants"
)

// Education 教育经历
type Education struct {
	Degree    string `json:"Degree"`
	Institute string `json:"Institute"`
	Year      string `json:"Year"`
}

// WorkExperience 工作经历。Duration 缺失时为 constants.DefaultDuration
type WorkExperience struct {
	Company      string `json:"Company"`
	Role         string `json:"Role"`
	Duration     string `json:"Duration"`
	Technologies string `json:"Technologies used"`
}

// Project 项目经历
type Project struct {
	Name         string `json:"Project Name"`
	Description  string `json:"Description"`
	Technologies string `json:"Technologies used"`
}

// ResumeRecord 模型抽取出的简历字段。
// 类型化字段只是对 Raw 的尽力解读，字段缺失或类型不符时留空；
// 序列化时原样输出 Raw，未知字段也能展示给用户
type ResumeRecord struct {
	FullName       string
	Email          string
	Phone          string
	JobRole        string
	Education      []Education
	WorkExperience []WorkExperience
	Skills         []string
	Certifications []string
	Projects       []Project

	Raw map[string]any
}

// NewResumeRecord 从解码后的 JSON 对象构造简历记录
func NewResumeRecord(raw map[string]any) *ResumeRecord {
	if raw == nil {
		raw = map[string]any{}
	}
	r := &ResumeRecord{Raw: raw}

	r.FullName = Stringify(lookup(raw, "Full Name", "Name"))

	if contact, ok := lookup(raw, "Contact Information", "Contact").(map[string]any); ok {
		r.Email = Stringify(lookup(contact, "Email"))
		r.Phone = Stringify(lookup(contact, "Phone"))
	}
	if r.Email == "" {
		r.Email = Stringify(lookup(raw, "Email"))
	}
	if r.Phone == "" {
		r.Phone = Stringify(lookup(raw, "Phone"))
	}

	r.JobRole = Stringify(lookup(raw, "Job Description", "Job Role"))

	for _, item := range objects(lookup(raw, "Education")) {
		r.Education = append(r.Education, Education{
			Degree:    Stringify(lookup(item, "Degree")),
			Institute: Stringify(lookup(item, "Institute", "University", "College", "School")),
			Year:      Stringify(lookup(item, "Year")),
		})
	}

	for _, item := range objects(lookup(raw, "Work Experience", "Experience")) {
		exp := WorkExperience{
			Company:      Stringify(lookup(item, "Company")),
			Role:         Stringify(lookup(item, "Role")),
			Duration:     constants.DefaultDuration,
			Technologies: Stringify(lookup(item, "Technologies used")),
		}
		if d := lookup(item, "Duration"); d != nil {
			exp.Duration = Stringify(d)
		}
		r.WorkExperience = append(r.WorkExperience, exp)
	}

	r.Skills = stringList(lookup(raw, "Skills"))
	r.Certifications = stringList(lookup(raw, "Certifications"))

	for _, item := range objects(lookup(raw, "Projects")) {
		r.Projects = append(r.Projects, Project{
			Name:         Stringify(lookup(item, "Project Name", "Name")),
			Description:  Stringify(lookup(item, "Description")),
			Technologies: Stringify(lookup(item, "Technologies used")),
		})
	}
	return r
}

// MarshalJSON 输出模型返回的原始对象
func (r ResumeRecord) MarshalJSON() ([]byte, error) {
	if r.Raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Raw)
}

// UnmarshalJSON 解码原始对象后重建类型化字段
func (r *ResumeRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = *NewResumeRecord(raw)
	return nil
}

// lookup 按顺序尝试多个键名，忽略大小写、空格和下划线的差异
func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	for _, k := range keys {
		want := normalizeKey(k)
		for mk, v := range m {
			if normalizeKey(mk) == want {
				return v
			}
		}
	}
	return nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
}

// objects 把单个对象或对象数组统一为切片，其他类型忽略
func objects(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// stringList 接受数组或逗号分隔字符串
func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := strings.TrimSpace(Stringify(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	case nil:
	default:
		if s := Stringify(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Stringify 把任意 JSON 值转为展示用字符串，数组以 ", " 连接
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
