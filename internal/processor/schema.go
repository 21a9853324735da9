package processor

import (
	"bytes"
	"encoding/json"
)

// Column 表中的一列，Description 是给模型看的非正式说明
type Column struct {
	Name        string
	Description string
}

// Table 表名和有序的列
type Table struct {
	Name    string
	Columns []Column
}

// SchemaDescriptor 提供给模型的表结构描述，不与真实数据库做校验
type SchemaDescriptor []Table

// MarshalJSON 按声明顺序输出 {"表": {"列": "说明"}}
func (s SchemaDescriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, t.Name); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, c.Name); err != nil {
				return nil, err
			}
			v, err := json.Marshal(c.Description)
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

// Indented 4 空格缩进的 JSON，直接放进提示词
func (s SchemaDescriptor) Indented() (string, error) {
	compact, err := s.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "    "); err != nil {
		return "", err
	}
	return out.String(), nil
}

const foreignKeyPersonal = "foreign key referencing personal_details(id)"

// CandidateSchema 简历库的四张表
var CandidateSchema = SchemaDescriptor{
	{
		Name: "education",
		Columns: []Column{
			{"id", "primary key"},
			{"personal_id", foreignKeyPersonal},
			{"Degree", "text"},
			{"Institute", "text"},
			{"Year", "text"},
		},
	},
	{
		Name: "personal_details",
		Columns: []Column{
			{"id", "primary key"},
			{"Full Name", "text"},
			{"Email", "text"},
			{"Phone", "BigInt"},
			{"Job Role", "text"},
			{"Skills", "text"},
		},
	},
	{
		Name: "projects",
		Columns: []Column{
			{"id", "primary key"},
			{"personal_id", foreignKeyPersonal},
			{"Project Name", "text"},
			{"Description", "text"},
			{"Technologies used", "text"},
		},
	},
	{
		Name: "work_experience",
		Columns: []Column{
			{"id", "primary key"},
			{"personal_id", foreignKeyPersonal},
			{"Company", "text"},
			{"Role", "text"},
			{"Duration", "text"},
			{"Technologies used", "text"},
		},
	},
}
