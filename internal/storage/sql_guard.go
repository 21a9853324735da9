package storage

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrEmptyQuery 模型返回了空的 SQL
	ErrEmptyQuery = errors.New("empty SQL query")
	// ErrStatementNotAllowed 只读模式下拒绝执行的语句
	ErrStatementNotAllowed = errors.New("statement not allowed in read-only mode")
)

// forbiddenKeywords 只读模式下不允许出现在语句中的关键字（字符串和注释内除外）
var forbiddenKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "MERGE": {}, "UPSERT": {},
	"DROP": {}, "CREATE": {}, "ALTER": {}, "TRUNCATE": {}, "RENAME": {},
	"GRANT": {}, "REVOKE": {}, "COPY": {}, "CALL": {}, "EXEC": {}, "EXECUTE": {},
	"LOCK": {}, "VACUUM": {}, "INTO": {}, "SET": {}, "ATTACH": {}, "DETACH": {},
}

// sqlToken 词法扫描结果，只保留关键字和分号
type sqlToken struct {
	text string
	pos  int
}

// GuardReadOnly 检查 SQL 是否为单条 SELECT/WITH 语句，返回去掉结尾分号的语句。
// 扫描时跳过注释、字符串和带引号的标识符
func GuardReadOnly(query string) (string, error) {
	tokens, err := scanSQL(query)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", ErrEmptyQuery
	}

	// 结尾的分号可以有多个，中间的分号意味着多条语句
	end := len(query)
	for len(tokens) > 0 && tokens[len(tokens)-1].text == ";" {
		end = tokens[len(tokens)-1].pos
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return "", ErrEmptyQuery
	}
	for _, tok := range tokens {
		if tok.text == ";" {
			return "", fmt.Errorf("%w: multiple statements", ErrStatementNotAllowed)
		}
	}

	first := tokens[0].text
	if first != "SELECT" && first != "WITH" {
		return "", fmt.Errorf("%w: only SELECT or WITH queries are allowed, got %s", ErrStatementNotAllowed, first)
	}
	for _, tok := range tokens {
		if _, bad := forbiddenKeywords[tok.text]; bad {
			return "", fmt.Errorf("%w: keyword %s", ErrStatementNotAllowed, tok.text)
		}
	}

	return strings.TrimSpace(query[:end]), nil
}

// scanSQL 返回注释和字面量之外的单词（大写）与分号
func scanSQL(q string) ([]sqlToken, error) {
	var tokens []sqlToken
	n := len(q)
	for i := 0; i < n; {
		c := q[i]
		switch {
		case c == '-' && i+1 < n && q[i+1] == '-':
			for i < n && q[i] != '\n' {
				i++
			}
		case c == '#':
			// MySQL 行注释
			for i < n && q[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && q[i+1] == '*':
			closeIdx := strings.Index(q[i+2:], "*/")
			if closeIdx == -1 {
				return nil, fmt.Errorf("%w: unterminated comment", ErrStatementNotAllowed)
			}
			i += 2 + closeIdx + 2
		case c == '\'' || c == '"' || c == '`':
			j, err := skipQuoted(q, i, c)
			if err != nil {
				return nil, err
			}
			i = j
		case c == '$':
			j, ok := skipDollarQuoted(q, i)
			if !ok {
				i++
				continue
			}
			if j == -1 {
				return nil, fmt.Errorf("%w: unterminated dollar-quoted string", ErrStatementNotAllowed)
			}
			i = j
		case c == ';':
			tokens = append(tokens, sqlToken{text: ";", pos: i})
			i++
		case isWordStart(c):
			start := i
			for i < n && isWordPart(q[i]) {
				i++
			}
			tokens = append(tokens, sqlToken{text: strings.ToUpper(q[start:i]), pos: start})
		default:
			i++
		}
	}
	return tokens, nil
}

// skipQuoted 跳过引号包围的内容，两个连续引号和反斜杠都视为转义
func skipQuoted(q string, start int, quote byte) (int, error) {
	for i := start + 1; i < len(q); i++ {
		switch q[i] {
		case '\\':
			if quote == '\'' {
				i++
			}
		case quote:
			if i+1 < len(q) && q[i+1] == quote {
				i++
				continue
			}
			return i + 1, nil
		}
	}
	return -1, fmt.Errorf("%w: unterminated quoted string", ErrStatementNotAllowed)
}

// skipDollarQuoted 处理 PostgreSQL 的 $tag$...$tag$。
// ok 为 false 表示这里不是美元引号（例如 $1 参数）
func skipDollarQuoted(q string, start int) (next int, ok bool) {
	j := start + 1
	for j < len(q) && isTagChar(q[j]) {
		j++
	}
	if j >= len(q) || q[j] != '$' {
		return 0, false
	}
	if j > start+1 && q[start+1] >= '0' && q[start+1] <= '9' {
		return 0, false
	}
	tag := q[start : j+1]
	closeIdx := strings.Index(q[j+1:], tag)
	if closeIdx == -1 {
		return -1, true
	}
	return j + 1 + closeIdx + len(tag), true
}

func isTagChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

func isWordStart(c byte) bool {
	return c == '_' || c >= 0x80 || unicode.IsLetter(rune(c))
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}
