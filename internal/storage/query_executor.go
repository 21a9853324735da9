package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"talent-copilot/internal/config"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ErrDatabaseNotConfigured 没有配置数据库时 SQL 助手不可用
var ErrDatabaseNotConfigured = errors.New("database not configured")

// ResultSet 查询结果
type ResultSet struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// QueryExecutor 执行模型生成的 SQL
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*ResultSet, error)
}

// SQLExecutor 基于 gorm 的执行器。read_only 模式下先过词法检查，再放进只读事务执行
type SQLExecutor struct {
	db      *gorm.DB
	mode    string
	maxRows int
}

// NewSQLExecutor 创建执行器
func NewSQLExecutor(db *Database, cfg config.SQLConfig) *SQLExecutor {
	mode := cfg.ExecutionMode
	if mode == "" {
		mode = config.ExecutionModeReadOnly
	}
	if mode == config.ExecutionModeDirect {
		logger.Warn().Msg("SQL 执行模式为 direct：模型生成的语句将以数据库账号的全部权限原样执行")
	}
	return &SQLExecutor{db: db.DB(), mode: mode, maxRows: cfg.MaxRows}
}

// Mode 当前执行模式
func (e *SQLExecutor) Mode() string {
	return e.mode
}

// Execute 执行查询并读取全部结果行，连接在返回前释放
func (e *SQLExecutor) Execute(ctx context.Context, query string) (*ResultSet, error) {
	ctx, span := tracing.Tracer("storage").Start(ctx, "sql.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.statement", tracing.SafeSQL(query)),
		attribute.String("sql.execution_mode", e.mode),
	)

	stmt := strings.TrimSpace(query)
	if stmt == "" {
		tracing.RecordError(span, ErrEmptyQuery, tracing.ErrorTypeValidation)
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	var rs *ResultSet
	var err error

	if e.mode == config.ExecutionModeDirect {
		rs, err = e.run(ctx, e.db, stmt)
	} else {
		stmt, err = GuardReadOnly(stmt)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			logger.Ctx(ctx).Warn().Err(err).Str("sql", tracing.SafeSQL(query)).Msg("SQL 被只读检查拒绝")
			return nil, err
		}
		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			rs, txErr = e.run(ctx, tx, stmt)
			return txErr
		}, &sql.TxOptions{ReadOnly: true})
	}

	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		logger.Ctx(ctx).Error().Err(err).Str("sql", tracing.SafeSQL(stmt)).Msg("SQL 执行失败")
		return nil, err
	}

	span.SetAttributes(attribute.Int("db.rows", len(rs.Rows)))
	logger.Ctx(ctx).Info().
		Int("rows", len(rs.Rows)).
		Int("columns", len(rs.Columns)).
		Bool("truncated", rs.Truncated).
		Dur("elapsed", time.Since(start)).
		Msg("SQL 执行完成")
	return rs, nil
}

func (e *SQLExecutor) run(ctx context.Context, db *gorm.DB, stmt string) (*ResultSet, error) {
	rows, err := db.WithContext(ctx).Raw(stmt).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows, e.maxRows)
}

// RowScanner 是 *sql.Rows 中读取结果需要的部分
type RowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ScanRows 读取所有行，maxRows 大于 0 时超过部分丢弃并标记 Truncated
func ScanRows(rows RowScanner, maxRows int) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("读取列名失败: %w", err)
	}

	rs := &ResultSet{Columns: cols, Rows: make([][]any, 0)}
	for rows.Next() {
		if maxRows > 0 && len(rs.Rows) >= maxRows {
			rs.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("读取结果行失败: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// normalizeValue 驱动返回的 []byte 转为字符串，便于 JSON 展示
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}
