package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// sqlDialect 屏蔽 sqlite 与 postgres 在 JSON 数组和模糊查询上的差异
type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func dialectOf(db *gorm.DB) sqlDialect {
	if db == nil || db.Dialector == nil {
		return dialectSQLite
	}
	return parseDialect(db.Dialector.Name())
}

func parseDialect(name string) sqlDialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql":
		return dialectPostgres
	default:
		return dialectSQLite
	}
}

// jsonArrayContains JSON 字符串数组列包含占位参数的值
func (d sqlDialect) jsonArrayContains(column string) string {
	if d == dialectPostgres {
		return fmt.Sprintf("(%s::jsonb @> jsonb_build_array(CAST(? AS text)))", column)
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", column)
}

// text JSON 列按文本参与 LIKE
func (d sqlDialect) text(column string) string {
	if d == dialectPostgres {
		return column + "::text"
	}
	return column
}

// likeAny 任一列忽略大小写包含关键字；关键字中的通配符按字面匹配
func (d sqlDialect) likeAny(keyword string, columns ...string) (string, []interface{}) {
	operator := "LIKE"
	if d == dialectPostgres {
		operator = "ILIKE"
	}
	pattern := "%" + likeEscaper.Replace(keyword) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		column = strings.TrimSpace(column)
		if column == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(`%s %s ? ESCAPE '\'`, column, operator))
		args = append(args, pattern)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
