package rulefile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/storefront"

	"gopkg.in/yaml.v3"
)

// EmbeddedSelector 页面内嵌规则块
const EmbeddedSelector = `script#cp-pricing-rules`

// ErrNoRules 页面未内嵌规则
var ErrNoRules = errors.New("no embedded pricing rules")

// document 文件格式：顶层为规则列表，或包含 rules 字段的对象
type document struct {
	Rules []pricing.Rule `yaml:"rules" json:"rules"`
}

// Parse 解析 YAML 或 JSON 规则列表，保留原有顺序
// 缺少 id 的规则按位置补齐（从 1 开始）。
func Parse(data []byte) ([]pricing.Rule, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []pricing.Rule{}, nil
	}
	var rules []pricing.Rule
	if data[0] == '[' || data[0] == '-' {
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("parse rule list: %w", err)
		}
	} else {
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse rule document: %w", err)
		}
		rules = doc.Rules
	}
	if rules == nil {
		rules = []pricing.Rule{}
	}
	for i := range rules {
		if strings.TrimSpace(rules[i].ID) == "" {
			rules[i].ID = strconv.Itoa(i + 1)
		}
	}
	if err := pricing.ValidateAll(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Load 读取规则文件
func Load(path string) ([]pricing.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return rules, nil
}

// Marshal 以 YAML 输出规则列表
func Marshal(rules []pricing.Rule) ([]byte, error) {
	return yaml.Marshal(document{Rules: rules})
}

// FromPage 读取页面内嵌的 JSON 规则；未内嵌时返回 ErrNoRules
func FromPage(page *storefront.Page) ([]pricing.Rule, error) {
	raw := strings.TrimSpace(page.Find(EmbeddedSelector).First().Text())
	if raw == "" {
		return nil, ErrNoRules
	}
	var rules []pricing.Rule
	if strings.HasPrefix(raw, "{") {
		var doc document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("parse embedded rules: %w", err)
		}
		rules = doc.Rules
	} else if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("parse embedded rules: %w", err)
	}
	if err := pricing.ValidateAll(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// FileSource 以文件作为规则来源，每次读取都重新加载
type FileSource struct {
	path string
}

// NewFileSource 创建文件规则来源
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path 文件路径
func (s *FileSource) Path() string {
	return s.path
}

// Rules 读取规则
func (s *FileSource) Rules(ctx context.Context) ([]pricing.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(s.path)
}
