package exit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"optiontrader/internal/config"
	"optiontrader/internal/logger"
)

const (
	RuleProfitAbovePct = "profit_above_pct"
	RuleLossBelowPct   = "loss_below_pct"
)

// Factory 根据已校验的参数构造规则。
type Factory func(params map[string]any) (Rule, error)

// Template 描述一种可配置的退出规则。
type Template struct {
	ID          string
	Description string
	Schema      map[string]any
	Factory     Factory

	schemaCompiled *jsonschema.Schema
}

// Validate 用模板的 JSON Schema 校验参数。
func (t Template) Validate(params map[string]any) error {
	if t.schemaCompiled == nil {
		return nil
	}
	return t.schemaCompiled.Validate(params)
}

// Registry 管理退出规则模板。
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// DefaultRegistry 注册内置的止盈、止损规则。
func DefaultRegistry() *Registry {
	r := NewRegistry()
	pctSchema := map[string]any{
		"type":     "object",
		"required": []any{"pct"},
		"properties": map[string]any{
			"pct": map[string]any{"type": "number", "exclusiveMinimum": 0, "maximum": 1000},
		},
		"additionalProperties": false,
	}
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register(Template{
		ID:          RuleProfitAbovePct,
		Description: "sell once unrealized profit reaches pct% of the invested amount",
		Schema:      pctSchema,
		Factory: func(params map[string]any) (Rule, error) {
			return ProfitAbovePct{Pct: decimal.NewFromFloat(params["pct"].(float64))}, nil
		},
	}))
	must(r.Register(Template{
		ID:          RuleLossBelowPct,
		Description: "sell once unrealized loss reaches pct% of the invested amount",
		Schema:      pctSchema,
		Factory: func(params map[string]any) (Rule, error) {
			return LossBelowPct{Pct: decimal.NewFromFloat(params["pct"].(float64))}, nil
		},
	}))
	return r
}

// Register 编译模板 schema 并登记；ID 重复时报错。
func (r *Registry) Register(tpl Template) error {
	tpl.ID = strings.TrimSpace(tpl.ID)
	if tpl.ID == "" || tpl.Factory == nil {
		return fmt.Errorf("exit rule template requires id and factory")
	}
	if len(tpl.Schema) > 0 {
		compiled, err := compileSchema(tpl.ID, tpl.Schema)
		if err != nil {
			return fmt.Errorf("exit rule %s schema: %w", tpl.ID, err)
		}
		tpl.schemaCompiled = compiled
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[tpl.ID]; ok {
		return fmt.Errorf("exit rule %s already registered", tpl.ID)
	}
	r.templates[tpl.ID] = tpl
	return nil
}

func (r *Registry) Template(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[strings.TrimSpace(id)]
	return tpl, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Build 按配置顺序构造规则链；未知规则或参数不合法时返回 config.ErrConfigInvalid。
func (r *Registry) Build(specs []config.ExitRuleConfig) (*Chain, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		tpl, ok := r.Template(spec.Name)
		if !ok {
			return nil, fmt.Errorf("%w: trading.exit_rules[%d]: unknown rule %q (known: %s)",
				config.ErrConfigInvalid, i, spec.Name, strings.Join(r.Names(), ", "))
		}
		params, err := normalizeParams(spec.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: trading.exit_rules[%d] %s: %v", config.ErrConfigInvalid, i, tpl.ID, err)
		}
		if err := tpl.Validate(params); err != nil {
			return nil, fmt.Errorf("%w: trading.exit_rules[%d] %s: %v", config.ErrConfigInvalid, i, tpl.ID, err)
		}
		rule, err := tpl.Factory(params)
		if err != nil {
			return nil, fmt.Errorf("%w: trading.exit_rules[%d] %s: %v", config.ErrConfigInvalid, i, tpl.ID, err)
		}
		rules = append(rules, rule)
	}
	chain := NewChain(rules...)
	logger.Infof("退出规则链: %s", strings.Join(chain.Names(), " -> "))
	return chain, nil
}

func compileSchema(id string, data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	url := id + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// normalizeParams 经 JSON 往返把 YAML 解析出的 int 等类型统一为 JSON 类型，
// 并把字符串形式的数字转为 float64。
func normalizeParams(params map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	for k, v := range out {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if num, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			out[k] = num
		}
	}
	return out, nil
}
