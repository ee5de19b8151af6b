package abtest

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/rankproxy/core"
)

// Rule 是一条基于表达式的分流规则，使用 CEL (Common Expression Language) 语法。
//
// 表达式只有一个变量 user_id（string），返回布尔值。示例：
//   - `user_id.endsWith("1")` → 尾号分桶
//   - `user_id.startsWith("qa_")` → 内部账号定向
//   - `user_id in ["user_a", "user_b"]` → 白名单
type Rule struct {
	// Condition CEL 条件表达式
	Condition string
	// Endpoint 命中后转发的端点
	Endpoint core.Endpoint
}

type compiledRule struct {
	program  cel.Program
	endpoint core.Endpoint
}

// Registry 维护客户端到排序变体端点的映射，进程生命周期内不可变。
//
// Resolve 的决策顺序：精确映射 → 分流规则（按声明顺序取首个命中）→ 默认端点。
// 解析永远成功：没有映射是常态而非异常。
type Registry struct {
	endpoints       map[string]core.Endpoint
	rules           []compiledRule
	defaultEndpoint core.Endpoint
}

// NewRegistry 创建变体注册表。规则在此一次性编译，编译失败直接返回错误
//（注册表初始化后不可变，坏规则应让启动失败而不是运行时沉默跳过）。
func NewRegistry(defaultEndpoint core.Endpoint, mappings map[string]core.Endpoint, rules []Rule) (*Registry, error) {
	if defaultEndpoint.URL == "" {
		return nil, fmt.Errorf("abtest: default endpoint is required")
	}

	r := &Registry{
		endpoints:       make(map[string]core.Endpoint, len(mappings)),
		defaultEndpoint: defaultEndpoint,
	}
	for userID, ep := range mappings {
		r.endpoints[userID] = ep
	}

	if len(rules) > 0 {
		env, err := cel.NewEnv(
			cel.Variable("user_id", cel.StringType),
		)
		if err != nil {
			return nil, fmt.Errorf("abtest: create cel env: %w", err)
		}
		for _, rule := range rules {
			ast, issues := env.Compile(rule.Condition)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("abtest: compile rule %q: %w", rule.Condition, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("abtest: program rule %q: %w", rule.Condition, err)
			}
			r.rules = append(r.rules, compiledRule{program: prg, endpoint: rule.Endpoint})
		}
	}
	return r, nil
}

// Resolve 返回 userID 对应的变体端点；无映射且无规则命中时返回默认端点。
// 无副作用，可安全并发调用；同一 userID 的结果在进程生命周期内恒定。
func (r *Registry) Resolve(userID string) core.Endpoint {
	if ep, ok := r.endpoints[userID]; ok {
		return ep
	}
	input := map[string]any{"user_id": userID}
	for _, rule := range r.rules {
		out, _, err := rule.program.Eval(input)
		if err != nil {
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return rule.endpoint
		}
	}
	return r.defaultEndpoint
}

// Default 返回默认端点。
func (r *Registry) Default() core.Endpoint {
	return r.defaultEndpoint
}
