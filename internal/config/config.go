package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load 读取 YAML 配置，按 include 展开后由先到后逐层合并，
// 再为未出现在任何一层中的键填充默认值并校验。
func Load(path string) (*Config, error) {
	layers, err := configLayers(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, layer := range layers {
		v.SetConfigFile(layer)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge config layer %s: %w", layer, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults(explicitKeys(v))
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dump 以 YAML 输出生效配置，敏感字段做掩码处理。
func (c *Config) Dump() (string, error) {
	if c == nil {
		return "", fmt.Errorf("nil config")
	}
	cp := *c
	if cp.Notify.Telegram.BotToken != "" {
		cp.Notify.Telegram.BotToken = maskSecret(cp.Notify.Telegram.BotToken)
	}
	raw, err := yaml.Marshal(&cp)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func maskSecret(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:3] + "***" + s[len(s)-3:]
}

// explicitKeys 记录各层文件中出现过的叶子键（小写、点分），值为 0 或空也算设置。
func explicitKeys(v *viper.Viper) keySet {
	keys := make(keySet)
	for _, k := range v.AllKeys() {
		keys.mark(k)
	}
	return keys
}

// includeList 兼容 `include: base.yaml` 与 `include: [a.yaml, b.yaml]` 两种写法。
type includeList []string

func (l *includeList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = includeList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(includeList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
				return fmt.Errorf("line %d: include entries must be strings", item.Line)
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: include must be a string or a string list", node.Line)
	}
}

// layerWalker 深度优先展开 include；被包含的文件排在包含者之前，
// 因此后合并的文件覆盖先前的值。同一文件只合并一次。
type layerWalker struct {
	done    map[string]bool
	walking map[string]bool
	order   []string
}

var errIncludeCycle = errors.New("include cycle")

func configLayers(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &layerWalker{done: map[string]bool{}, walking: map[string]bool{}}
	if err := w.visit(root); err != nil {
		return nil, err
	}
	return w.order, nil
}

func (w *layerWalker) visit(file string) error {
	file = filepath.Clean(file)
	switch {
	case w.walking[file]:
		return fmt.Errorf("%w detected: %s", errIncludeCycle, file)
	case w.done[file]:
		return nil
	}
	w.walking[file] = true
	includes, err := readIncludes(file)
	if err != nil {
		return fmt.Errorf("read includes of %s: %w", file, err)
	}
	for _, inc := range includes {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(file), inc)
		}
		if err := w.visit(inc); err != nil {
			return err
		}
	}
	delete(w.walking, file)
	w.done[file] = true
	w.order = append(w.order, file)
	return nil
}

func readIncludes(file string) ([]string, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var head struct {
		Include includeList `yaml:"include"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	return head.Include, nil
}
