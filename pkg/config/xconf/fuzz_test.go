package xconf

import (
	"strings"
	"testing"
)

func FuzzParse(f *testing.F) {
	f.Add([]byte(testYAMLContent), "yaml")
	f.Add([]byte(testJSONContent), "json")
	f.Add([]byte("pools: [{name: a}]\n"), "yaml")

	f.Fuzz(func(t *testing.T, data []byte, format string) {
		switch strings.ToLower(format) {
		case "yaml", "yml":
			format = string(FormatYAML)
		case "json":
			format = string(FormatJSON)
		default:
			return
		}

		cfg, err := Parse(data, Format(format))
		if err != nil {
			if cfg != nil {
				t.Fatalf("Parse returned config with error %v", err)
			}
			return
		}
		// 成功解析的配置必然通过校验
		if verr := cfg.Validate(); verr != nil {
			t.Fatalf("parsed config fails validation: %v", verr)
		}
		if len(cfg.Pools) == 0 {
			t.Fatal("parsed config without pools")
		}
	})
}
