package exchange

import (
	"fmt"
	"net/url"
	"strings"
)

// MirrorMode 决定镜像地址如何包装原始请求。
type MirrorMode string

const (
	// MirrorPrefix 用镜像 base 替换交易所域名，路径与参数保持不变。
	MirrorPrefix MirrorMode = "prefix"
	// MirrorWrap 把完整的直连 URL 转义后拼接到镜像地址末尾，如 https://proxy/?url=。
	MirrorWrap MirrorMode = "wrap"
)

// ParseMirrorMode 校验配置中的 mode，空值视为 prefix。
func ParseMirrorMode(s string) (MirrorMode, error) {
	switch MirrorMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MirrorPrefix:
		return MirrorPrefix, nil
	case MirrorWrap:
		return MirrorWrap, nil
	default:
		return "", fmt.Errorf("未知镜像模式: %s", s)
	}
}

type Mirror struct {
	URL  string
	Mode MirrorMode
}

// Route 是一页请求的一个候选地址。
type Route struct {
	Name string
	URL  string
}

// Resolver 为一个数据源生成有序路由：直连在前，镜像按配置顺序在后。
type Resolver struct {
	mirrors []Mirror
}

func NewResolver(mirrors []Mirror) *Resolver {
	out := make([]Mirror, 0, len(mirrors))
	for _, m := range mirrors {
		if strings.TrimSpace(m.URL) == "" {
			continue
		}
		out = append(out, m)
	}
	return &Resolver{mirrors: out}
}

func (r *Resolver) Routes(a Adapter, query url.Values) []Route {
	direct := strings.TrimRight(a.BaseURL(), "/") + a.Path()
	if enc := query.Encode(); enc != "" {
		direct += "?" + enc
	}
	routes := []Route{{Name: "direct", URL: direct}}
	if r == nil {
		return routes
	}
	for i, m := range r.mirrors {
		var target string
		switch m.Mode {
		case MirrorWrap:
			target = m.URL + url.QueryEscape(direct)
		default:
			target = strings.TrimRight(m.URL, "/") + a.Path()
			if enc := query.Encode(); enc != "" {
				target += "?" + enc
			}
		}
		routes = append(routes, Route{Name: fmt.Sprintf("mirror#%d", i+1), URL: target})
	}
	return routes
}
