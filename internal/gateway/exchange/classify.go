package exchange

import (
	"fmt"
	"strings"

	"klinefetch/internal/pkg/text"

	"github.com/tidwall/gjson"
)

// Envelope 描述交易所响应外层结构。
// DataPath 为空表示成功响应本身就是数组（Binance/Gate），
// 此时若返回对象则按 CodePath/MsgPath 读取错误。
type Envelope struct {
	CodePath     string
	MsgPath      string
	SuccessCodes []string
	DataPath     string
}

func (e Envelope) success(code string) bool {
	for _, c := range e.SuccessCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Kind 是响应分类失败的类别。
type Kind int

const (
	KindHTMLBody Kind = iota + 1
	KindMalformedJSON
	KindAPIError
	KindMissingData
)

func (k Kind) String() string {
	switch k {
	case KindHTMLBody:
		return "html_body"
	case KindMalformedJSON:
		return "malformed_json"
	case KindAPIError:
		return "api_error"
	case KindMissingData:
		return "missing_data"
	default:
		return "unknown"
	}
}

// ClassifyError 表示响应文本不能当作行数据使用。
type ClassifyError struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *ClassifyError) Error() string {
	switch e.Kind {
	case KindAPIError:
		return fmt.Sprintf("api error code=%s msg=%s", e.Code, e.Message)
	case KindHTMLBody, KindMalformedJSON:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
		return e.Kind.String()
	}
}

const snippetLen = 80

// Classify 在解析之前识别 HTML 拦截页、非法 JSON、业务错误码和缺失数据。
// 只有 JSON 合法、错误码为成功值、且 DataPath 下为数组时才返回数据。
func Classify(raw string, env Envelope) (gjson.Result, error) {
	body := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if looksLikeHTML(body) {
		return gjson.Result{}, &ClassifyError{Kind: KindHTMLBody, Message: text.Truncate(body, snippetLen)}
	}
	if body == "" || !gjson.Valid(body) {
		return gjson.Result{}, &ClassifyError{Kind: KindMalformedJSON, Message: text.Truncate(body, snippetLen)}
	}
	root := gjson.Parse(body)

	if env.DataPath == "" {
		if root.IsArray() {
			return root, nil
		}
		return gjson.Result{}, apiError(root, env)
	}

	if env.CodePath != "" {
		code := root.Get(env.CodePath)
		if !code.Exists() || !env.success(code.String()) {
			return gjson.Result{}, apiError(root, env)
		}
	}
	data := root.Get(env.DataPath)
	if !data.IsArray() {
		return gjson.Result{}, &ClassifyError{Kind: KindMissingData, Message: env.DataPath}
	}
	return data, nil
}

func apiError(root gjson.Result, env Envelope) *ClassifyError {
	e := &ClassifyError{Kind: KindAPIError}
	if env.CodePath != "" {
		e.Code = root.Get(env.CodePath).String()
	}
	if env.MsgPath != "" {
		e.Message = root.Get(env.MsgPath).String()
	}
	if e.Code == "" && e.Message == "" {
		e.Message = text.Truncate(root.Raw, snippetLen)
	}
	return e
}

func looksLikeHTML(body string) bool {
	head := strings.ToLower(body[:min(len(body), 16)])
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

