package exchange

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okxEnvelope = Envelope{CodePath: "code", MsgPath: "msg", SuccessCodes: []string{"0"}, DataPath: "data"}
var bareEnvelope = Envelope{CodePath: "code", MsgPath: "msg"}

func classifyKind(t *testing.T, err error) Kind {
	t.Helper()
	var ce *ClassifyError
	require.True(t, errors.As(err, &ce), "expected *ClassifyError, got %v", err)
	return ce.Kind
}

func TestClassifyHTMLBlockPage(t *testing.T) {
	_, err := Classify("\n  <!DOCTYPE html><html><body>Access denied</body></html>", okxEnvelope)
	assert.Equal(t, KindHTMLBody, classifyKind(t, err))

	_, err = Classify("<HTML><head></head></HTML>", bareEnvelope)
	assert.Equal(t, KindHTMLBody, classifyKind(t, err))
}

func TestClassifyMalformedJSON(t *testing.T) {
	_, err := Classify(`{"code":"0","data":[`, okxEnvelope)
	assert.Equal(t, KindMalformedJSON, classifyKind(t, err))

	_, err = Classify("   ", okxEnvelope)
	assert.Equal(t, KindMalformedJSON, classifyKind(t, err))
}

func TestClassifyErrorCarriesBodySnippet(t *testing.T) {
	page := "<html><body>" + strings.Repeat("blocked ", 40) + "</body></html>"
	_, err := Classify("\ufeff"+page, okxEnvelope)
	var ce *ClassifyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindHTMLBody, ce.Kind)
	assert.True(t, strings.HasPrefix(ce.Message, "<html><body>blocked"))
	assert.Less(t, len(ce.Message), len(page))

	_, err = Classify(`{"code":"0","data":[1,2`, okxEnvelope)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, `{"code":"0","data":[1,2`, ce.Message)
}

func TestClassifyAPIError(t *testing.T) {
	_, err := Classify(`{"code":"50011","msg":"Too Many Requests","data":[]}`, okxEnvelope)
	var ce *ClassifyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindAPIError, ce.Kind)
	assert.Equal(t, "50011", ce.Code)
	assert.Equal(t, "Too Many Requests", ce.Message)

	// 数组位置返回了错误对象
	_, err = Classify(`{"code":-1121,"msg":"Invalid symbol."}`, bareEnvelope)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindAPIError, ce.Kind)
	assert.Equal(t, "-1121", ce.Code)

	// 缺失错误码字段也视为失败
	_, err = Classify(`{"data":[]}`, okxEnvelope)
	assert.Equal(t, KindAPIError, classifyKind(t, err))
}

func TestClassifyMissingData(t *testing.T) {
	_, err := Classify(`{"code":"0","msg":"","data":{}}`, okxEnvelope)
	assert.Equal(t, KindMissingData, classifyKind(t, err))

	bybit := Envelope{CodePath: "retCode", MsgPath: "retMsg", SuccessCodes: []string{"0"}, DataPath: "result.list"}
	_, err = Classify(`{"retCode":0,"retMsg":"OK","result":{}}`, bybit)
	assert.Equal(t, KindMissingData, classifyKind(t, err))
}

func TestClassifyOk(t *testing.T) {
	data, err := Classify(`{"code":"0","msg":"","data":[["1","2"]]}`, okxEnvelope)
	require.NoError(t, err)
	assert.Len(t, data.Array(), 1)

	bybit := Envelope{CodePath: "retCode", MsgPath: "retMsg", SuccessCodes: []string{"0"}, DataPath: "result.list"}
	data, err = Classify(`{"retCode":0,"retMsg":"OK","result":{"list":[]}}`, bybit)
	require.NoError(t, err)
	assert.True(t, data.IsArray())

	data, err = Classify(`[[1,"2"]]`, bareEnvelope)
	require.NoError(t, err)
	assert.Len(t, data.Array(), 1)
}
