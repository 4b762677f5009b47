package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 写入请求中的字段按宽松规则转换：
// 数字和布尔值可写入字符串字段，数字字符串和布尔值可写入整数字段，
// assignedAgent 可以是代表 ID，也可以是接口返回的展开后的代表对象（取其 _id）。
// 无法转换的值返回 FieldError。

// FieldError 字段值无法转换为目标类型
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("字段 %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

var (
	errNotString  = errors.New("无法转换为字符串")
	errNotInteger = errors.New("无法转换为整数")
	errNotID      = errors.New("无法转换为ID")
)

type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(raw, []byte("null"))
}

func castString(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errNotString
	}
	switch c := raw[0]; {
	case isNull(raw):
		return "", nil
	case c == '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw), nil
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", errNotString
		}
		return strconv.FormatBool(b), nil
	default:
		return "", errNotString
	}
}

func castInt(raw []byte) (int, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return 0, nil
	}

	var text string
	switch {
	case len(raw) > 0 && raw[0] == '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, errNotInteger
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
	case bytes.Equal(raw, []byte("true")):
		return 1, nil
	case bytes.Equal(raw, []byte("false")):
		return 0, nil
	default:
		text = string(raw)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, errNotInteger
	}
	return int(f), nil
}

// castID 空值返回空字符串，对象取其 _id
func castID(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case isNull(raw):
		return "", nil
	case len(raw) > 0 && raw[0] == '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case len(raw) > 0 && raw[0] == '{':
		var obj fields
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		id, ok := obj["_id"]
		if !ok {
			return "", errNotID
		}
		return castID(id)
	default:
		return "", errNotID
	}
}

func (f fields) str(key string, dst *string) error {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	s, err := castString(raw)
	if err != nil {
		return &FieldError{Field: key, Err: err}
	}
	*dst = s
	return nil
}

func (f fields) strPtr(key string, dst **string) error {
	if _, ok := f[key]; !ok {
		return nil
	}
	var s string
	if err := f.str(key, &s); err != nil {
		return err
	}
	*dst = &s
	return nil
}

func (f fields) integer(key string, dst *int) error {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	n, err := castInt(raw)
	if err != nil {
		return &FieldError{Field: key, Err: err}
	}
	*dst = n
	return nil
}

func (f fields) intPtr(key string, dst **int) error {
	if _, ok := f[key]; !ok {
		return nil
	}
	var n int
	if err := f.integer(key, &n); err != nil {
		return err
	}
	*dst = &n
	return nil
}

func (f fields) id(key string, dst *string) error {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	id, err := castID(raw)
	if err != nil {
		return &FieldError{Field: key, Err: err}
	}
	*dst = id
	return nil
}

// UnmarshalJSON 实现 json.Unmarshaler，_id 与 createdAt 被忽略
func (in *CustomerInput) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out CustomerInput
	for _, err := range []error{
		f.str("name", &out.Name),
		f.str("email", &out.Email),
		f.str("phone", &out.Phone),
		f.str("status", &out.Status),
		f.id("assignedAgent", &out.AssignedAgent),
	} {
		if err != nil {
			return err
		}
	}
	*in = out
	return nil
}

// UnmarshalJSON 实现 json.Unmarshaler
func (in *AgentInput) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out AgentInput
	for _, err := range []error{
		f.str("name", &out.Name),
		f.str("email", &out.Email),
		f.str("phone", &out.Phone),
		f.str("status", &out.Status),
		f.integer("activeTickets", &out.ActiveTickets),
	} {
		if err != nil {
			return err
		}
	}
	*in = out
	return nil
}

// UnmarshalJSON 实现 json.Unmarshaler，只有请求体中出现的字段会被合并
func (p *CustomerPatch) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out CustomerPatch
	for _, err := range []error{
		f.strPtr("name", &out.Name),
		f.strPtr("email", &out.Email),
		f.strPtr("phone", &out.Phone),
		f.strPtr("status", &out.Status),
	} {
		if err != nil {
			return err
		}
	}
	if raw, ok := f["assignedAgent"]; ok {
		if err := out.AssignedAgent.UnmarshalJSON(raw); err != nil {
			return &FieldError{Field: "assignedAgent", Err: err}
		}
	}
	*p = out
	return nil
}

// UnmarshalJSON 实现 json.Unmarshaler
func (p *AgentPatch) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out AgentPatch
	for _, err := range []error{
		f.strPtr("name", &out.Name),
		f.strPtr("email", &out.Email),
		f.strPtr("phone", &out.Phone),
		f.strPtr("status", &out.Status),
		f.intPtr("activeTickets", &out.ActiveTickets),
	} {
		if err != nil {
			return err
		}
	}
	*p = out
	return nil
}
