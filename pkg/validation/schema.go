package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// APIKeyProperty はすべてのクエリスキーマに追加される任意のAPIキーのプロパティ名。
const APIKeyProperty = "key"

// schemaResource はコンパイラに登録するスキーマのリソース名。
const schemaResource = "schema.json"

// printer はエラーメッセージの整形に使う。
var printer = message.NewPrinter(language.English)

// FieldError は1件の検証エラーを表す。
type FieldError struct {
	// InstancePath は検証に失敗した値の位置（JSON Pointer形式）。
	InstancePath string `json:"instancePath"`
	// Keyword は失敗したスキーマキーワード。
	Keyword string `json:"keyword,omitempty"`
	// Message はエラーの説明。
	Message string `json:"message"`
}

// WithAPIKey はpropertiesに任意の文字列プロパティ "key" を追加したスキーマのコピーを返す。
// 元のスキーマは変更しない。
func WithAPIKey(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}

	props := make(map[string]any)
	if p, ok := schema["properties"].(map[string]any); ok {
		for k, v := range p {
			props[k] = v
		}
	}
	props[APIKeyProperty] = map[string]any{
		"type":        "string",
		"description": "API Key",
	}
	out["properties"] = props
	return out
}

// Compile はJSON Schemaドキュメントをコンパイルする。
// $schemaが未指定の場合はDraft 2020-12として扱う。
func Compile(schema map[string]any) (*jsonschema.Schema, error) {
	doc, err := normalize(schema)
	if err != nil {
		return nil, fmt.Errorf("スキーマの正規化に失敗: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource(schemaResource, doc); err != nil {
		return nil, fmt.Errorf("スキーマの登録に失敗: %w", err)
	}

	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("スキーマのコンパイルに失敗: %w", err)
	}
	return compiled, nil
}

// validate は値を検証し、失敗した場合はエラーの一覧を返す。
func validate(schema *jsonschema.Schema, value any) ([]FieldError, error) {
	doc, err := normalize(value)
	if err != nil {
		return nil, err
	}

	verr := schema.Validate(doc)
	if verr == nil {
		return nil, nil
	}

	ve, ok := verr.(*jsonschema.ValidationError)
	if !ok {
		return []FieldError{{InstancePath: "", Message: verr.Error()}}, nil
	}
	var out []FieldError
	collect(ve, &out)
	return out, nil
}

// collect はValidationErrorのツリーから末端のエラーを集める。
func collect(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		fe := FieldError{
			InstancePath: instancePath(ve.InstanceLocation),
			Message:      ve.ErrorKind.LocalizedString(printer),
		}
		if kp := ve.ErrorKind.KeywordPath(); len(kp) > 0 {
			fe.Keyword = kp[len(kp)-1]
		}
		*out = append(*out, fe)
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, out)
	}
}

func instancePath(loc []string) string {
	if len(loc) == 0 {
		return ""
	}
	return "/" + strings.Join(loc, "/")
}

// normalize はGoの値をjsonschemaが期待する表現（json.Numberを含む）に変換する。
// YAMLから読み込んだint等もここで揃える。
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
