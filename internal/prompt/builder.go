package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Request 构建提示词所需的输入
type Request struct {
	Subject      string
	Operation    string
	Style        Style
	Examples     []string
	SlotGlossary string
	Count        int
	ExtraContext string
}

// Prompt 构建好的少样本提示词
type Prompt struct {
	Text  string
	Style Style
	Count int
}

const prefixTmpl = `A {{.Subject}} app has a voice assistant feature that allows users to interact with the voice assistant and have it perform various operations.
Your task is to help the user generate the most commonly used phrases in spoken American English so they can give instructions to the voice assistant for related operations.

1. The generated phrases should align with how American English is naturally spoken.
2. The generated phrases should be as brief as possible.

Now, the user needs to give instructions to the voice assistant to perform the operation "{{.Operation}}."
Spoken style: {{.Style}}.

Examples as below:`

const exampleTmpl = `phrases: {{.}}`

const suffixTmpl = `The curly braces {} in the example are placeholders, and the output should retain this format.

The meanings of each placeholder are as follows:
{{.SlotGlossary}}

Please generate {{.Count}} phrases on each run.

{{.ExtraContext}}`

var (
	prefix  = template.Must(template.New("prefix").Parse(prefixTmpl))
	example = template.Must(template.New("example").Parse(exampleTmpl))
	suffix  = template.Must(template.New("suffix").Parse(suffixTmpl))
)

// 前缀、示例块、后缀之间的分隔
const sectionSeparator = "\n\n"

// Build 根据请求构建提示词，相同输入总是得到相同文本
func Build(req Request) (Prompt, error) {
	label := req.Style.Label()
	if label == "" {
		return Prompt{}, &UnknownStyleError{Label: string(req.Style)}
	}

	var buf bytes.Buffer
	err := prefix.Execute(&buf, struct {
		Subject, Operation, Style string
	}{req.Subject, req.Operation, label})
	if err != nil {
		return Prompt{}, fmt.Errorf("渲染提示词前缀失败: %w", err)
	}
	buf.WriteString(sectionSeparator)

	shots, err := encodeExamples(req.Examples)
	if err != nil {
		return Prompt{}, err
	}
	if err := example.Execute(&buf, shots); err != nil {
		return Prompt{}, fmt.Errorf("渲染示例失败: %w", err)
	}
	buf.WriteString(sectionSeparator)

	err = suffix.Execute(&buf, struct {
		SlotGlossary string
		Count        int
		ExtraContext string
	}{req.SlotGlossary, req.Count, req.ExtraContext})
	if err != nil {
		return Prompt{}, fmt.Errorf("渲染提示词后缀失败: %w", err)
	}

	return Prompt{
		Text:  strings.TrimRight(buf.String(), " \n"),
		Style: req.Style,
		Count: req.Count,
	}, nil
}

// encodeExamples 将示例编码为 JSON 数组，占位符与尖括号原样保留
func encodeExamples(examples []string) (string, error) {
	if examples == nil {
		examples = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(examples); err != nil {
		return "", fmt.Errorf("编码示例失败: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// SplitExamples 按行拆分示例文本，去掉首尾空白与空行
func SplitExamples(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
