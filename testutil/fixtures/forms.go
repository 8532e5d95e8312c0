// =============================================================================
// 测试数据工厂 - 表单优化请求与回复
// =============================================================================
package fixtures

import "github.com/formflow/formflow/llm"

// SampleRequestJSON 两条记录、两个问题，第二条记录含可选问题 q2
const SampleRequestJSON = `{"formId":"f1","responses":[{"q1":"yes"},{"q1":"no","q2":"blue"}]}`

// EmptyResponsesRequestJSON 没有历史提交的表单
const EmptyResponsesRequestJSON = `{"formId":"f1","responses":[]}`

// ValidReplyJSON 满足结果 schema 的回复
const ValidReplyJSON = `{"optimizedSequence":["q1","q2"],"rationale":"q1 has full coverage"}`

// MissingRationaleReplyJSON 缺少 rationale 的回复
const MissingRationaleReplyJSON = `{"optimizedSequence":["q1","q2"]}`

// NonStringSequenceReplyJSON optimizedSequence 含非字符串元素
const NonStringSequenceReplyJSON = `{"optimizedSequence":["q1",2],"rationale":"r"}`

// ChatResponse 构造单选项的 llm.ChatResponse
func ChatResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "mock-model",
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
		Usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}
