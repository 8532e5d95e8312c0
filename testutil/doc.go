/*
Package testutil 提供 FormFlow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 数据工具: MustJSON / AssertJSONEqual（基于 go-cmp 输出差异）
  - 异步断言: AssertEventuallyTrue

# 子包

  - testutil/mocks: MockProvider（llm.Provider），支持固定响应、错误注入、
    延迟与调用计数
  - testutil/fixtures: 表单优化请求/回复样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse(fixtures.ValidReplyJSON)
	resp, err := provider.Completion(ctx, req)
*/
package testutil
