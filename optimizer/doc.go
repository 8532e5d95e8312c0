/*
Package optimizer implements the form question-sequence optimization pipeline.

A caller hands a batch of collected question/answer records to [Flow]; the flow
validates the request, renders a deterministic prompt, asks an llm.Provider for a
structured reply through [Invoker], and validates that reply into an
[OptimizationResult]:

	caller -> Flow -> ValidateRequest -> Compile -> Invoke -> ValidateResponse -> caller

Every failure is an [*Error] whose Kind is one of ValidationError,
ProviderUnavailable, EmptyReply or MalformedReply. Validation errors carry the
side (request or reply) that produced the defect. The flow never retries and
never returns a partial result; [ResilientOptimizer] adds opt-in retry and
circuit breaking on top.
*/
package optimizer
