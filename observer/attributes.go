package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for debate observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrToolCount = attribute.Key("llm.tool_count")
	AttrToolNames = attribute.Key("llm.tool_names")

	AttrDebateID    = attribute.Key("debate.id")
	AttrDebateRound = attribute.Key("debate.round")
	AttrDebatePhase = attribute.Key("debate.phase")

	AttrAgentName = attribute.Key("agent.name")
	AttrAgentRole = attribute.Key("agent.role")
)
