package conclave

// RolePrompts holds the prompt text for one role. Prompts are data: a single
// RoleAgent type is parameterized by the record selected from this registry,
// so adding a role never means adding code.
type RolePrompts struct {
	System    string
	Propose   string
	Critique  string
	Refine    string
	Clarify   string
	Summarize string
	// SummarizeSystem is the system prompt for the agent's own history
	// summarization calls.
	SummarizeSystem string
}

// PromptsFor returns the prompt record for a role, falling back to the
// generalist record for unknown roles.
func PromptsFor(role Role) RolePrompts {
	if p, ok := rolePrompts[role]; ok {
		return p
	}
	return rolePrompts[RoleGeneralist]
}

const (
	proposeInstruction = "Propose a concrete solution to the problem above. " +
		"State your approach, the key decisions it rests on, and why it fits the constraints."
	critiqueInstruction = "Critique the proposal above from your specialty's point of view. " +
		"Identify concrete weaknesses, risks, and gaps. Be specific; do not restate the proposal."
	refineInstruction = "Revise your proposal to address the critiques above. " +
		"Keep what survived scrutiny, fix what did not, and note what you changed and why."
	clarifyInstruction = "Before proposing a solution, list the clarifying questions whose answers " +
		"would most change your approach. Return one question per line, nothing else."
	summarizeInstruction = "Summarize your positions so far: the core of your proposals, how they " +
		"evolved across refinements, and the critiques you have accepted or rejected. Be dense and factual."
	summarizeSystem = "You compress debate history. Preserve decisions, constraints, and open " +
		"disagreements; omit pleasantries and repetition."
)

var rolePrompts = map[Role]RolePrompts{
	RoleArchitect: {
		System: "You are a software architect in a structured design debate. You care about " +
			"system boundaries, data ownership, coupling, and how the design evolves under change.",
		Propose:         proposeInstruction,
		Critique:        critiqueInstruction,
		Refine:          refineInstruction,
		Clarify:         clarifyInstruction,
		Summarize:       summarizeInstruction,
		SummarizeSystem: summarizeSystem,
	},
	RolePerformance: {
		System: "You are a performance engineer in a structured design debate. You care about " +
			"latency, throughput, resource cost, and where the design will saturate first.",
		Propose:         proposeInstruction,
		Critique:        critiqueInstruction,
		Refine:          refineInstruction,
		Clarify:         clarifyInstruction,
		Summarize:       summarizeInstruction,
		SummarizeSystem: summarizeSystem,
	},
	RoleSecurity: {
		System: "You are a security engineer in a structured design debate. You care about " +
			"trust boundaries, authentication, data exposure, and how the design fails under attack.",
		Propose:         proposeInstruction,
		Critique:        critiqueInstruction,
		Refine:          refineInstruction,
		Clarify:         clarifyInstruction,
		Summarize:       summarizeInstruction,
		SummarizeSystem: summarizeSystem,
	},
	RoleTesting: {
		System: "You are a test engineer in a structured design debate. You care about " +
			"observability, failure injection, and whether the design's guarantees can be verified.",
		Propose:         proposeInstruction,
		Critique:        critiqueInstruction,
		Refine:          refineInstruction,
		Clarify:         clarifyInstruction,
		Summarize:       summarizeInstruction,
		SummarizeSystem: summarizeSystem,
	},
	RoleGeneralist: {
		System: "You are a senior engineer in a structured design debate. Weigh the tradeoffs " +
			"across correctness, simplicity, and operability without favoring one specialty.",
		Propose:         proposeInstruction,
		Critique:        critiqueInstruction,
		Refine:          refineInstruction,
		Clarify:         clarifyInstruction,
		Summarize:       summarizeInstruction,
		SummarizeSystem: summarizeSystem,
	},
}

// judgePrompts is the judge's prompt record; the judge is not a debate
// participant and never proposes or critiques.
var judgePrompts = struct {
	System           string
	SynthesizeFormat string
	ConfidenceSystem string
	ConfidenceFormat string
	SummarizeSystem  string
	SummarizeFinal   string
}{
	System: "You are the judge of a structured design debate. You synthesize the participants' " +
		"proposals, critiques, and refinements into a single recommended solution.",
	SynthesizeFormat: "Respond with JSON only, no prose before or after, matching exactly:\n" +
		`{"solutionMarkdown": "<the synthesized solution as markdown>", ` +
		`"tradeoffs": ["..."], "recommendations": ["..."], ` +
		`"unfulfilledMajorRequirements": ["..."], "openQuestions": ["..."], ` +
		`"confidence": <integer 0-100>}`,
	ConfidenceSystem: "You evaluate whether debate participants have reached consensus.",
	ConfidenceFormat: "Score the consensus among the refinements above. Bands: 0-40 no consensus, " +
		"41-70 partial consensus, 71-89 mostly aligned, 90-100 strong consensus. " +
		"Be skeptical: when in doubt, score below 50. " +
		`Respond with JSON only: {"confidence": <integer 0-100>}`,
	SummarizeSystem: "You compress debate history for a judge. Preserve each participant's final " +
		"position and the substantive disagreements; omit process chatter.",
	SummarizeFinal: "Summarize the final round's proposals and refinements across all participants.",
}
