package ai

// ResearchSystemPrompt is prepended to every structured call.
const ResearchSystemPrompt = `You are a market research analyst building a knowledge graph. Answer with a single valid JSON object and nothing else.`

const ExtractPrompt = `
# Task Context
You are extracting **entities and relationships** relevant to the research topic "%s" from one section of a web document. Capture everything the text states explicitly; do not invent facts.

# Background Data
- **Document_title:** %s
- **Section:** %d
- **Entity_types:** [%s]
- **Relation_types:** [%s]

# Detailed Task Description & Rules
## Entity Extraction
- Extract as many relevant entities as the text supports (typically 15-30).
- **name:** the entity name as written in the text.
- **type:** one of the entity types above.
- **description:** 50-100 words on the entity's background, role and relation to the topic.
- **importance:** "high", "medium" or "low" relative to the research topic.

## Relationship Extraction
- For every pair of entities with a clear connection in the text, extract:
  - **source** and **target:** entity names exactly as in the entities list.
  - **relation:** one of the relation types above, or a short snake_case verb phrase.
  - **description:** how and why they are related, based on the text.
  - **strength:** "strong", "medium" or "weak".

# Text
%s

# Output Formatting
{
  "entities": [{"name": "", "type": "", "description": "", "importance": "high|medium|low"}],
  "relationships": [{"source": "", "target": "", "relation": "", "description": "", "strength": "strong|medium|weak"}]
}
Output must be valid JSON only (no commentary, no extra text).
`

const RelationshipPrompt = `
# Task Context
You are mining **relationships** between known entities for the research topic "%s".

# Background Data
- **Known entities:** %s
- **Relation_types:** [%s]

# Detailed Task Description & Rules
1. Find relationships between the known entities.
2. Find relationships between known entities and other entities named in the text; list those new entities too.
3. Include indirect relationships only when the text supports them, and quote the supporting evidence.

# Text
%s

# Output Formatting
{
  "relationships": [{"source": "", "target": "", "relation": "", "description": "", "strength": "strong|medium|weak", "evidence": ""}],
  "entities": [{"name": "", "type": "", "description": "", "importance": "high|medium|low"}]
}
Output must be valid JSON only (no commentary, no extra text).
`

const EnhancePrompt = `
# Task Context
You are enriching the most important entities of a document with context.

# Background Data
- **Entities:** %s
- **Document_title:** %s

# Detailed Task Description & Rules
For each entity give:
- **extended_description:** 100-200 words covering background, role in the document and relevance to the topic.
- **key_facts:** concrete facts or figures from the text.
Only describe entities from the list and keep their names unchanged.

# Text
%s

# Output Formatting
{
  "enhanced_entities": [{"name": "", "extended_description": "", "key_facts": [""]}]
}
Output must be valid JSON only (no commentary, no extra text).
`

const ExpandEntitiesPrompt = `
# Task Context
You are suggesting **related entities not yet mentioned** for the research topic "%s".

# Background Data
- **Core entities:** %s
- **Entity_types:** [%s]

# Detailed Task Description & Rules
Suggest 5-10 entities likely to matter for the topic such as competitors, key partners, important technologies, likely investors or adjacent markets.
For each give a type, a short description of why it is relevant, a confidence of "high", "medium" or "low", and the reasoning.

# Output Formatting
{
  "inferred_entities": [{"name": "", "type": "", "description": "", "confidence": "high|medium|low", "reasoning": ""}]
}
Output must be valid JSON only (no commentary, no extra text).
`

const InferRelationshipsPrompt = `
# Task Context
You are inferring **implicit relationships** in a knowledge graph about "%s".

# Background Data
- **Entities:** %s
- **Known relationships (source, relation, target):**
%s

# Detailed Task Description & Rules
Infer 3-8 relationships that follow logically but are not stated, for example:
- if A leads B and B develops C, A likely influences C
- if X invests in Y and Y competes with Z, X likely watches Z
Only use entities from the list. Give a confidence of "high", "medium" or "low" and the reasoning as description.

# Output Formatting
{
  "inferred_relationships": [{"source": "", "target": "", "relation": "", "description": "", "confidence": "high|medium|low"}]
}
Output must be valid JSON only (no commentary, no extra text).
`

const EvaluatePrompt = `
# Task Context
You are judging whether a knowledge graph holds enough information to write a research report on "%s".

# Background Data
- **Iteration:** %d
- **Entity count:** %d
- **Relationship count:** %d
- **Entity types:** %s
- **Relationship types:** %s
- **Top entities:**
%s

# Detailed Task Description & Rules
- Consider breadth (are the main players, products, competitors and figures present?) and depth (are they connected?).
- **is_sufficient:** true when a useful report can be written now.
- **confidence:** 0.0-1.0, how sure you are of the judgement.
- **coverage_score:** 0-100, how much of the topic the graph covers.
- **missing_aspects:** short search-friendly topics that are still missing, empty when sufficient.
- **reason:** one sentence.

# Output Formatting
{"is_sufficient": false, "confidence": 0.0, "coverage_score": 0, "missing_aspects": [""], "reason": ""}
Output must be valid JSON only (no commentary, no extra text).
`

const FollowUpPrompt = `
# Task Context
You are writing web search queries to fill gaps in research on "%s".

# Background Data
- **Missing aspects:** %s

# Detailed Task Description & Rules
- Write %d short search queries (5-10 words each), one per line.
- Each query should target one missing aspect and stay on topic.
- No numbering, no quotes, no commentary.
`

const ReportPrompt = `
# Task Context
You are a professional researcher writing a report on "%s" in %s.

# Background Data
## Entities
%s

## Relationships
%s

## Sources
%s

# Detailed Task Description & Rules
Write a well-structured markdown report with these sections:
1. **Executive Summary** (2-3 paragraphs): the topic and the most important findings.
2. **Background**: context and the main players.
3. **Key Findings** (3-5 points): insights and trends supported by the data.
4. **Detailed Analysis** (2-3 paragraphs): how the entities relate and why it matters.
5. **Conclusion**: the key takeaways and a direct answer to the research question.

Base every statement on the data above and keep a professional, objective tone.
`
