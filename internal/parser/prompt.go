package parser

// ProfileSchema is the JSON shape every provider is asked to fill for one document.
const ProfileSchema = `{
  "company": {
    "name": null, "industry": null, "founded_year": null, "headquarters": null,
    "stage": null, "business_model": null, "product_description": null,
    "product_stage": null, "has_proprietary_tech": null
  },
  "financial": {
    "annual_revenue": null, "revenue_growth_pct": null, "gross_margin_pct": null,
    "monthly_burn": null, "runway_months": null, "funding_raised": null,
    "funding_ask": null, "valuation": null, "customers": null, "monthly_active_users": null
  },
  "team": {
    "founder_count": null, "employee_count": null, "founder_experience_years": null,
    "has_technical_founder": null, "prior_exits": null, "key_members": []
  },
  "market": {
    "tam": null, "sam": null, "growth_rate_pct": null,
    "competitors": [], "differentiators": []
  },
  "risks": [
    {"type": "", "description": "", "severity": "low|medium|high"}
  ]
}`

// BuildProfilePrompt returns the extraction prompt for one document. The strict variant is
// the re-ask sent after a malformed answer.
func BuildProfilePrompt(schema string, strict bool) string {
	if schema == "" {
		schema = ProfileSchema
	}
	prompt := `You are an investment analyst's data extraction assistant. Analyze the provided document (pitch deck, financial statement, memo or similar) and extract facts about the company into the JSON structure below.

IMPORTANT INSTRUCTIONS:
- Only report facts stated in the document. Use null for any value the document does not state. Never guess.
- Amounts are plain numbers in the document currency (no symbols, no thousands separators). "$2.5M" is 2500000.
- Percentages are plain numbers: 45% is 45.
- stage is one of: idea, pre-seed, seed, series-a, series-b, growth. product_stage is one of: concept, prototype, beta, launched, growth, scaling.
- risks lists concerns the document states or clearly implies (regulatory, competition, execution, financial, team, market, technology) with a severity of low, medium or high.

Return ONLY valid JSON with no markdown formatting, no code fences, no explanation.

Return two top-level keys: "fields" and "confidence".

The "fields" object must follow this schema:
` + schema + `

"confidence" is a number between 0 and 100 describing how complete and reliable the extraction is overall.`

	if strict {
		prompt += `

YOUR PREVIOUS ANSWER COULD NOT BE PARSED. Respond with exactly one JSON object of the form {"fields": {...}, "confidence": <number>}. The first character of your answer must be "{" and the last must be "}". Do not include any other text.`
	}
	return prompt
}
