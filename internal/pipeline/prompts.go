package pipeline

// Stage system prompts are constant across clients so the provider can
// cache them. Per-client data goes in the user prompt.

const attributesSystem = `You are a business research analyst. Given a company's name and
whatever identifiers are known, describe the company. Reply with a single JSON
object and nothing else, using exactly these keys:
- legal_name: string
- tax_id: string (national registration number if known, else "")
- website: string (canonical URL if known, else "")
- sector: string
- size: string (one of "micro", "small", "medium", "large")
- employees: string (range such as "51-200")
- city: string
- state: string
- description: string (two sentences, required)
Use "" for anything you cannot determine. Never invent a registration number.`

const attributesPrompt = `Company name: %s
Registration number: %s
Website: %s`

const productSystem = `You identify the principal product or service a company sells.
Reply with a single JSON object and nothing else:
{"product": {"name": string, "category": string, "description": string}}
name and description are required.`

const productPrompt = `Company: %s
Sector: %s
Description: %s`

const marketSystem = `You map a company's principal product to the markets it sells into.
Reply with a single JSON object and nothing else:
{"markets": [{"name": string, "category": string, "segment": string,
"description": string, "market_size": string, "growth_trend": string}]}
Return between 1 and 3 markets, most relevant first. Market names must be
short, generic segment names, not company names.`

const marketPrompt = `Company: %s
Sector: %s
Principal product: %s (%s)
Product description: %s
Return at most %d markets.`

const partySystem = `You list real companies operating in a given market.
Reply with a single JSON object and nothing else:
{"companies": [{"name": string, "website": string, "tax_id": string,
"city": string, "state": string, "size": string, "description": string}]}
name is required. Use "" for unknown fields. Never repeat a company and never
return a company from the exclusion list.`

const competitorPrompt = `Market: %s (%s)
Market description: %s
List %d companies that compete with %s in this market.
Exclude these companies: %s`

const leadPrompt = `Market: %s (%s)
Market description: %s
List %d companies that would buy %s's product "%s" in this market.
They must not be competitors of %s.
Exclude these companies: %s`
