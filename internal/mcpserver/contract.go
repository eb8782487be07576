package mcpserver

// CorpusFormatContract describes the document formats archgraph indexes.
// LLM consumers read it before authoring or editing corpus documents.
const CorpusFormatContract = `# archgraph Corpus Format

The corpus is plain Markdown under four directories. Paths below are the
defaults; the server's configuration may move them.

## Feature documents (docs/features/*.md)

` + "```" + `markdown
---
feature: auth                 # REQUIRED, unique feature id
status: active                # REQUIRED
entry_point: internal/auth/handler.go   # REQUIRED, repository path
code_files:                   # OPTIONAL, repository paths
  - internal/auth/session.go
test_files:                   # OPTIONAL
  - internal/auth/session_test.go
dependencies:                 # OPTIONAL, feature ids this feature depends on
  - store
related_features:             # OPTIONAL, non-directional
  - billing
---

## Components

1. **Session store** - ` + "`internal/auth/session.go`" + `

### Token signer
**File**: ` + "`internal/auth/sign.go`" + `
` + "```" + `

Rules:

1. ` + "`dependencies`" + ` must not form a cycle.
2. Components are read from Architecture, Components and Implementation sections.
3. Every interface a feature uses must be mentioned in its body by id.

## Interface documents (docs/interfaces/AA--BB-name.md)

Frontmatter ` + "`from`" + `, ` + "`to`" + ` and ` + "`type`" + ` are required. ` + "`from`" + ` uses ` + "`to`" + `.
The leading ` + "`AA--BB`" + ` is the pair token that shared types refer to.

## Shared-type documents (docs/shared-types/AA--BB_CC--DD.md)

The file stem is the sorted, de-duplicated list of pair tokens joined by ` + "`_`" + `.
Frontmatter: ` + "`type: shared`" + `, ` + "`status`" + `, ` + "`interfaces`" + ` listing exactly the
tokens of the file name.

## Terms

A heading whose whole title is ` + "`[[Name]]`" + ` (levels 1-3) defines a term. Optional
metadata lines follow it:

` + "```" + `markdown
## [[Pair Token]]
- **Aliases**: token, pair
- **Related**: [[Shared Type]]

Two zero-padded feature numbers joined by a double hyphen.
` + "```" + `

Definitions under the glossary directory are global; anywhere else they are
local to their document. Every ` + "`[[Name]]`" + ` outside headings and code fences must
resolve to a definition. Define a name once per scope.
`
