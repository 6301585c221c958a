package mcpserver

// ExportFormatURI identifies the export format resource.
const ExportFormatURI = "osmen://export-format"

// ExportFormat describes the layout of notes written by write_to_vault so
// agents know what will land in the vault.
const ExportFormat = `# OsMEN Export Format

Agents write into the vault through the ` + "`" + `write_to_vault` + "`" + ` tool only.
Every accepted write lands under the export folder (default
` + "`" + `OsMEN-Exports/` + "`" + `), optionally inside a subfolder.

## Layout

` + "```" + `markdown
---
status: draft                       # any keys passed as "frontmatter"
tags: [research, weekly]
created_by: research-agent          # always set from agent_id
created_at: 2025-01-15T10:00:00Z    # always set, RFC 3339
---

Body text exactly as passed in "content".
` + "```" + `

## Rules

1. **Filename** gets a ` + "`" + `.md` + "`" + ` suffix when it has none.
2. **Path** is ` + "`" + `<export folder>/<subfolder>/<filename>` + "`" + `. A subfolder that
   climbs out of the export folder is judged by the vault write policy:
   ` + "`" + `export_only` + "`" + ` denies it, ` + "`" + `with_approval` + "`" + ` queues it for a human,
   ` + "`" + `unrestricted` + "`" + ` allows it.
3. **Provenance keys** ` + "`" + `created_by` + "`" + ` and ` + "`" + `created_at` + "`" + ` are owned by the
   engine. Values passed for them are replaced.
4. **Frontmatter values** are strings or lists of strings. Other JSON
   values are stored in their string form.
5. **Overwrites** replace the previous export at the same path.
6. **Links and tags** follow Obsidian syntax: ` + "`" + `[[Note]]` + "`" + `, ` + "`" + `[[Note|alias]]` + "`" + `,
   ` + "`" + `#tag` + "`" + `.

Call ` + "`" + `can_write` + "`" + ` first to see how a target path will be judged.
`
