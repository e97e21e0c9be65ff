package mcpserver

// LayoutContract describes the monitored tree conventions for LLM consumers
// browsing or updating metadata documents.
const LayoutContract = `# Metawatch Tree Layout

The monitored root contains research projects; metadata lives next to the
data it describes.

## Structure

` + "```" + `
<root>/
  p_<project>/                      # project directory (p_ prefix)
    .metadata/
      project_descriptive.json      # identity: identifier, title, status
      project_administrative.json   # policy defaults inherited by datasets
    d_<dataset>/                    # dataset directory (d_ prefix)
      .metadata/
        dataset_administrative.json # policy, pre-filled from the project
        dataset_structural.json     # file inventory with checksums
        experiment_contextual.json  # experiment description (human-filled)
        complete_metadata.json      # final aggregate, generated once
      <data files...>               # arbitrary nesting below the dataset
  .template_schemas/                # optional local schema overrides
` + "```" + `

## Rules

1. **Paths are root-relative** in every tool: ` + "`" + `p_climate` + "`" + `, ` + "`" + `p_climate/d_sensors` + "`" + `.
2. **Document kinds** are ` + "`" + `project_descriptive` + "`" + `, ` + "`" + `project_administrative` + "`" + `,
   ` + "`" + `dataset_administrative` + "`" + `, ` + "`" + `dataset_structural` + "`" + `, ` + "`" + `experiment_contextual` + "`" + `,
   ` + "`" + `complete_metadata` + "`" + `.
3. **Identifier fields are read-only.** Updates that change them are silently
   corrected back to the stored values.
4. **Unfilled fields carry the sentinel** ` + "`" + `To be filled` + "`" + `. Replace the sentinel,
   do not delete the field.
5. **Lifecycle:** a dataset is ` + "`" + `v0_initial` + "`" + ` until its documents exist,
   ` + "`" + `v1_ingested` + "`" + ` while files are tracked, and ` + "`" + `v2_finalized` + "`" + ` once every
   required contextual field is filled and ` + "`" + `complete_metadata.json` + "`" + ` was
   generated. Finalization is terminal.
6. **Do not write into ` + "`" + `.metadata/` + "`" + ` directly**; use ` + "`" + `update_document` + "`" + ` so
   validation and audit fields are applied.
`
