// Package models defines the domain types for metawatch.
package models

// Directory naming conventions for the monitored tree.
const (
	ProjectPrefix      = "p_"
	DatasetPrefix      = "d_"
	MetadataDir        = ".metadata"
	TemplateSchemasDir = ".template_schemas"
)

// Kind identifies one of the fixed metadata document types.
type Kind string

const (
	KindProjectDescriptive    Kind = "project_descriptive"
	KindProjectAdministrative Kind = "project_administrative"
	KindDatasetAdministrative Kind = "dataset_administrative"
	KindDatasetStructural     Kind = "dataset_structural"
	KindExperimentContextual  Kind = "experiment_contextual"
	KindCompleteMetadata      Kind = "complete_metadata"
)

// FileName returns the on-disk name of the document inside .metadata.
func (k Kind) FileName() string {
	return string(k) + ".json"
}

// SchemaName returns the logical schema name governing this document kind.
// The project descriptive schema keeps its historical name without the
// _schema suffix.
func (k Kind) SchemaName() string {
	if k == KindProjectDescriptive {
		return "project_descriptive.json"
	}
	return string(k) + "_schema.json"
}

// Kinds lists every document kind in generation order.
func Kinds() []Kind {
	return []Kind{
		KindProjectDescriptive,
		KindProjectAdministrative,
		KindDatasetAdministrative,
		KindDatasetStructural,
		KindExperimentContextual,
		KindCompleteMetadata,
	}
}

// ProtectedFields returns the system identifier fields of a document kind
// that must never be overwritten by a client update once set.
func ProtectedFields(k Kind) []string {
	switch k {
	case KindProjectDescriptive:
		return []string{"project_identifier"}
	case KindProjectAdministrative:
		return []string{"project_identifier_link"}
	case KindDatasetAdministrative:
		return []string{"dataset_identifier_link", "associated_project_identifier"}
	case KindDatasetStructural:
		return []string{"dataset_identifier", "associated_project_identifier"}
	case KindExperimentContextual:
		return []string{"experiment_template_type", "experiment_identifier_run_id", "dataset_identifier_link"}
	default:
		return nil
	}
}

// DatasetStatus is the lifecycle stage of a dataset, derived purely from
// which metadata documents exist on disk.
type DatasetStatus int

const (
	// StatusInitial: the directory exists but no structural document does.
	StatusInitial DatasetStatus = iota
	// StatusIngested: the structural document exists.
	StatusIngested
	// StatusFinalized: the complete_metadata document exists.
	StatusFinalized
)

func (s DatasetStatus) String() string {
	switch s {
	case StatusIngested:
		return "v1_ingested"
	case StatusFinalized:
		return "v2_finalized"
	default:
		return "v0_initial"
	}
}

// FileRecord is one entry in a dataset_structural document describing a
// single ingested file. Field names match the structural schema.
type FileRecord struct {
	FileName        string `json:"file_name"`
	Role            string `json:"role"`
	FilePath        string `json:"file_path"`
	FileExtension   string `json:"file_extension"`
	FileSizeBytes   int64  `json:"file_size_bytes"`
	Checksum        string `json:"checksum"`
	ChecksumAlgo    string `json:"checksum_algorithm"`
	FileTypeOS      string `json:"file_type_os"`
	FilePermissions string `json:"file_permissions"`
	AccessedUTC     string `json:"file_accessed_utc"`
	CreatedUTC      string `json:"file_created_utc"`
	ModifiedUTC     string `json:"file_modified_utc"`
	FileOwner       string `json:"file_owner"`
	FileGroup       string `json:"file_group"`
	FileMIMEType    string `json:"file_mime_type"`
	ProcessingDate  string `json:"file_processing_date"`
}

// Schema resolution sources, in precedence order.
const (
	SourceExplicitOverride = "explicit_override"
	SourceLocalOverride    = "local_override"
	SourceCustomOverride   = "custom_override"
	SourcePackagedDefault  = "packaged_default"
)

// SchemaDescriptor records which file governs a logical schema name and
// which resolution tier produced it.
type SchemaDescriptor struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

// ProjectInfo is a lightweight listing entry for a project directory.
type ProjectInfo struct {
	Identifier string `json:"project_identifier"`
	Title      string `json:"project_title"`
	Path       string `json:"path"`
}

// DatasetInfo is a lightweight listing entry for a dataset directory.
type DatasetInfo struct {
	Identifier        string        `json:"dataset_identifier"`
	Title             string        `json:"dataset_title"`
	ProjectIdentifier string        `json:"associated_project_identifier"`
	Path              string        `json:"path"`
	Status            DatasetStatus `json:"-"`
	StatusLabel       string        `json:"status"`
}
