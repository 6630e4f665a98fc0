package domain

// BuildStatus is the lifecycle state reported by the build API.
type BuildStatus string

const (
	BuildPending   BuildStatus = "pending"
	BuildBuilding  BuildStatus = "building"
	BuildCompleted BuildStatus = "completed"
	BuildFailed    BuildStatus = "failed"
)

// BuildSpec describes a software build request.
type BuildSpec struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	Architecture string   `json:"architecture"`
	Technologies []string `json:"technologies"`
	Constraints  []string `json:"constraints,omitempty"`
}

// ArtifactKind classifies a generated build artifact.
type ArtifactKind string

const (
	ArtifactCode   ArtifactKind = "code"
	ArtifactConfig ArtifactKind = "config"
	ArtifactDocs   ArtifactKind = "docs"
	ArtifactTest   ArtifactKind = "test"
)

// BuildArtifact is a single file produced by a build.
type BuildArtifact struct {
	Name    string       `json:"name"`
	Kind    ArtifactKind `json:"type"`
	Content string       `json:"content"`
	Path    string       `json:"path,omitempty"`
}

// BuildResult is the outcome of a build creation request.
type BuildResult struct {
	BuildID   string          `json:"buildId"`
	Status    BuildStatus     `json:"status"`
	Artifacts []BuildArtifact `json:"artifacts"`
	Logs      []string        `json:"logs"`
	Metadata  map[string]any  `json:"metadata"`
}

// ValidationError is a blocking problem found while validating a build.
type ValidationError struct {
	Kind    string `json:"type"` // "syntax" | "logic" | "security" | "performance"
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationWarning is a non-blocking finding.
type ValidationWarning struct {
	Kind       string `json:"type"` // "style" | "optimization" | "compatibility"
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationResult is the outcome of validating a build.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
	Score    float64             `json:"score"`
}
