package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultModel is the model preselected for a new project.
const DefaultModel = "sonnet"

// NoAnswerPlaceholder is submitted for questions left blank.
const NoAnswerPlaceholder = "(No answer provided)"

// ProjectConfig is the operator-editable project form.
type ProjectConfig struct {
	ProjectName            string `json:"projectName" yaml:"project_name"`
	ProjectDescription     string `json:"projectDescription" yaml:"project_description"`
	DefaultModel           string `json:"defaultModel" yaml:"default_model"`
	AllowPlanningQuestions bool   `json:"allowPlanningQuestions" yaml:"allow_planning_questions"`
}

// DefaultProjectConfig returns an empty form with default settings.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		DefaultModel:           DefaultModel,
		AllowPlanningQuestions: true,
	}
}

// Complete reports whether name and description are both filled in.
func (c ProjectConfig) Complete() bool {
	return strings.TrimSpace(c.ProjectName) != "" &&
		strings.TrimSpace(c.ProjectDescription) != ""
}

// ArchiveName is the name used when archiving the project on reset.
func (c ProjectConfig) ArchiveName() string {
	if c.ProjectName == "" {
		return "project"
	}
	return c.ProjectName
}

type projectConfigDocument struct {
	ProjectName            *string `json:"projectName"`
	ProjectDescription     *string `json:"projectDescription"`
	DefaultModel           *string `json:"defaultModel"`
	AllowPlanningQuestions *bool   `json:"allowPlanningQuestions"`

	Project *struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"project"`
	Execution *struct {
		DefaultModel string `json:"default_model"`
	} `json:"execution"`
}

// DecodeProjectConfig reads a stored project config in either the flat shape
// or the nested legacy shape. ok is false when the document names no project,
// in which case the defaults are returned.
func DecodeProjectConfig(data []byte) (cfg ProjectConfig, ok bool, err error) {
	cfg = DefaultProjectConfig()

	var doc projectConfigDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return cfg, false, fmt.Errorf("failed to decode project config: %w", err)
	}

	var legacyName, legacyDescription, legacyModel string
	if doc.Project != nil {
		legacyName = doc.Project.Name
		legacyDescription = doc.Project.Description
	}
	if doc.Execution != nil {
		legacyModel = doc.Execution.DefaultModel
	}

	name := firstNonEmpty(deref(doc.ProjectName), legacyName)
	if name == "" {
		return cfg, false, nil
	}

	cfg.ProjectName = name
	cfg.ProjectDescription = firstNonEmpty(deref(doc.ProjectDescription), legacyDescription)
	cfg.DefaultModel = firstNonEmpty(deref(doc.DefaultModel), legacyModel, DefaultModel)
	if doc.AllowPlanningQuestions != nil {
		cfg.AllowPlanningQuestions = *doc.AllowPlanningQuestions
	}
	return cfg, true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Question is one clarifying question raised during execution or planning.
type Question struct {
	Number int    `json:"number" yaml:"number"`
	Topic  string `json:"topic" yaml:"topic"`
	Text   string `json:"question" yaml:"question"`
	Answer string `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// QuestionSet is the backend's question listing.
type QuestionSet struct {
	HasQuestions bool       `json:"hasQuestions"`
	Questions    []Question `json:"questions"`
	Count        int        `json:"count"`
}

// BuildAnswers keys answers by question number. Blank answers are replaced
// with NoAnswerPlaceholder.
func BuildAnswers(questions []Question) map[string]string {
	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		answer := q.Answer
		if strings.TrimSpace(answer) == "" {
			answer = NoAnswerPlaceholder
		}
		answers[strconv.Itoa(q.Number)] = answer
	}
	return answers
}

// ReferenceFile is an entry in the project's reference folder.
type ReferenceFile struct {
	Name  string `json:"name" yaml:"name"`
	Size  int64  `json:"size" yaml:"size"`
	IsDir bool   `json:"isDir" yaml:"is_dir"`
}

// Archive is a previously archived project.
type Archive struct {
	Name    string `json:"name" yaml:"name"`
	Date    string `json:"date" yaml:"date"`
	Time    string `json:"time" yaml:"time"`
	Project string `json:"project" yaml:"project"`
}

// SystemStatus describes the agent CLI installed on the backend host.
type SystemStatus struct {
	Installed bool   `json:"installed" yaml:"installed"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	LoggedIn  bool   `json:"loggedIn" yaml:"logged_in"`
	Email     string `json:"email,omitempty" yaml:"email,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Ready reports whether the agent can run.
func (s SystemStatus) Ready() bool {
	return s.Installed && s.LoggedIn
}

// ResetResult is returned by a full project reset.
type ResetResult struct {
	Archived    bool   `json:"archived"`
	ArchivePath string `json:"archivePath,omitempty"`
	Message     string `json:"message,omitempty"`
}

// UploadResult is returned by a reference upload.
type UploadResult struct {
	Files []string `json:"files"`
}

// ArchiveResult is returned when reference files are archived.
type ArchiveResult struct {
	Archived    []string `json:"archived"`
	ArchivePath string   `json:"archivePath,omitempty"`
}
