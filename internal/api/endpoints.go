package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/thruflo/conductor/internal/workflow"
)

// OpenTarget names something the backend can open in the host's viewer.
type OpenTarget string

const (
	OpenOutput     OpenTarget = "output"
	OpenPlan       OpenTarget = "plan"
	OpenReferences OpenTarget = "references"
	OpenArchive    OpenTarget = "archive"
	OpenQuestions  OpenTarget = "questions"
)

var openPaths = map[OpenTarget]string{
	OpenOutput:     "/output/open",
	OpenPlan:       "/plan/open",
	OpenReferences: "/references/open",
	OpenArchive:    "/archive/open",
	OpenQuestions:  "/questions/open",
}

// OpenTargets lists the valid targets.
func OpenTargets() []OpenTarget {
	return []OpenTarget{OpenOutput, OpenPlan, OpenReferences, OpenArchive, OpenQuestions}
}

// ParseOpenTarget validates a target name.
func ParseOpenTarget(s string) (OpenTarget, error) {
	t := OpenTarget(s)
	if _, ok := openPaths[t]; !ok {
		return "", fmt.Errorf("unknown open target %q", s)
	}
	return t, nil
}

// GetState fetches the current workflow snapshot. The result is a patch so
// it can be overlaid exactly like a pushed update.
func (c *Client) GetState(ctx context.Context) (workflow.Patch, error) {
	var raw []byte
	if err := c.get(ctx, "get state", "/state", &raw); err != nil {
		return workflow.Patch{}, err
	}
	p, err := workflow.DecodePatch(raw)
	if err != nil {
		return workflow.Patch{}, &Error{Op: "get state", Kind: KindDecode, Status: http.StatusOK, Err: err}
	}
	return p, nil
}

// GetConfig fetches the stored project config. ok is false when no project
// has been configured yet.
func (c *Client) GetConfig(ctx context.Context) (cfg workflow.ProjectConfig, ok bool, err error) {
	var raw []byte
	if err := c.get(ctx, "get config", "/config", &raw); err != nil {
		return workflow.DefaultProjectConfig(), false, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return workflow.DefaultProjectConfig(), false, nil
	}
	cfg, ok, err = workflow.DecodeProjectConfig(raw)
	if err != nil {
		return cfg, false, &Error{Op: "get config", Kind: KindDecode, Status: http.StatusOK, Err: err}
	}
	return cfg, ok, nil
}

// SaveConfig stores the project config.
func (c *Client) SaveConfig(ctx context.Context, cfg workflow.ProjectConfig) error {
	return c.post(ctx, "save config", "/config", cfg, nil)
}

// CheckSystem reports whether the agent CLI is installed and logged in.
func (c *Client) CheckSystem(ctx context.Context) (workflow.SystemStatus, error) {
	var status workflow.SystemStatus
	err := c.get(ctx, "check system", "/claude/check", &status)
	return status, err
}

// GetQuestions lists pending questions.
func (c *Client) GetQuestions(ctx context.Context) (workflow.QuestionSet, error) {
	var set workflow.QuestionSet
	err := c.get(ctx, "get questions", "/questions", &set)
	return set, err
}

// SubmitAnswers records answers keyed by question number.
func (c *Client) SubmitAnswers(ctx context.Context, answers map[string]string) error {
	return c.post(ctx, "submit answers", "/questions/answer", map[string]any{"answers": answers}, nil)
}

// SkipQuestions tells the backend to proceed on its own assumptions.
func (c *Client) SkipQuestions(ctx context.Context) error {
	return c.post(ctx, "skip questions", "/questions/skip", nil, nil)
}

// GeneratePlan starts plan generation.
func (c *Client) GeneratePlan(ctx context.Context) error {
	return c.post(ctx, "generate plan", "/actions/generate-plan", nil, nil)
}

// RefinePlan resumes planning after the planning questions, answered or
// skipped.
func (c *Client) RefinePlan(ctx context.Context, skipped bool) error {
	return c.post(ctx, "refine plan", "/actions/refine-plan", map[string]bool{"skipped": skipped}, nil)
}

// ExecutePlan starts execution of the generated plan.
func (c *Client) ExecutePlan(ctx context.Context) error {
	return c.post(ctx, "execute plan", "/actions/execute", nil, nil)
}

// ContinueExecution resumes execution after questions.
func (c *Client) ContinueExecution(ctx context.Context) error {
	return c.post(ctx, "continue execution", "/actions/continue", nil, nil)
}

// Cancel stops the running planning or execution step.
func (c *Client) Cancel(ctx context.Context) error {
	return c.post(ctx, "cancel", "/actions/cancel", nil, nil)
}

// Retry re-runs the step that failed.
func (c *Client) Retry(ctx context.Context) error {
	return c.post(ctx, "retry", "/actions/retry", nil, nil)
}

// ResetState resets the workflow state without archiving.
func (c *Client) ResetState(ctx context.Context) error {
	return c.post(ctx, "reset state", "/actions/reset", nil, nil)
}

// ResetProject archives the current project under projectName and resets.
func (c *Client) ResetProject(ctx context.Context, projectName string) (workflow.ResetResult, error) {
	var result workflow.ResetResult
	err := c.post(ctx, "reset project", "/reset", map[string]string{"projectName": projectName}, &result)
	return result, err
}

// ListReferences lists the reference folder.
func (c *Client) ListReferences(ctx context.Context) ([]workflow.ReferenceFile, error) {
	var files []workflow.ReferenceFile
	err := c.get(ctx, "list references", "/references", &files)
	return files, err
}

// ArchiveReferences moves every reference file into the archive folder.
func (c *Client) ArchiveReferences(ctx context.Context) (workflow.ArchiveResult, error) {
	var result workflow.ArchiveResult
	err := c.post(ctx, "archive references", "/references/archive", nil, &result)
	return result, err
}

// UploadReferences uploads local files into the reference folder, keeping
// their base names.
func (c *Client) UploadReferences(ctx context.Context, paths []string) (workflow.UploadResult, error) {
	var result workflow.UploadResult
	if len(paths) == 0 {
		return result, fmt.Errorf("no files to upload")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, path := range paths {
		if err := addFilePart(mw, path); err != nil {
			return result, err
		}
	}
	if err := mw.Close(); err != nil {
		return result, fmt.Errorf("failed to finish upload body: %w", err)
	}

	err := c.do(ctx, "upload references", http.MethodPost, "/references/upload", &buf, mw.FormDataContentType(), &result)
	return result, err
}

func addFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form part for %s: %w", path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// ListArchives lists archived projects.
func (c *Client) ListArchives(ctx context.Context) ([]workflow.Archive, error) {
	var archives []workflow.Archive
	err := c.get(ctx, "list archives", "/archive/list", &archives)
	return archives, err
}

// Open asks the backend to open target in the host's viewer.
func (c *Client) Open(ctx context.Context, target OpenTarget) error {
	path, ok := openPaths[target]
	if !ok {
		return fmt.Errorf("unknown open target %q", target)
	}
	return c.get(ctx, "open "+string(target), path, nil)
}
