package session

import (
	"context"

	"github.com/thruflo/conductor/internal/api"
	"github.com/thruflo/conductor/internal/workflow"
)

var openFailures = map[api.OpenTarget]string{
	api.OpenOutput:     "Failed to open output folder: ",
	api.OpenPlan:       "Failed to open plan: ",
	api.OpenReferences: "Failed to open references folder: ",
	api.OpenArchive:    "Failed to open archives folder: ",
	api.OpenQuestions:  "Failed to open questions file: ",
}

// PerformAction runs the primary action for the current state:
//
//	reset, configured  save the form, then generate a plan
//	planned            execute the plan
//	questions          submit answers, then continue execution
//	complete           reset the project (after confirmation)
//	error              retry
//
// It returns ErrBusy if another action is in flight and ErrNotOfferable if
// the state forbids an action. Backend failures are also sent to the
// Notifier.
func (c *Client) PerformAction(ctx context.Context) error {
	v, err := c.acquire(View.CanPerformAction)
	if err != nil {
		return err
	}
	defer c.release()

	switch v.State.State {
	case workflow.StateReset, workflow.StateConfigured:
		if err := c.backend.SaveConfig(ctx, v.Config); err != nil {
			return c.fail(failAction, err)
		}
		c.apply(func(r *record) {
			r.configExpanded = false
		})
		if err := c.backend.GeneratePlan(ctx); err != nil {
			return c.fail(failAction, err)
		}
	case workflow.StatePlanned:
		if err := c.backend.ExecutePlan(ctx); err != nil {
			return c.fail(failAction, err)
		}
	case workflow.StateQuestions:
		return c.submitAnswers(ctx, v.Questions)
	case workflow.StateComplete:
		if !c.confirmer.Confirm(ctx, PromptReset) {
			return ErrDeclined
		}
		return c.resetProject(ctx, v.Config)
	case workflow.StateError:
		if err := c.backend.Retry(ctx); err != nil {
			return c.fail(failAction, err)
		}
	}
	return nil
}

func (c *Client) submitAnswers(ctx context.Context, questions []workflow.Question) error {
	if err := c.backend.SubmitAnswers(ctx, workflow.BuildAnswers(questions)); err != nil {
		return c.fail(failSubmit, err)
	}
	c.clearQuestions()
	if err := c.backend.ContinueExecution(ctx); err != nil {
		return c.fail(failSubmit, err)
	}
	return nil
}

// SkipQuestions abandons the pending execution questions and continues.
func (c *Client) SkipQuestions(ctx context.Context) error {
	inQuestions := func(v View) bool {
		return v.State.State == workflow.StateQuestions
	}
	if err := c.confirmIf(ctx, inQuestions, PromptSkipQuestions); err != nil {
		return err
	}
	if _, err := c.acquire(inQuestions); err != nil {
		return err
	}
	defer c.release()

	if err := c.backend.SkipQuestions(ctx); err != nil {
		return c.fail(failSkip, err)
	}
	c.clearQuestions()
	if err := c.backend.ContinueExecution(ctx); err != nil {
		return c.fail(failSkip, err)
	}
	return nil
}

// ContinueAfterPlanQuestions asks the backend to refine the plan once the
// planning questions have been answered in the questions document, or
// skipped. Skipping needs confirmation.
func (c *Client) ContinueAfterPlanQuestions(ctx context.Context, skipped bool) error {
	inPlanQuestions := func(v View) bool {
		return v.State.State == workflow.StatePlanQuestions
	}
	if skipped {
		if err := c.confirmIf(ctx, inPlanQuestions, PromptSkipPlanQuestions); err != nil {
			return err
		}
	}
	if _, err := c.acquire(inPlanQuestions); err != nil {
		return err
	}
	defer c.release()

	if err := c.backend.RefinePlan(ctx, skipped); err != nil {
		return c.fail(failRefine, err)
	}
	return nil
}

// Cancel stops the running planning or execution operation.
func (c *Client) Cancel(ctx context.Context) error {
	if err := c.confirmIf(ctx, View.CanCancel, PromptCancel); err != nil {
		return err
	}
	if _, err := c.acquire(View.CanCancel); err != nil {
		return err
	}
	defer c.release()

	if err := c.backend.Cancel(ctx); err != nil {
		return c.fail(failCancel, err)
	}
	return nil
}

// Retry re-runs the failed operation.
func (c *Client) Retry(ctx context.Context) error {
	_, err := c.acquire(func(v View) bool {
		return v.State.State == workflow.StateError
	})
	if err != nil {
		return err
	}
	defer c.release()

	if err := c.backend.Retry(ctx); err != nil {
		return c.fail(failRetry, err)
	}
	return nil
}

// ResetProject archives the current project and starts over.
func (c *Client) ResetProject(ctx context.Context) error {
	if err := c.confirmIf(ctx, View.CanReset, PromptReset); err != nil {
		return err
	}
	v, err := c.acquire(View.CanReset)
	if err != nil {
		return err
	}
	defer c.release()

	return c.resetProject(ctx, v.Config)
}

// resetProject runs with the busy flag held. After the backend accepts, the
// form and reference list are cleared ahead of the refetch.
func (c *Client) resetProject(ctx context.Context, cfg workflow.ProjectConfig) error {
	res, err := c.backend.ResetProject(ctx, cfg.ArchiveName())
	if err != nil {
		return c.fail(failReset, err)
	}
	if res.Archived {
		c.logger.Info("project archived", "path", res.ArchivePath)
	}

	c.apply(func(r *record) {
		r.configExpanded = true
		r.form = workflow.DefaultProjectConfig()
		r.noReferenceFiles = false
		r.references = nil
		r.questions = nil
	})
	_ = c.LoadReferenceFiles(ctx)
	return nil
}

// Refresh refetches the snapshot and system status and reopens the update
// channel if it gave up.
func (c *Client) Refresh(ctx context.Context) error {
	err := c.LoadState(ctx)
	if err != nil {
		c.notifier.Notify(api.UserMessage(err))
	}

	c.system.Delete(systemCacheKey)
	_ = c.CheckSystem(ctx)

	if c.channel != nil && !c.channel.IsOpen() {
		c.mu.Lock()
		runCtx := c.ctx
		c.mu.Unlock()
		c.logger.Info("reopening update channel")
		c.channel.Open(runCtx)
	}
	return err
}

// UploadReferenceFiles uploads local files into the reference folder and
// refetches the listing.
func (c *Client) UploadReferenceFiles(ctx context.Context, paths []string) (workflow.UploadResult, error) {
	if len(paths) == 0 {
		return workflow.UploadResult{}, nil
	}
	if _, err := c.acquire(nil); err != nil {
		return workflow.UploadResult{}, err
	}
	defer c.release()

	res, err := c.backend.UploadReferences(ctx, paths)
	if err != nil {
		return workflow.UploadResult{}, c.fail(failUpload, err)
	}
	_ = c.LoadReferenceFiles(ctx)
	c.apply(func(r *record) {
		r.noReferenceFiles = false
	})
	return res, nil
}

// ArchiveReferenceFiles moves every reference file into the archive folder.
func (c *Client) ArchiveReferenceFiles(ctx context.Context) error {
	v := c.View()
	if v.Busy {
		return ErrBusy
	}
	if len(v.References) == 0 {
		c.notifier.Notify(MsgNoReferenceFiles)
		return ErrNotOfferable
	}
	if !c.confirmer.Confirm(ctx, PromptArchiveReferences) {
		return ErrDeclined
	}
	if _, err := c.acquire(nil); err != nil {
		return err
	}
	defer c.release()

	if _, err := c.backend.ArchiveReferences(ctx); err != nil {
		return c.fail(failArchive, err)
	}
	_ = c.LoadReferenceFiles(ctx)
	return nil
}

// SaveConfig stores the form on the backend and reloads the snapshot.
func (c *Client) SaveConfig(ctx context.Context) error {
	v, err := c.acquire(nil)
	if err != nil {
		return err
	}
	defer c.release()

	if err := c.backend.SaveConfig(ctx, v.Config); err != nil {
		return c.fail(failSaveConfig, err)
	}
	c.apply(func(r *record) {
		r.configExpanded = false
	})
	_ = c.LoadState(ctx)
	return nil
}

// Open asks the backend to open target in the host's viewer.
func (c *Client) Open(ctx context.Context, target api.OpenTarget) error {
	if err := c.backend.Open(ctx, target); err != nil {
		prefix, ok := openFailures[target]
		if !ok {
			prefix = failAction
		}
		return c.fail(prefix, err)
	}
	return nil
}

// LoadState fetches the current snapshot and merges it.
func (c *Client) LoadState(ctx context.Context) error {
	p, err := c.backend.GetState(ctx)
	if err != nil {
		c.logger.Error("failed to load state", "error", err)
		return err
	}
	c.Merge(p)
	return nil
}

// LoadConfig fills the form from the backend's saved project config. An
// existing config collapses the form.
func (c *Client) LoadConfig(ctx context.Context) error {
	cfg, ok, err := c.backend.GetConfig(ctx)
	if err != nil {
		c.logger.Error("failed to load config", "error", err)
		return err
	}
	if !ok {
		return nil
	}
	c.apply(func(r *record) {
		r.form = cfg
		r.configExpanded = false
	})
	return nil
}

// CheckSystem fetches the agent installation status, reusing a recent
// result when one is cached.
func (c *Client) CheckSystem(ctx context.Context) error {
	if cached, ok := c.system.Get(systemCacheKey); ok {
		status := cached.(workflow.SystemStatus)
		c.apply(func(r *record) {
			r.system = status
			r.systemChecked = true
		})
		return nil
	}

	status, err := c.backend.CheckSystem(ctx)
	if err != nil {
		c.logger.Error("failed to check system", "error", err)
		return err
	}
	c.system.Set(systemCacheKey, status, c.systemTTL)
	c.apply(func(r *record) {
		r.system = status
		r.systemChecked = true
	})
	return nil
}

// LoadReferenceFiles refetches the reference folder listing.
func (c *Client) LoadReferenceFiles(ctx context.Context) error {
	files, err := c.backend.ListReferences(ctx)
	if err != nil {
		c.logger.Error("failed to load reference files", "error", err)
		return err
	}
	c.apply(func(r *record) {
		r.references = files
	})
	return nil
}

// LoadQuestions fetches the pending questions, replacing the local list.
// Answers already typed locally survive the refresh.
func (c *Client) LoadQuestions(ctx context.Context) error {
	set, err := c.backend.GetQuestions(ctx)
	if err != nil {
		c.logger.Error("failed to load questions", "error", err)
		return err
	}
	c.apply(func(r *record) {
		r.questions = keepAnswers(set.Questions, r.questions)
	})
	return nil
}

// keepAnswers copies non-empty local answers onto fetched questions that have
// none, matching by question number.
func keepAnswers(fetched, local []workflow.Question) []workflow.Question {
	typed := make(map[int]string, len(local))
	for _, q := range local {
		if q.Answer != "" {
			typed[q.Number] = q.Answer
		}
	}
	out := make([]workflow.Question, len(fetched))
	copy(out, fetched)
	for i := range out {
		if out[i].Answer == "" {
			out[i].Answer = typed[out[i].Number]
		}
	}
	return out
}

// LoadArchives lists previously archived projects.
func (c *Client) LoadArchives(ctx context.Context) ([]workflow.Archive, error) {
	archives, err := c.backend.ListArchives(ctx)
	if err != nil {
		c.logger.Error("failed to load archives", "error", err)
		return nil, err
	}
	return archives, nil
}

// SetProjectConfig replaces the form.
func (c *Client) SetProjectConfig(cfg workflow.ProjectConfig) {
	c.apply(func(r *record) {
		r.form = cfg
	})
}

// UpdateConfig edits the form in place.
func (c *Client) UpdateConfig(fn func(cfg *workflow.ProjectConfig)) {
	c.apply(func(r *record) {
		fn(&r.form)
	})
}

// SetNoReferenceFiles records that the operator proceeds without reference
// files.
func (c *Client) SetNoReferenceFiles(v bool) {
	c.apply(func(r *record) {
		r.noReferenceFiles = v
	})
}

// SetConfigExpanded shows or hides the project form.
func (c *Client) SetConfigExpanded(v bool) {
	c.apply(func(r *record) {
		r.configExpanded = v
	})
}

// SetAnswer records the operator's answer to question number. It reports
// whether the question exists.
func (c *Client) SetAnswer(number int, answer string) bool {
	found := false
	c.apply(func(r *record) {
		for i := range r.questions {
			if r.questions[i].Number == number {
				r.questions[i].Answer = answer
				found = true
				return
			}
		}
	})
	return found
}

func (c *Client) clearQuestions() {
	c.apply(func(r *record) {
		r.questions = nil
	})
}

// confirmIf checks allowed against the current view before asking, so the
// operator is never prompted for an action that would be refused.
func (c *Client) confirmIf(ctx context.Context, allowed func(View) bool, prompt string) error {
	if !allowed(c.View()) {
		return ErrNotOfferable
	}
	if !c.confirmer.Confirm(ctx, prompt) {
		return ErrDeclined
	}
	return nil
}
