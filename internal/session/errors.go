package session

import "errors"

var (
	// ErrBusy is returned when another operator action is still in flight.
	ErrBusy = errors.New("another action is in progress")

	// ErrNotOfferable is returned when the current state forbids the action.
	ErrNotOfferable = errors.New("action not available in the current state")

	// ErrDeclined is returned when the operator declines a confirmation.
	ErrDeclined = errors.New("declined by operator")
)

// Confirmation prompts.
const (
	PromptSkipQuestions     = "Skip answering questions? Claude will make assumptions."
	PromptSkipPlanQuestions = "Skip answering questions? Claude will use their best judgment."
	PromptCancel            = "Cancel the current operation?"
	PromptReset             = "Start a new project? Current work will be archived."
	PromptArchiveReferences = "Archive all reference files? They will be moved to the archive folder."
)

// MsgNoReferenceFiles is the notification shown when there is nothing to archive.
const MsgNoReferenceFiles = "No reference files to archive."

// Notification prefixes, one per operation.
const (
	failAction     = "Action failed: "
	failSubmit     = "Failed to submit answers: "
	failSkip       = "Failed to skip questions: "
	failRefine     = "Failed to refine plan: "
	failCancel     = "Failed to cancel: "
	failReset      = "Failed to reset: "
	failRetry      = "Failed to retry: "
	failUpload     = "Failed to upload files: "
	failArchive    = "Failed to archive reference files: "
	failSaveConfig = "Failed to save configuration: "
)
